package upload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/config"
	"github.com/Veraticus/spice-insights/internal/model"
)

// Expense columns a mapped CSV row must provide.
const (
	colDate        = "date"
	colExpense     = "expense"
	colDescription = "description"
	colCurrency    = "currency_code"
	colCategory    = "category"
)

// dateLayouts are tried in order when a file type declares no date_format.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
}

// MissingColumnsError lists required headers absent from a file.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "Missing columns: " + strings.Join(e.Columns, ", ")
}

func (e *MissingColumnsError) Unwrap() error {
	return common.ErrValidation
}

type parsedRows struct {
	expenses []model.Expense
	dropped  int
}

// parseCSV validates headers against the file type and maps rows to expenses.
// Rows with an empty or unparseable date, amount or description are dropped.
func parseCSV(r io.Reader, ft config.FileType) (*parsedRows, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file is empty", common.ErrValidation)
		}
		return nil, fmt.Errorf("%w: invalid CSV header: %w", common.ErrValidation, err)
	}

	present := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		header[i] = h
		present[h] = true
	}

	var missing []string
	for _, req := range ft.RequiredHeaders {
		if !present[req] {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	// Column index per expense field after renaming.
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := h
		if mapped, ok := ft.HeaderMapping[h]; ok {
			name = mapped
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range []string{colDate, colExpense, colDescription} {
		if _, ok := index[col]; !ok {
			return nil, &MissingColumnsError{Columns: []string{col}}
		}
	}

	out := &parsedRows{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: invalid CSV row: %w", common.ErrValidation, err)
		}

		expense, ok := toExpense(record, index, ft)
		if !ok {
			out.dropped++
			continue
		}
		out.expenses = append(out.expenses, expense)
	}
	return out, nil
}

func field(record []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func toExpense(record []string, index map[string]int, ft config.FileType) (model.Expense, bool) {
	rawDate := field(record, index, colDate)
	rawAmount := field(record, index, colExpense)
	description := field(record, index, colDescription)
	if rawDate == "" || rawAmount == "" || description == "" {
		return model.Expense{}, false
	}

	date, err := parseDate(rawDate, ft.DateFormat)
	if err != nil {
		return model.Expense{}, false
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return model.Expense{}, false
	}

	currency := field(record, index, colCurrency)
	if currency == "" {
		currency = ft.DefaultCurrency
	}

	return model.Expense{
		Date:         date,
		Amount:       amount,
		CurrencyCode: strings.ToUpper(currency),
		Description:  description,
		Category:     field(record, index, colCategory),
	}, true
}

func parseDate(value, layout string) (time.Time, error) {
	if layout != "" {
		return time.Parse(layout, value)
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// parseAmount accepts currency symbols, thousands separators and
// parenthesized negatives.
func parseAmount(value string) (float64, error) {
	negative := strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")")
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', '£', '$', '€', '(', ')', ' ':
			return -1
		}
		return r
	}, value)
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if negative {
		amount = -amount
	}
	return amount, nil
}
