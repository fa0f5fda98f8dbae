package upload

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/config"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/service"
	"github.com/Veraticus/spice-insights/internal/storage"
	"github.com/Veraticus/spice-insights/internal/testutil"
)

const user = "ana@example.com"

var fileTypes = config.FileTypes{
	"hsbc": {
		Format:           config.FormatCSV,
		RequiredHeaders:  []string{"date", "details", "amount"},
		HeaderMapping:    map[string]string{"details": "description", "amount": "expense"},
		EmptyFieldsToAdd: []string{"category"},
		DefaultCurrency:  "GBP",
		ModelProcessing:  true,
	},
	"plain": {
		Format:          config.FormatCSV,
		RequiredHeaders: []string{"date", "description", "expense", "currency_code"},
		DateFormat:      "01/02/2006",
	},
	"bank_ofx": {Format: config.FormatOFX, DefaultCurrency: "GBP"},
}

type recordingTrigger struct {
	err   error
	calls []int64
}

func (r *recordingTrigger) Submit(_ context.Context, userID string, fileID int64) (*model.ClassificationJob, error) {
	r.calls = append(r.calls, fileID)
	if r.err != nil {
		return nil, r.err
	}
	return &model.ClassificationJob{ID: "job-1", UserID: userID, FileID: fileID, Status: model.JobQueued}, nil
}

func newTestService(t *testing.T) (*Service, *storage.SQLiteStorage, *recordingTrigger) {
	t.Helper()
	store := testutil.NewStorage(t)

	trigger := &recordingTrigger{}
	return NewService(store, store, fileTypes, trigger), store, trigger
}

func TestUploadCSV(t *testing.T) {
	svc, store, trigger := newTestService(t)
	ctx := context.Background()

	body := "Date,Details,Amount,Balance\n" +
		"2024-05-01,TESCO STORES,\"1,042.10\",10\n" +
		"2024-05-02,NETFLIX.COM,£15.49,5\n" +
		"2024-05-03,,3.00,1\n" +
		"not a date,UBER,4.00,0\n"

	result, err := svc.Upload(ctx, Request{UserID: user, FileName: "may.csv", FileType: "HSBC", Body: strings.NewReader(body)})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, 2, result.Dropped)
	assert.Equal(t, int64(2), result.Inserted)
	require.NotNil(t, result.Job)
	assert.Equal(t, []int64{result.UploadID}, trigger.calls)

	expenses, err := store.ListExpenses(ctx, service.ExpenseFilter{UserID: user})
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	assert.Equal(t, "TESCO STORES", expenses[0].Description)
	assert.InDelta(t, 1042.10, expenses[0].Amount, 1e-9)
	assert.Equal(t, "GBP", expenses[0].CurrencyCode)
	assert.Equal(t, result.UploadID, expenses[0].FileID)
	assert.Empty(t, expenses[0].Category)

	history, err := svc.History(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.UploadSuccess, history[0].Status)
	assert.Equal(t, MsgSuccess, history[0].Message)
	assert.Equal(t, "may.csv", history[0].FileName)
}

func TestUploadMissingColumns(t *testing.T) {
	svc, _, trigger := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, Request{UserID: user, FileType: "hsbc", Body: strings.NewReader("Date,Balance\n2024-05-01,3\n")})
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, "Missing columns: details, amount", common.UserMessage(err))
	assert.Empty(t, trigger.calls)

	history, err := svc.History(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.UploadFailed, history[0].Status)
	assert.Equal(t, "Missing columns: details, amount", history[0].Message)
}

func TestUploadUnsupportedFileType(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), Request{UserID: user, FileType: "barclays", Body: strings.NewReader("")})
	require.ErrorIs(t, err, ErrUnsupportedFileType)
	assert.Equal(t, "Unsupported file type", common.UserMessage(err))

	history, err := svc.History(context.Background(), user, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUploadDuplicateRowsIgnored(t *testing.T) {
	svc, _, trigger := newTestService(t)
	ctx := context.Background()
	body := "date,description,expense,currency_code\n05/01/2024,TESCO,10.00,gbp\n"

	first, err := svc.Upload(ctx, Request{UserID: user, FileType: "plain", Body: strings.NewReader(body)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Inserted)

	second, err := svc.Upload(ctx, Request{UserID: user, FileType: "plain", Body: strings.NewReader(body)})
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Empty(t, trigger.calls, "plain files do not enable model processing")
}

func TestUploadTriggerFailureIsNotFatal(t *testing.T) {
	svc, _, trigger := newTestService(t)
	trigger.err = errors.New("queue full")

	result, err := svc.Upload(context.Background(), Request{UserID: user, FileType: "hsbc",
		Body: strings.NewReader("date,details,amount\n2024-05-01,TESCO,1\n")})
	require.NoError(t, err)
	assert.Nil(t, result.Job)
}

type failingInsert struct {
	service.ExpenseStorage
}

func (failingInsert) InsertExpenses(context.Context, []model.Expense) (int64, error) {
	return 0, errors.New("disk full")
}

func TestUploadInsertFailure(t *testing.T) {
	_, store, _ := newTestService(t)
	svc := NewService(failingInsert{}, store, fileTypes, nil)

	_, err := svc.Upload(context.Background(), Request{UserID: user, FileType: "hsbc",
		Body: strings.NewReader("date,details,amount\n2024-05-01,TESCO,1\n")})
	require.Error(t, err)

	history, err := store.ListUploads(context.Background(), user, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.UploadFailed, history[0].Status)
	assert.Equal(t, MsgFailed, history[0].Message)
}

func TestUploadOFX(t *testing.T) {
	svc, store, _ := newTestService(t)
	body := `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240601090000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>GBP
<BANKACCTFROM>
<BANKID>1
<ACCTID>2
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240501000000[0:GMT]
<DTEND>20240531000000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240503100000[0:GMT]
<TRNAMT>-12.00
<FITID>X1
<NAME>PRET A MANGER
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1.00
<DTASOF>20240531000000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

	result, err := svc.Upload(context.Background(), Request{UserID: user, FileType: "bank_ofx", Body: strings.NewReader(body)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Inserted)

	expenses, err := store.ListExpenses(context.Background(), service.ExpenseFilter{UserID: user})
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "PRET A MANGER", expenses[0].Description)
}

func TestParseAmount(t *testing.T) {
	tests := map[string]float64{
		"12.50":     12.5,
		"£1,200.00": 1200,
		"(3.25)":    -3.25,
		"-4":        -4,
	}
	for in, want := range tests {
		got, err := parseAmount(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}
	_, err := parseAmount("abc")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("14/05/2024", "")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)))

	got, err = parseDate("05/14/2024", "01/02/2006")
	require.NoError(t, err)
	assert.Equal(t, time.May, got.Month())

	_, err = parseDate("yesterday", "")
	assert.Error(t, err)
}
