package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-insights/internal/common"
)

// Upload formats.
const (
	FormatCSV = "csv"
	FormatOFX = "ofx"
)

// FileType describes how one kind of uploaded statement maps onto expense rows.
type FileType struct {
	// HeaderMapping renames lower-cased source headers to expense columns.
	HeaderMapping    map[string]string `mapstructure:"header_mapping"`
	Format           string            `mapstructure:"format"`
	DateFormat       string            `mapstructure:"date_format"`
	DefaultCurrency  string            `mapstructure:"default_currency"`
	RequiredHeaders  []string          `mapstructure:"required_headers"`
	EmptyFieldsToAdd []string          `mapstructure:"empty_fields_to_add"`
	ModelProcessing  bool              `mapstructure:"model_processing"`
}

// FileTypes maps a declared file-type key to its description.
type FileTypes map[string]FileType

// Lookup finds a file type by key, ignoring case.
func (f FileTypes) Lookup(name string) (FileType, bool) {
	ft, ok := f[strings.ToLower(name)]
	return ft, ok
}

// LoadFileTypes reads file-type metadata from a JSON or YAML file.
func LoadFileTypes(path string) (FileTypes, error) {
	// Header names may contain dots.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(ExpandPath(path))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read file type metadata: %w", err)
	}

	var raw map[string]FileType
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("%w: invalid file type metadata: %w", common.ErrValidation, err)
	}

	types := make(FileTypes, len(raw))
	for name, ft := range raw {
		if err := ft.normalize(); err != nil {
			return nil, fmt.Errorf("file type %s: %w", name, err)
		}
		types[strings.ToLower(name)] = ft
	}
	return types, nil
}

func (ft *FileType) normalize() error {
	if ft.Format == "" {
		ft.Format = FormatCSV
	}
	ft.Format = strings.ToLower(ft.Format)
	if ft.Format != FormatCSV && ft.Format != FormatOFX {
		return fmt.Errorf("%w: unsupported format %q", common.ErrValidation, ft.Format)
	}
	if ft.Format == FormatCSV && len(ft.RequiredHeaders) == 0 {
		return fmt.Errorf("%w: required_headers is empty", common.ErrValidation)
	}
	for i, h := range ft.RequiredHeaders {
		ft.RequiredHeaders[i] = strings.ToLower(strings.TrimSpace(h))
	}
	mapping := make(map[string]string, len(ft.HeaderMapping))
	for from, to := range ft.HeaderMapping {
		mapping[strings.ToLower(strings.TrimSpace(from))] = to
	}
	ft.HeaderMapping = mapping
	return nil
}
