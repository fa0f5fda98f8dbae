package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
)

// ErrProjectNotFound is returned when no tenant file declares the requested project.
var ErrProjectNotFound = fmt.Errorf("project %w", common.ErrNotFound)

// projectFile mirrors the JSON layout of a tenant configuration entry.
type projectFile struct {
	TableInfo          json.RawMessage               `json:"table_info"`
	Examples           map[string][]model.SQLExample `json:"examples"`
	Connection         *model.ConnectionConfig       `json:"db_connection_config"`
	UserFilterRequired *bool                         `json:"is_user_filter_needed"`
	ProjectName        string                        `json:"project_name"`
	DBType             string                        `json:"db_type"`
	Rules              []string                      `json:"rules"`
	SQLToNLRules       []string                      `json:"SqlToNlRules"`
}

// ParseProjects decodes a tenant file holding either one project object or an
// array of them. Every project is validated.
func ParseProjects(data []byte) ([]*model.ProjectConfig, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty project configuration", common.ErrValidation)
	}

	var raw []projectFile
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: invalid project configuration: %w", common.ErrValidation, err)
		}
	} else {
		var one projectFile
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("%w: invalid project configuration: %w", common.ErrValidation, err)
		}
		raw = []projectFile{one}
	}

	projects := make([]*model.ProjectConfig, 0, len(raw))
	for i := range raw {
		p, err := raw[i].toModel()
		if err != nil {
			name := raw[i].ProjectName
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("project %s: %w", name, err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (f *projectFile) toModel() (*model.ProjectConfig, error) {
	var missing []string
	if strings.TrimSpace(f.ProjectName) == "" {
		missing = append(missing, "project_name")
	}
	if len(bytes.TrimSpace(f.TableInfo)) == 0 {
		missing = append(missing, "table_info")
	}
	if f.DBType == "" {
		missing = append(missing, "db_type")
	}
	if f.Connection == nil {
		missing = append(missing, "db_connection_config")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing keys: %s", common.ErrValidation, strings.Join(missing, ", "))
	}

	tables, err := parseTableInfo(f.TableInfo)
	if err != nil {
		return nil, err
	}

	examples := make(map[string][]model.SQLExample, len(f.Examples))
	for dialect, exs := range f.Examples {
		for i, ex := range exs {
			if strings.TrimSpace(ex.Prompt) == "" || strings.TrimSpace(ex.SQL) == "" {
				return nil, fmt.Errorf("%w: example %d for %s needs prompt and sql", common.ErrValidation, i, dialect)
			}
			ex.Dialect = dialect
			examples[dialect] = append(examples[dialect], ex)
		}
	}

	p := &model.ProjectConfig{
		ProjectName:  f.ProjectName,
		Tables:       tables,
		Rules:        f.Rules,
		SQLToNLRules: f.SQLToNLRules,
		Dialect:      f.DBType,
		Connection:   *f.Connection,
		Examples:     examples,
	}
	if f.UserFilterRequired != nil {
		p.UserFilterRequired = *f.UserFilterRequired
	}
	return p, nil
}

// parseTableInfo reads table_info keeping the declared table and column order.
// A table maps to either a list of column names or an object of column → description.
func parseTableInfo(raw json.RawMessage) ([]model.TableSchema, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("%w: table_info must be an object: %w", common.ErrValidation, err)
	}

	var tables []model.TableSchema
	for dec.More() {
		name, err := stringToken(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: table_info: %w", common.ErrValidation, err)
		}
		cols, err := parseColumns(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: table_info.%s: %w", common.ErrValidation, name, err)
		}
		tables = append(tables, model.TableSchema{Name: name, Columns: cols})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("%w: table_info: %w", common.ErrValidation, err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: table_info declares no tables", common.ErrValidation)
	}
	return tables, nil
}

func parseColumns(dec *json.Decoder) ([]model.Column, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, errors.New("columns must be a list or an object")
	}

	var cols []model.Column
	switch delim {
	case '[':
		for dec.More() {
			name, err := stringToken(dec)
			if err != nil {
				return nil, err
			}
			cols = append(cols, model.Column{Name: name})
		}
		return cols, expectDelim(dec, ']')
	case '{':
		for dec.More() {
			name, err := stringToken(dec)
			if err != nil {
				return nil, err
			}
			desc, err := stringToken(dec)
			if err != nil {
				return nil, err
			}
			cols = append(cols, model.Column{Name: name, Description: desc})
		}
		return cols, expectDelim(dec, '}')
	default:
		return nil, errors.New("columns must be a list or an object")
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %v", tok)
	}
	return s, nil
}

// LoadProjects reads tenant configuration from path, which is either a JSON file
// or a directory of *.json files read in name order.
func LoadProjects(path string) ([]*model.ProjectConfig, error) {
	path = ExpandPath(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project configuration: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.json"))
		if err != nil {
			return nil, fmt.Errorf("failed to list project files: %w", err)
		}
		sort.Strings(files)
	}

	var projects []*model.ProjectConfig
	seen := make(map[string]string)
	for _, f := range files {
		data, err := os.ReadFile(f) //nolint:gosec // operator supplied path
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		ps, err := ParseProjects(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		for _, p := range ps {
			if prev, dup := seen[p.ProjectName]; dup {
				return nil, fmt.Errorf("%w: project %s declared in both %s and %s",
					common.ErrValidation, p.ProjectName, prev, f)
			}
			seen[p.ProjectName] = f
			projects = append(projects, p)
		}
	}
	return projects, nil
}

// FindProject loads the tenant configuration from path and returns the named project.
func FindProject(path, name string) (*model.ProjectConfig, error) {
	projects, err := LoadProjects(path)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.ProjectName == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrProjectNotFound)
}
