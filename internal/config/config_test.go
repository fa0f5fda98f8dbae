package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
)

const tenantJSON = `[
  {
    "project_name": "expense_insights",
    "table_info": {
      "expenses": {
        "date": "transaction date",
        "expense": "amount spent",
        "category": "spending category"
      },
      "upload_history": ["file_name", "status"]
    },
    "rules": ["Only generate SELECT statements"],
    "SqlToNlRules": ["Never mention SQL"],
    "examples": {
      "mysql": [{"prompt": "total spend", "sql": "SELECT SUM(expense) FROM expenses"}]
    },
    "db_connection_config": {"user_name": "u", "password": "p", "host": "h", "database": "expense_insights"},
    "db_type": "mysql",
    "is_user_filter_needed": true
  },
  {
    "project_name": "sales",
    "table_info": {"orders": ["id"]},
    "db_connection_config": {"database": "/tmp/sales.db"},
    "db_type": "sqlite"
  }
]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseProjects(t *testing.T) {
	projects, err := ParseProjects([]byte(tenantJSON))
	require.NoError(t, err)
	require.Len(t, projects, 2)

	p := projects[0]
	assert.Equal(t, "expense_insights", p.ProjectName)
	assert.Equal(t, model.DialectMySQL, p.Dialect)
	assert.True(t, p.UserFilterRequired)
	assert.Equal(t, "expense_insights", p.Connection.Database)
	assert.Equal(t, []string{"Never mention SQL"}, p.SQLToNLRules)

	require.Len(t, p.Tables, 2)
	assert.Equal(t, "expenses", p.Tables[0].Name, "table order is preserved")
	assert.Equal(t, []model.Column{
		{Name: "date", Description: "transaction date"},
		{Name: "expense", Description: "amount spent"},
		{Name: "category", Description: "spending category"},
	}, p.Tables[0].Columns)
	assert.Equal(t, []model.Column{{Name: "file_name"}, {Name: "status"}}, p.Tables[1].Columns)

	require.Len(t, p.Examples[model.DialectMySQL], 1)
	assert.Equal(t, model.DialectMySQL, p.Examples[model.DialectMySQL][0].Dialect)

	assert.False(t, projects[1].UserFilterRequired)
}

func TestParseProjectsSingleObject(t *testing.T) {
	projects, err := ParseProjects([]byte(`{"project_name": "x", "table_info": {"t": ["a"]},
		"db_connection_config": {"database": "d"}, "db_type": "duckdb"}`))
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, model.DialectDuckDB, projects[0].Dialect)
}

func TestParseProjectsValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"empty", "", "empty project configuration"},
		{"missing keys", `{"project_name": "x"}`, "missing keys: table_info, db_type, db_connection_config"},
		{"bad columns", `{"project_name": "x", "table_info": {"t": 3}, "db_type": "mysql", "db_connection_config": {}}`, "columns must be a list or an object"},
		{"no tables", `{"project_name": "x", "table_info": {}, "db_type": "mysql", "db_connection_config": {}}`, "declares no tables"},
		{"example without sql", `{"project_name": "x", "table_info": {"t": ["a"]}, "db_type": "mysql",
			"db_connection_config": {}, "examples": {"mysql": [{"prompt": "p"}]}}`, "needs prompt and sql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProjects([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadAndFindProjects(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "tenants.json", tenantJSON)

	p, err := FindProject(file, "sales")
	require.NoError(t, err)
	assert.Equal(t, "sales", p.ProjectName)

	_, err = FindProject(file, "missing")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Directory form.
	tenants := t.TempDir()
	writeFile(t, tenants, "a.json", `{"project_name": "a", "table_info": {"t": ["c"]}, "db_type": "mysql", "db_connection_config": {}}`)
	writeFile(t, tenants, "b.json", `{"project_name": "b", "table_info": {"t": ["c"]}, "db_type": "sqlite", "db_connection_config": {}}`)
	writeFile(t, tenants, "notes.txt", "ignored")

	projects, err := LoadProjects(tenants)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "a", projects[0].ProjectName)

	writeFile(t, tenants, "c.json", `{"project_name": "a", "table_info": {"t": ["c"]}, "db_type": "mysql", "db_connection_config": {}}`)
	_, err = LoadProjects(tenants)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLoadClassifierFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "classifier.yaml", `
categories:
  - Entertainment
  - Groceries
  - Transport
rules:
  Groceries: supermarkets and food stores
examples:
  - transaction: NETFLIX.COM
    category: Entertainment
`)

	cf, err := LoadClassifierFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Entertainment", "Groceries", "Transport"}, cf.Categories)
	require.Len(t, cf.Examples, 1)
	assert.Equal(t, "NETFLIX.COM", cf.Examples[0].Transaction)

	rule, ok := cf.RuleSet().Lookup("Groceries")
	require.True(t, ok)
	assert.Equal(t, "supermarkets and food stores", rule)

	_, err = LoadClassifierFile(filepath.Join(dir, "classifier.txt"))
	assert.ErrorIs(t, err, common.ErrValidation)

	dup := writeFile(t, dir, "dup.json", `{"categories": ["A", "A"]}`)
	_, err = LoadClassifierFile(dup)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLoadFileTypes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "file_types.json", `{
  "HSBC": {
    "required_headers": ["Date", "Description", "Amount"],
    "header_mapping": {"Amount": "expense", "txn.date": "date"},
    "empty_fields_to_add": ["category"],
    "model_processing": true
  },
  "bank_ofx": {"format": "ofx", "default_currency": "GBP"}
}`)

	types, err := LoadFileTypes(path)
	require.NoError(t, err)

	hsbc, ok := types.Lookup("hsbc")
	require.True(t, ok)
	assert.Equal(t, FormatCSV, hsbc.Format)
	assert.Equal(t, []string{"date", "description", "amount"}, hsbc.RequiredHeaders)
	assert.Equal(t, "expense", hsbc.HeaderMapping["amount"])
	assert.Equal(t, "date", hsbc.HeaderMapping["txn.date"])
	assert.True(t, hsbc.ModelProcessing)

	ofx, ok := types.Lookup("BANK_OFX")
	require.True(t, ok)
	assert.Equal(t, FormatOFX, ofx.Format)

	bad := writeFile(t, dir, "bad.json", `{"x": {"format": "xlsx"}}`)
	_, err = LoadFileTypes(bad)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestResolvePath(t *testing.T) {
	t.Setenv("SPICE_TEST_DIR", "/data")
	assert.Equal(t, "/data/x.db", ResolvePath("$SPICE_TEST_DIR/x.db", DefaultDatabasePath))
	assert.Equal(t, "/data/default", ResolvePath("", "$SPICE_TEST_DIR/default"))
	assert.Empty(t, ExpandPath(""))
}
