package model

import "strings"

// Dialect tags accepted in tenant configuration.
const (
	DialectMySQL    = "mysql"
	DialectAzureWH  = "azure_wh"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
	DialectDuckDB   = "duckdb"
)

// Column describes one column of a tenant table. Description may be empty.
type Column struct {
	Name        string
	Description string
}

// TableSchema describes one table the language model may query.
type TableSchema struct {
	Name    string
	Columns []Column
}

// ConnectionConfig holds the parameters needed to reach a tenant's backend.
type ConnectionConfig struct {
	UserName string `json:"user_name"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Database string `json:"database"`
	Port     int    `json:"port"`
}

// ProjectConfig is the validated, per-tenant bundle used by the chat pipeline.
type ProjectConfig struct {
	Examples           map[string][]SQLExample
	ProjectName        string
	Dialect            string
	Connection         ConnectionConfig
	Tables             []TableSchema
	Rules              []string
	SQLToNLRules       []string
	UserFilterRequired bool
}

// Table returns the schema for name, if the tenant declares it. Matching is
// case-insensitive. A qualified name such as db.table matches only a table
// declared with the same qualifier; an unqualified name also matches a
// declared table whose last part equals it.
func (p *ProjectConfig) Table(name string) (TableSchema, bool) {
	qualified := strings.Contains(name, ".")
	for _, t := range p.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
		if !qualified {
			if idx := strings.LastIndexByte(t.Name, '.'); idx >= 0 && strings.EqualFold(t.Name[idx+1:], name) {
				return t, true
			}
		}
	}
	return TableSchema{}, false
}
