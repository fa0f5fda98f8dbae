// Package query executes validated SQL against tenant backends, keeping one
// connection pool per (dialect, server, database).
package query

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
)

// Connection keys as they appear in tenant configuration.
const (
	keyUserName = "user_name"
	keyPassword = "password"
	keyHost     = "host"
	keyDatabase = "database"
)

// Backend describes how to reach one dialect.
type Backend struct {
	DSN         func(conn model.ConnectionConfig) string
	Dialect     string
	Driver      string
	Required    []string
	DefaultPort int
	// ReadOnly rejects anything but a single SELECT before a pool is touched.
	ReadOnly bool
}

// DefaultBackends returns the supported dialects.
func DefaultBackends() map[string]Backend {
	network := []string{keyUserName, keyPassword, keyHost, keyDatabase}
	file := []string{keyDatabase}

	return map[string]Backend{
		model.DialectMySQL: {
			Dialect:     model.DialectMySQL,
			Driver:      "mysql",
			Required:    network,
			DefaultPort: 3306,
			ReadOnly:    true,
			DSN:         mysqlDSN,
		},
		model.DialectAzureWH: {
			Dialect:     model.DialectAzureWH,
			Driver:      "sqlserver",
			Required:    network,
			DefaultPort: 1433,
			DSN:         sqlServerDSN,
		},
		model.DialectPostgres: {
			Dialect:     model.DialectPostgres,
			Driver:      "pgx",
			Required:    network,
			DefaultPort: 5432,
			ReadOnly:    true,
			DSN:         postgresDSN,
		},
		model.DialectSQLite: {
			Dialect:  model.DialectSQLite,
			Driver:   "sqlite3",
			Required: file,
			ReadOnly: true,
			DSN: func(conn model.ConnectionConfig) string {
				return fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", conn.Database)
			},
		},
		model.DialectDuckDB: {
			Dialect:  model.DialectDuckDB,
			Driver:   "duckdb",
			Required: file,
			DSN: func(conn model.ConnectionConfig) string {
				return conn.Database + "?access_mode=read_only"
			},
		},
	}
}

// Validate reports missing connection keys.
func (b Backend) Validate(conn model.ConnectionConfig) error {
	values := map[string]string{
		keyUserName: conn.UserName,
		keyPassword: conn.Password,
		keyHost:     conn.Host,
		keyDatabase: conn.Database,
	}
	var missing []string
	for _, key := range b.Required {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s connection is missing keys: %s",
			common.ErrValidation, b.Dialect, strings.Join(missing, ", "))
	}
	return nil
}

func hostPort(conn model.ConnectionConfig, def int) string {
	port := conn.Port
	if port == 0 {
		port = def
	}
	return net.JoinHostPort(conn.Host, strconv.Itoa(port))
}

func mysqlDSN(conn model.ConnectionConfig) string {
	cfg := mysql.NewConfig()
	cfg.User = conn.UserName
	cfg.Passwd = conn.Password
	cfg.Net = "tcp"
	cfg.Addr = hostPort(conn, 3306)
	cfg.DBName = conn.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func sqlServerDSN(conn model.ConnectionConfig) string {
	q := url.Values{}
	q.Set("database", conn.Database)
	q.Set("encrypt", "true")
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(conn.UserName, conn.Password),
		Host:     hostPort(conn, 1433),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func postgresDSN(conn model.ConnectionConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(conn.UserName, conn.Password),
		Host:   hostPort(conn, 5432),
		Path:   "/" + conn.Database,
	}
	return u.String()
}

// IsSelect reports whether statement is a single SELECT statement.
// Leading comments and a trailing semicolon are ignored; semicolons inside
// quotes or comments do not separate statements.
func IsSelect(statement string) bool {
	s := strings.TrimSpace(stripLeadingComments(statement))
	if end := terminator(s); end >= 0 {
		if stripLeadingComments(s[end+1:]) != "" {
			return false
		}
		s = strings.TrimSpace(s[:end])
	}
	if s == "" {
		return false
	}
	s = strings.TrimLeft(s, "( \t\r\n")
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	return strings.EqualFold(fields[0], "select")
}

// terminator returns the index of the first semicolon outside string
// literals, quoted identifiers and comments, or -1.
func terminator(s string) int {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == ';':
			return i
		case c == '\'' || c == '"' || c == '`':
			for i++; i < len(s) && s[i] != c; i++ {
				if c == '\'' && s[i] == '\\' {
					i++
				}
			}
		case c == '[':
			for i++; i < len(s) && s[i] != ']'; i++ {
			}
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return -1
			}
			i += end + 3
		}
	}
	return -1
}

func stripLeadingComments(s string) string {
	for {
		s = strings.TrimSpace(s)
		switch {
		case strings.HasPrefix(s, "--"):
			idx := strings.IndexByte(s, '\n')
			if idx < 0 {
				return ""
			}
			s = s[idx+1:]
		case strings.HasPrefix(s, "/*"):
			idx := strings.Index(s, "*/")
			if idx < 0 {
				return ""
			}
			s = s[idx+2:]
		default:
			return s
		}
	}
}
