package chat

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/query"
)

// Guard checks generated SQL against the tenant schema before execution.
type Guard struct {
	project *model.ProjectConfig
}

// NewGuard builds a guard allowing the tables the project declares.
func NewGuard(project *model.ProjectConfig) *Guard {
	return &Guard{project: project}
}

// Check rejects anything but a single SELECT over declared tables.
func (g *Guard) Check(statement string) error {
	if !query.IsSelect(statement) {
		return fmt.Errorf("%w: only SELECT statements may be executed", common.ErrValidation)
	}
	for _, table := range ReferencedTables(statement) {
		if _, ok := g.project.Table(table); !ok {
			return fmt.Errorf("%w: query references table %q outside the project schema", common.ErrValidation, table)
		}
	}
	return nil
}

// ReferencedTables returns the table names that follow FROM or JOIN in a
// SELECT scope, including comma-separated FROM lists. Names are unquoted and
// keep their schema or database qualifier.
func ReferencedTables(statement string) []string {
	tokens := tokenize(statement)

	var tables []string
	seen := make(map[string]bool)
	add := func(tok string) {
		name := unquote(tok)
		if name == "" || seen[strings.ToLower(name)] {
			return
		}
		seen[strings.ToLower(name)] = true
		tables = append(tables, name)
	}

	// scopes tracks, per parenthesis depth, whether a SELECT opened it.
	scopes := []bool{false}
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok == "(":
			scopes = append(scopes, false)
		case tok == ")":
			if len(scopes) > 1 {
				scopes = scopes[:len(scopes)-1]
			}
		case strings.EqualFold(tok, "select"):
			scopes[len(scopes)-1] = true
		case isJoin(tok):
			if scopes[len(scopes)-1] && i+1 < len(tokens) && isIdentifier(tokens[i+1]) {
				add(tokens[i+1])
			}
		case strings.EqualFold(tok, "from"):
			if !scopes[len(scopes)-1] {
				continue
			}
			j := i + 1
			for j < len(tokens) && isIdentifier(tokens[j]) {
				add(tokens[j])
				j++
				// Optional alias, with or without AS.
				if j < len(tokens) && strings.EqualFold(tokens[j], "as") {
					j++
				}
				if j < len(tokens) && isIdentifier(tokens[j]) && !isKeyword(tokens[j]) {
					j++
				}
				if j < len(tokens) && tokens[j] == "," {
					j++
					continue
				}
				break
			}
		}
	}
	return tables
}

var clauseKeywords = map[string]bool{
	"where": true, "group": true, "order": true, "having": true, "limit": true,
	"join": true, "inner": true, "left": true, "right": true, "full": true,
	"outer": true, "cross": true, "on": true, "union": true, "offset": true,
	"natural": true, "using": true, "window": true, "fetch": true,
}

func isKeyword(tok string) bool {
	return clauseKeywords[strings.ToLower(tok)] || isJoin(tok)
}

// isJoin matches JOIN and single-word variants such as STRAIGHT_JOIN.
func isJoin(tok string) bool {
	lower := strings.ToLower(tok)
	return lower == "join" || strings.HasSuffix(lower, "_join")
}

func isIdentifier(tok string) bool {
	if tok == "" {
		return false
	}
	switch tok[0] {
	case '`', '"', '[':
		return true
	}
	r := rune(tok[0])
	return unicode.IsLetter(r) || r == '_'
}

// unquote strips identifier quoting from each dotted part of tok.
func unquote(tok string) string {
	parts := strings.Split(tok, ".")
	for i, p := range parts {
		parts[i] = strings.Trim(p, "`\"[]")
	}
	return strings.Join(parts, ".")
}

// tokenize splits SQL into identifiers, numbers and single-character
// punctuation. String literals and comments are dropped.
func tokenize(s string) []string {
	var tokens []string
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return tokens
			}
			i += end + 4
		case c == '\'':
			i++
			for i < len(s) {
				if s[i] == '\'' {
					if i+1 < len(s) && s[i+1] == '\'' {
						i += 2
						continue
					}
					break
				}
				i++
			}
			i++
		case c == '`' || c == '"' || c == '[':
			closing := c
			if c == '[' {
				closing = ']'
			}
			start := i
			i++
			for i < len(s) && s[i] != closing {
				i++
			}
			i++
			i = extendQualified(s, i)
			tokens = append(tokens, s[start:min(i, len(s))])
		case isWordByte(c):
			start := i
			for i < len(s) && isWordByte(s[i]) {
				i++
			}
			i = extendQualified(s, i)
			tokens = append(tokens, s[start:i])
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		default:
			tokens = append(tokens, string(c))
			i++
		}
	}
	return tokens
}

// extendQualified consumes ".name" suffixes so schema.table stays one token.
func extendQualified(s string, i int) int {
	for i < len(s) && s[i] == '.' {
		i++
		if i >= len(s) {
			return i
		}
		switch s[i] {
		case '`', '"', '[':
			closing := s[i]
			if closing == '[' {
				closing = ']'
			}
			i++
			for i < len(s) && s[i] != closing {
				i++
			}
			i++
		default:
			for i < len(s) && isWordByte(s[i]) {
				i++
			}
		}
	}
	return min(i, len(s))
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}
