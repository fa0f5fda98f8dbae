package model

import "strings"

// CategorySet is the ordered list of categories configured for a tenant.
// Order matters: it is the tie-break order for classification decisions.
type CategorySet []string

// Contains reports whether name is one of the configured categories (exact match).
func (s CategorySet) Contains(name string) bool {
	return s.Index(name) >= 0
}

// Index returns the position of name in the set, or -1.
func (s CategorySet) Index(name string) int {
	for i, c := range s {
		if c == name {
			return i
		}
	}
	return -1
}

// Rules maps a lower-cased category name to free-text guidance for that category.
type Rules map[string]string

// Lookup returns the rule registered for category, matching case-insensitively.
func (r Rules) Lookup(category string) (string, bool) {
	if r == nil {
		return "", false
	}
	rule, ok := r[strings.ToLower(category)]
	return rule, ok
}

// Set registers rule for category under its lower-cased name.
func (r Rules) Set(category, rule string) {
	r[strings.ToLower(category)] = rule
}
