package model

import "fmt"

// LabeledExample is a transaction text with a known category, used for few-shot classification.
type LabeledExample struct {
	Transaction string `mapstructure:"transaction" json:"transaction" yaml:"transaction"`
	Category    string `mapstructure:"category" json:"category" yaml:"category"`
}

// SQLExample is a natural-language question paired with the SQL that answers it.
type SQLExample struct {
	Prompt  string `json:"prompt"`
	SQL     string `json:"sql"`
	Dialect string `json:"-"`
}

// Document renders the example the way it is embedded in the example index.
func (e SQLExample) Document() string {
	return fmt.Sprintf("User query: %s\nSQL: %s", e.Prompt, e.SQL)
}
