package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorySet(t *testing.T) {
	set := CategorySet{"Entertainment", "Groceries", "Transport"}

	assert.True(t, set.Contains("Groceries"))
	assert.False(t, set.Contains("groceries"), "membership is exact")
	assert.Equal(t, 2, set.Index("Transport"))
	assert.Equal(t, -1, set.Index("Rent"))
}

func TestRulesLookupIsCaseInsensitive(t *testing.T) {
	rules := Rules{}
	rules.Set("Groceries", "supermarkets and food stores")

	rule, ok := rules.Lookup("GROCERIES")
	require.True(t, ok)
	assert.Equal(t, "supermarkets and food stores", rule)

	_, ok = Rules(nil).Lookup("Groceries")
	assert.False(t, ok)
}

func TestCategoryRankings(t *testing.T) {
	rankings := CategoryRankings{
		{Category: "Transport", Score: 0.2},
		{Category: "Groceries", Score: 0.5},
		{Category: "Entertainment", Score: 0.5},
	}

	top := rankings.TopN(2)
	require.Len(t, top, 2)
	assert.Equal(t, "Entertainment", top[0].Category, "equal scores break ties by name")
	assert.Equal(t, "Groceries", top[1].Category)
	assert.Equal(t, "Transport", rankings[0].Category, "TopN leaves the receiver untouched")

	assert.Len(t, rankings.TopN(10), 3)
	assert.Empty(t, rankings.TopN(0))
}

func TestDecisionRankings(t *testing.T) {
	d := Decision{Scores: map[string]float64{"A": 0.1, "B": 0.9}}
	rankings := d.Rankings()
	require.Len(t, rankings, 2)
	assert.Equal(t, "B", rankings[0].Category)
}

func TestSQLExampleDocument(t *testing.T) {
	ex := SQLExample{Prompt: "total spend", SQL: "SELECT SUM(expense) FROM expenses"}
	assert.Equal(t, "User query: total spend\nSQL: SELECT SUM(expense) FROM expenses", ex.Document())
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.False(t, JobQueued.IsTerminal())
	assert.False(t, JobRunning.IsTerminal())
	assert.True(t, JobDone.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
}

func TestProjectTable(t *testing.T) {
	p := &ProjectConfig{Tables: []TableSchema{{Name: "expenses"}, {Name: "dbo.budgets"}}}

	tests := []struct {
		name string
		want bool
	}{
		{"expenses", true},
		{"EXPENSES", true},
		{"dbo.budgets", true},
		{"budgets", true},
		{"other_db.expenses", false},
		{"sales.budgets", false},
		{"users", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := p.Table(tt.name)
			assert.Equal(t, tt.want, ok)
		})
	}
}
