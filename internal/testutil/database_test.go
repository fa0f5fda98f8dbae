package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedExpenses(t *testing.T) {
	store := NewStorage(t)

	n := SeedExpenses(t, store, "ana@example.com", 3, "TESCO", "NETFLIX", "TESCO")
	assert.EqualValues(t, 3, n)

	descriptions, err := store.UncategorizedDescriptions(context.Background(), "ana@example.com", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"TESCO", "NETFLIX"}, descriptions)
}
