package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		got, err := ParseCategory(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCategory("Uncategorized")
	require.NoError(t, err)
	assert.Equal(t, CategoryUncategorized, got)

	got, err = ParseCategory("interested")
	assert.Error(t, err)
	assert.Equal(t, CategoryUncategorized, got)

	got, err = ParseCategory("")
	assert.Error(t, err)
	assert.Equal(t, CategoryUncategorized, got)
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "user@example.com-INBOX-42", DocumentID("user@example.com", "INBOX", 42))

	// Stable across calls, distinct across folders and uids.
	assert.Equal(t, DocumentID("a", "INBOX", 1), DocumentID("a", "INBOX", 1))
	assert.NotEqual(t, DocumentID("a", "INBOX", 1), DocumentID("a", "Sent", 1))
	assert.NotEqual(t, DocumentID("a", "INBOX", 1), DocumentID("a", "INBOX", 2))
}
