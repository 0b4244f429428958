package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	_, ok := store.Get("missing")
	assert.False(t, ok)

	store.Set("a", "1")
	value, ok := store.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", value)

	store.Remove("a")
	_, ok = store.Get("a")
	assert.False(t, ok)
}

func TestHistoryStoreAppendAndTruncate(t *testing.T) {
	history := NewHistoryStore(NewMemoryStore(), 3)

	for _, status := range []string{"completed", "failed", "completed", "completed"} {
		history.Append(HistoryEntry{Server: "acme", Action: ActionToolCall, Status: status})
	}

	entries := history.Entries()
	require.Len(t, entries, 3, "history is truncated to its limit")

	// Newest first.
	assert.Equal(t, "completed", entries[0].Status)
	assert.Equal(t, "failed", entries[2].Status)

	for _, entry := range entries {
		assert.NotEmpty(t, entry.ID)
		assert.False(t, entry.At.IsZero())
	}
}

func TestHistoryStoreDiscardsCorruptBlob(t *testing.T) {
	store := NewMemoryStore()
	store.Set("console.history", "{corrupt")

	history := NewHistoryStore(store, 10)
	assert.Nil(t, history.Entries())

	_, ok := store.Get("console.history")
	assert.False(t, ok, "corrupt blob is removed")
}

func TestHistoryStoreClear(t *testing.T) {
	history := NewHistoryStore(NewMemoryStore(), 10)
	history.Append(HistoryEntry{Server: "acme", Action: ActionPromptCall, Status: "completed"})
	require.NotEmpty(t, history.Entries())

	history.Clear()
	assert.Empty(t, history.Entries())
}

func TestDraftStoreRoundTrip(t *testing.T) {
	drafts := NewDraftStore(NewMemoryStore())

	_, ok := drafts.Load("acme", "echo")
	assert.False(t, ok)

	require.NoError(t, drafts.Save("acme", "echo", map[string]interface{}{"text": "hi"}))
	args, ok := drafts.Load("acme", "echo")
	require.True(t, ok)
	assert.Equal(t, "hi", args["text"])

	// Drafts are scoped per server and tool.
	_, ok = drafts.Load("other", "echo")
	assert.False(t, ok)

	drafts.Discard("acme", "echo")
	_, ok = drafts.Load("acme", "echo")
	assert.False(t, ok)
}
