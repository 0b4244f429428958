package console

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KVStore is the key-value persistence collaborator supplied by the hosting
// shell. The console core never assumes a persistence format beyond string
// keys and values.
type KVStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// MemoryStore is an in-process KVStore, used as the default and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// HistoryEntry records one finished invocation for the console's history
// panel.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Server    string    `json:"server"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

// HistoryStore keeps the most recent invocation records in a KVStore,
// newest first, truncated to a fixed limit.
type HistoryStore struct {
	store KVStore
	key   string
	limit int
}

const (
	defaultHistoryKey   = "console.history"
	defaultHistoryLimit = 100
)

// NewHistoryStore creates a history store over the given KVStore. A
// non-positive limit falls back to the default.
func NewHistoryStore(store KVStore, limit int) *HistoryStore {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &HistoryStore{store: store, key: defaultHistoryKey, limit: limit}
}

// Append records one entry, assigning an id and timestamp when missing.
func (h *HistoryStore) Append(entry HistoryEntry) HistoryEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	entries := append([]HistoryEntry{entry}, h.Entries()...)
	if len(entries) > h.limit {
		entries = entries[:h.limit]
	}
	h.save(entries)
	return entry
}

// Entries returns the recorded history, newest first.
func (h *HistoryStore) Entries() []HistoryEntry {
	raw, ok := h.store.Get(h.key)
	if !ok {
		return nil
	}
	var entries []HistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		// A corrupt history blob is discarded rather than surfaced; history
		// is a convenience, not a contract.
		h.store.Remove(h.key)
		return nil
	}
	return entries
}

// Clear discards all history.
func (h *HistoryStore) Clear() {
	h.store.Remove(h.key)
}

func (h *HistoryStore) save(entries []HistoryEntry) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	h.store.Set(h.key, string(raw))
}

// DraftStore keeps per-tool argument drafts so a half-filled invocation
// form survives panel switches.
type DraftStore struct {
	store  KVStore
	prefix string
}

// NewDraftStore creates a draft store over the given KVStore.
func NewDraftStore(store KVStore) *DraftStore {
	return &DraftStore{store: store, prefix: "console.draft."}
}

func (d *DraftStore) draftKey(server, tool string) string {
	return d.prefix + server + "/" + tool
}

// Save stores the current argument draft for a tool.
func (d *DraftStore) Save(server, tool string, arguments map[string]interface{}) error {
	raw, err := json.Marshal(arguments)
	if err != nil {
		return err
	}
	d.store.Set(d.draftKey(server, tool), string(raw))
	return nil
}

// Load returns the stored draft, if any.
func (d *DraftStore) Load(server, tool string) (map[string]interface{}, bool) {
	raw, ok := d.store.Get(d.draftKey(server, tool))
	if !ok {
		return nil, false
	}
	var arguments map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &arguments); err != nil {
		d.store.Remove(d.draftKey(server, tool))
		return nil, false
	}
	return arguments, true
}

// Discard drops the stored draft.
func (d *DraftStore) Discard(server, tool string) {
	d.store.Remove(d.draftKey(server, tool))
}
