package store

import (
	"encoding/json"
	"sync"
)

// MemoryBackend holds the document in process memory with the same snapshot
// semantics as the Redis backend. Used in tests and single-process setups.
type MemoryBackend struct {
	mu  sync.Mutex
	raw []byte
}

// NewMemoryBackend starts from the empty default document.
func NewMemoryBackend() *MemoryBackend {
	raw, _ := json.Marshal(NewDocument())
	return &MemoryBackend{raw: raw}
}

// Read returns a deep copy of the current document.
func (b *MemoryBackend) Read() (*Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var doc Document
	if err := json.Unmarshal(b.raw, &doc); err != nil {
		doc = *NewDocument()
	}
	if doc.Nonces == nil {
		doc.Nonces = map[string]uint64{}
	}
	return &doc, nil
}

// Write snapshots the document.
func (b *MemoryBackend) Write(doc *Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.raw = raw
	b.mu.Unlock()
	return nil
}
