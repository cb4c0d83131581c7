package store

import (
	"context"
	"sync"

	"github.com/gantrylabs/gantry/pkg/digest"
)

// IndexEntry maps a source id to its registered locator and, once a fetch
// has been verified, the content digest of its bytes.
type IndexEntry struct {
	SourceID string
	Locator  string
	Digest   digest.Digest
}

// Index is the locator index: source id → locator + last verified digest.
// Implementations must make mutations mutually exclusive; entry byte I/O
// never goes through the index.
type Index interface {
	// Put registers or updates a locator. A changed locator clears the
	// recorded digest for that source id; cached blobs stay valid.
	Put(ctx context.Context, sourceID, locator string) error
	// SetDigest records the verified digest for a source id.
	SetDigest(ctx context.Context, sourceID string, d digest.Digest) error
	// Get looks up a source id.
	Get(ctx context.Context, sourceID string) (IndexEntry, bool, error)
	// ClearDigest removes digest associations matching d from all entries.
	ClearDigest(ctx context.Context, d digest.Digest) error
	// Reset drops all entries.
	Reset(ctx context.Context) error
}

// MemoryIndex is the in-process Index.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]IndexEntry
}

// NewMemoryIndex returns an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]IndexEntry)}
}

func (m *MemoryIndex) Put(ctx context.Context, sourceID, locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[sourceID]
	if ok && entry.Locator == locator {
		return nil
	}
	m.entries[sourceID] = IndexEntry{SourceID: sourceID, Locator: locator}
	return nil
}

func (m *MemoryIndex) SetDigest(ctx context.Context, sourceID string, d digest.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[sourceID]
	if !ok {
		return nil
	}
	entry.Digest = d
	m.entries[sourceID] = entry
	return nil
}

func (m *MemoryIndex) Get(ctx context.Context, sourceID string) (IndexEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[sourceID]
	return entry, ok, nil
}

func (m *MemoryIndex) ClearDigest(ctx context.Context, d digest.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.entries {
		if entry.Digest.Equal(d) {
			entry.Digest = digest.Digest{}
			m.entries[id] = entry
		}
	}
	return nil
}

func (m *MemoryIndex) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]IndexEntry)
	return nil
}
