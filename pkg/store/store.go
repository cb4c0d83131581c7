// Package store is the content-addressed artifact store: it resolves source
// ids to locators, fetches through pluggable providers, verifies bytes, and
// caches them by digest. Nothing unverified ever enters the cache.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/gantrylabs/gantry/pkg/digest"
	"github.com/gantrylabs/gantry/pkg/source"
)

// Artifact is a verified, cached component artifact.
type Artifact struct {
	Digest          digest.Digest
	Bytes           []byte
	MediaType       string
	SourceLabel     string
	DigestVerified  bool
	SignatureAnchor string
}

// Store owns the locator index and the digest-keyed entry cache. Instances
// are safe for concurrent use; construct one per cache, never share a
// process-wide singleton.
type Store struct {
	index   Index
	factory *source.Factory
	policy  VerificationPolicy
	logger  *slog.Logger
	metrics *storeMetrics

	mu      sync.RWMutex
	entries map[string]*Artifact

	group singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithLogger overrides the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New builds a store over the given index, provider factory, and
// verification policy.
func New(index Index, factory *source.Factory, policy VerificationPolicy, opts ...Option) (*Store, error) {
	metrics, err := newStoreMetrics()
	if err != nil {
		return nil, fmt.Errorf("store: metrics setup failed: %w", err)
	}
	s := &Store{
		index:   index,
		factory: factory,
		policy:  policy,
		logger:  slog.Default(),
		metrics: metrics,
		entries: make(map[string]*Artifact),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register associates a source id with a locator. Idempotent; re-registering
// with a different locator updates the index entry but leaves already-cached
// digests intact.
func (s *Store) Register(ctx context.Context, sourceID, locator string) error {
	if sourceID == "" {
		return fmt.Errorf("store: source id must not be empty")
	}
	if _, err := source.ParseLocator(locator); err != nil {
		return err
	}
	return s.index.Put(ctx, sourceID, locator)
}

// Get returns the verified artifact for a source id, fetching and admitting
// it on first use. Repeat calls are index lookups plus a cache read.
// Concurrent calls for the same source id coalesce into one fetch.
func (s *Store) Get(ctx context.Context, sourceID string) (*Artifact, error) {
	entry, ok, err := s.index.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("store: source id %q is not registered", sourceID)
	}

	if !entry.Digest.IsZero() {
		if artifact := s.lookup(entry.Digest); artifact != nil {
			s.metrics.cacheHits.Add(ctx, 1)
			s.logger.Debug("cache hit", "source_id", sourceID, "digest", entry.Digest)
			return artifact, nil
		}
	}

	v, err, _ := s.group.Do(sourceID, func() (any, error) {
		return s.fetchAndAdmit(ctx, sourceID, entry.Locator)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Artifact), nil
}

// Evict removes the cache entry for a digest and clears its index
// associations. Registered locators survive; the next Get re-fetches.
func (s *Store) Evict(ctx context.Context, d digest.Digest) error {
	s.mu.Lock()
	delete(s.entries, d.String())
	s.mu.Unlock()
	return s.index.ClearDigest(ctx, d)
}

// Clear drops every cache entry and all index state.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]*Artifact)
	s.mu.Unlock()
	return s.index.Reset(ctx)
}

// Cached reports whether a digest currently has a cache entry.
func (s *Store) Cached(d digest.Digest) bool {
	return s.lookup(d) != nil
}

func (s *Store) lookup(d digest.Digest) *Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[d.String()]
}

func (s *Store) fetchAndAdmit(ctx context.Context, sourceID, rawLocator string) (*Artifact, error) {
	// A coalesced caller may arrive after the first flight admitted the
	// entry and set the digest.
	if entry, ok, err := s.index.Get(ctx, sourceID); err == nil && ok && !entry.Digest.IsZero() {
		if artifact := s.lookup(entry.Digest); artifact != nil {
			s.metrics.cacheHits.Add(ctx, 1)
			return artifact, nil
		}
	}

	loc, err := source.ParseLocator(rawLocator)
	if err != nil {
		return nil, err
	}

	s.metrics.fetches.Add(ctx, 1)
	payload, err := s.factory.Fetch(ctx, loc)
	if err != nil {
		return nil, err
	}

	// Verification holds no store locks; digest computation is CPU-bound.
	verification, err := s.policy.Verify(payload)
	if err != nil {
		s.metrics.verificationFailures.Add(ctx, 1)
		s.logger.Warn("verification failed, bytes discarded",
			"source_id", sourceID, "locator", rawLocator, "error", err)
		return nil, err
	}

	// A canceled fetch must leave no trace in the cache.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("store: fetch canceled before admission: %w", err)
	}

	artifact := s.admit(payload, verification)
	if err := s.index.SetDigest(ctx, sourceID, artifact.Digest); err != nil {
		return nil, err
	}

	s.logger.Debug("artifact admitted",
		"source_id", sourceID, "digest", artifact.Digest, "bytes", len(artifact.Bytes))
	return artifact, nil
}

// admit inserts atomically. Two writers resolving to the same digest hold
// identical verified bytes, so the second insert is a no-op returning the
// first entry.
func (s *Store) admit(payload *source.Payload, v Verification) *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[v.Digest.String()]; ok {
		return existing
	}
	artifact := &Artifact{
		Digest:          v.Digest,
		Bytes:           payload.Bytes,
		MediaType:       payload.MediaType,
		SourceLabel:     payload.SourceLabel,
		DigestVerified:  v.DigestVerified,
		SignatureAnchor: v.SignatureAnchor,
	}
	s.entries[v.Digest.String()] = artifact
	return artifact
}
