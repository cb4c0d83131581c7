package store

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantrylabs/gantry/pkg/digest"
	"github.com/gantrylabs/gantry/pkg/sigcheck"
	"github.com/gantrylabs/gantry/pkg/source"
)

// countingProvider serves fixed payloads and counts round trips.
type countingProvider struct {
	mu       sync.Mutex
	payloads map[string]*source.Payload
	calls    atomic.Int64
	block    chan struct{} // when set, Fetch waits for it to close
}

func (p *countingProvider) Fetch(ctx context.Context, loc source.Locator) (*source.Payload, error) {
	p.calls.Add(1)
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	payload, ok := p.payloads[loc.Raw]
	if !ok {
		return nil, &source.FetchError{Locator: loc.Raw, NotFound: true, Err: fmt.Errorf("no payload")}
	}
	cp := *payload
	return &cp, nil
}

func (p *countingProvider) set(raw string, payload *source.Payload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.payloads == nil {
		p.payloads = make(map[string]*source.Payload)
	}
	p.payloads[raw] = payload
}

func newTestStore(t *testing.T, provider source.Provider, policy VerificationPolicy) *Store {
	t.Helper()
	factory := source.NewFactory(t.TempDir())
	factory.Register(source.SchemeHTTPS, provider)
	s, err := New(NewMemoryIndex(), factory, policy)
	require.NoError(t, err)
	return s
}

func TestGetEndToEndWithPinnedDigest(t *testing.T) {
	// Register a source whose manifest-pinned digest matches the bytes; a
	// single get admits exactly one cache entry keyed by that digest.
	dir := t.TempDir()
	body := []byte("verified component bytes")
	pin, err := digest.Compute(digest.SHA256, body)
	require.NoError(t, err)

	wasmPath := filepath.Join(dir, "component.wasm")
	require.NoError(t, os.WriteFile(wasmPath, body, 0o644))
	manifest := fmt.Sprintf(`{
		"id": "acme.local", "name": "local", "version": "1.0.0",
		"world": "gantry:component/runner@0.3.0",
		"artifacts": {"component_wasm": "component.wasm"},
		"hashes": {"component_wasm": %q}
	}`, pin.String())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "component.json"), []byte(manifest), 0o644))

	s, err := New(NewMemoryIndex(), source.NewFactory(t.TempDir()), VerificationPolicy{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "local", dir))

	artifact, err := s.Get(ctx, "local")
	require.NoError(t, err)
	assert.True(t, pin.Equal(artifact.Digest))
	assert.Equal(t, body, artifact.Bytes)
	assert.True(t, artifact.DigestVerified)
	assert.Len(t, s.entries, 1)
	assert.True(t, s.Cached(pin))
}

func TestGetIdempotent(t *testing.T) {
	provider := &countingProvider{}
	provider.set("https://r.example/a", &source.Payload{
		Bytes:       []byte("artifact a"),
		MediaType:   source.MediaTypeWasm,
		SourceLabel: "https://r.example/a",
	})
	s := newTestStore(t, provider, VerificationPolicy{})

	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "a", "https://r.example/a"))

	first, err := s.Get(ctx, "a")
	require.NoError(t, err)
	second, err := s.Get(ctx, "a")
	require.NoError(t, err)

	assert.True(t, first.Digest.Equal(second.Digest))
	assert.Equal(t, first.Bytes, second.Bytes)
	assert.Equal(t, int64(1), provider.calls.Load(), "second get must not round-trip")
}

func TestGetTamperDetection(t *testing.T) {
	body := []byte("original bytes")
	pin, err := digest.Compute(digest.SHA256, body)
	require.NoError(t, err)

	tampered := append([]byte{}, body...)
	tampered[0] ^= 0x01

	provider := &countingProvider{}
	provider.set("https://r.example/t", &source.Payload{
		Bytes:            tampered,
		AdvertisedDigest: pin,
		SourceLabel:      "https://r.example/t",
	})
	s := newTestStore(t, provider, VerificationPolicy{})

	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "t", "https://r.example/t"))

	_, err = s.Get(ctx, "t")
	require.Error(t, err)
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CauseDigest, verr.Cause)
	assert.Equal(t, pin.String(), verr.Expected)
	assert.Empty(t, s.entries, "failed verification must not populate the cache")
}

func TestGetNoPartialAdmission(t *testing.T) {
	body := []byte("good bytes")
	pin, err := digest.Compute(digest.SHA256, body)
	require.NoError(t, err)

	bad := append([]byte{}, body...)
	bad[3] ^= 0xff

	provider := &countingProvider{}
	provider.set("https://r.example/p", &source.Payload{
		Bytes:            bad,
		AdvertisedDigest: pin,
		SourceLabel:      "https://r.example/p",
	})
	s := newTestStore(t, provider, VerificationPolicy{})

	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "p", "https://r.example/p"))

	_, err = s.Get(ctx, "p")
	require.Error(t, err)
	assert.False(t, s.Cached(pin))

	// The source recovers; the next get re-fetches rather than serving
	// anything stale.
	provider.set("https://r.example/p", &source.Payload{
		Bytes:            body,
		AdvertisedDigest: pin,
		SourceLabel:      "https://r.example/p",
	})
	artifact, err := s.Get(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, body, artifact.Bytes)
	assert.Equal(t, int64(2), provider.calls.Load())
}

func TestGetSignatureVerification(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	body := []byte("signed artifact")
	sig := ed25519.Sign(priv, body)

	policy := VerificationPolicy{
		Signature: sigcheck.Policy{
			Required: true,
			Anchors: []sigcheck.TrustAnchor{
				{AnchorID: "release", PublicKey: hex.EncodeToString(pub)},
			},
		},
	}

	t.Run("valid signature admits and records anchor", func(t *testing.T) {
		provider := &countingProvider{}
		provider.set("https://r.example/s", &source.Payload{
			Bytes:     body,
			Signature: hex.EncodeToString(sig),
		})
		s := newTestStore(t, provider, policy)

		ctx := context.Background()
		require.NoError(t, s.Register(ctx, "s", "https://r.example/s"))
		artifact, err := s.Get(ctx, "s")
		require.NoError(t, err)
		assert.Equal(t, "release", artifact.SignatureAnchor)
	})

	t.Run("missing signature rejected before digest is trusted", func(t *testing.T) {
		provider := &countingProvider{}
		provider.set("https://r.example/u", &source.Payload{Bytes: body})
		s := newTestStore(t, provider, policy)

		ctx := context.Background()
		require.NoError(t, s.Register(ctx, "u", "https://r.example/u"))
		_, err := s.Get(ctx, "u")
		var verr *VerificationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, CauseSignature, verr.Cause)
		assert.ErrorIs(t, err, sigcheck.ErrSignatureMissing)
		assert.Empty(t, s.entries)
	})
}

func TestGetDigestRequiredWithoutPin(t *testing.T) {
	provider := &countingProvider{}
	provider.set("https://r.example/n", &source.Payload{Bytes: []byte("unpinned")})
	s := newTestStore(t, provider, VerificationPolicy{
		Digest: DigestPolicy{Required: true},
	})

	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "n", "https://r.example/n"))

	_, err := s.Get(ctx, "n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDigestMissing)
	assert.Empty(t, s.entries)
}

func TestGetConcurrentCoalesce(t *testing.T) {
	provider := &countingProvider{block: make(chan struct{})}
	provider.set("https://r.example/c", &source.Payload{Bytes: []byte("shared artifact")})
	s := newTestStore(t, provider, VerificationPolicy{})

	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "c", "https://r.example/c"))

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Artifact, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Get(ctx, "c")
		}(i)
	}
	close(provider.block)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[0].Digest.Equal(results[i].Digest))
	}
	assert.Equal(t, int64(1), provider.calls.Load(), "concurrent gets must coalesce into one fetch")
	assert.Len(t, s.entries, 1)
}

func TestGetCancellationLeavesNoEntry(t *testing.T) {
	body := []byte("never admitted")
	pin, err := digest.Compute(digest.SHA256, body)
	require.NoError(t, err)

	provider := &countingProvider{}
	provider.set("https://r.example/x", &source.Payload{Bytes: body, AdvertisedDigest: pin})
	s := newTestStore(t, provider, VerificationPolicy{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Register(ctx, "x", "https://r.example/x"))
	cancel()

	_, err = s.Get(ctx, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.Cached(pin))
}

func TestEvictAndClear(t *testing.T) {
	provider := &countingProvider{}
	provider.set("https://r.example/e", &source.Payload{Bytes: []byte("evictable")})
	s := newTestStore(t, provider, VerificationPolicy{})

	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "e", "https://r.example/e"))

	artifact, err := s.Get(ctx, "e")
	require.NoError(t, err)
	require.True(t, s.Cached(artifact.Digest))

	require.NoError(t, s.Evict(ctx, artifact.Digest))
	assert.False(t, s.Cached(artifact.Digest))

	// Registration survives eviction; the next get re-fetches.
	_, err = s.Get(ctx, "e")
	require.NoError(t, err)
	assert.Equal(t, int64(2), provider.calls.Load())

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.entries)
	_, err = s.Get(ctx, "e")
	require.Error(t, err, "clear drops registrations too")
}

func TestRegisterValidation(t *testing.T) {
	s, err := New(NewMemoryIndex(), source.NewFactory(t.TempDir()), VerificationPolicy{})
	require.NoError(t, err)

	ctx := context.Background()
	assert.Error(t, s.Register(ctx, "", "/tmp/x"))
	assert.Error(t, s.Register(ctx, "bad", "ftp://host/x"))

	// Re-registering with a different locator updates the index without
	// touching cached digests.
	require.NoError(t, s.Register(ctx, "a", "/tmp/first"))
	require.NoError(t, s.Register(ctx, "a", "/tmp/second"))
	entry, ok, err := s.index.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/tmp/second", entry.Locator)
}
