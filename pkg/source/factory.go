package source

import (
	"context"
	"fmt"
	"sync"
)

// Factory maps locator schemes to providers. Core schemes (fs, http, https,
// oci, cas) are registered by default; cloud providers need credentials and
// are registered by the caller or via RegisterCloud.
type Factory struct {
	mu        sync.RWMutex
	providers map[Scheme]Provider
}

// NewFactory returns a factory with the core schemes wired. casDir is the
// blob directory backing cas:// locators.
func NewFactory(casDir string) *Factory {
	httpProvider := NewHTTPProvider()
	return &Factory{
		providers: map[Scheme]Provider{
			SchemeFS:    NewFSProvider(),
			SchemeHTTP:  httpProvider,
			SchemeHTTPS: httpProvider,
			SchemeImage: NewImageProvider(),
			SchemeCAS:   NewCASProvider(casDir),
		},
	}
}

// Register adds or replaces the provider for a scheme.
func (f *Factory) Register(scheme Scheme, p Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[scheme] = p
}

// RegisterS3 wires the s3:// scheme.
func (f *Factory) RegisterS3(ctx context.Context, cfg S3Config) error {
	p, err := NewS3Provider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("source: s3 provider setup failed: %w", err)
	}
	f.Register(SchemeS3, p)
	return nil
}

// ProviderFor resolves the provider for a locator's scheme.
func (f *Factory) ProviderFor(loc Locator) (Provider, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.providers[loc.Scheme]
	if !ok {
		return nil, fmt.Errorf("source: no provider registered for scheme %q", loc.Scheme)
	}
	return p, nil
}

// Fetch parses nothing; it resolves the provider for loc and fetches.
func (f *Factory) Fetch(ctx context.Context, loc Locator) (*Payload, error) {
	p, err := f.ProviderFor(loc)
	if err != nil {
		return nil, err
	}
	return p.Fetch(ctx, loc)
}
