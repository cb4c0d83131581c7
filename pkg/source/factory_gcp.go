//go:build gcp

package source

import (
	"context"
	"fmt"
)

// RegisterGCS wires the gs:// scheme.
func (f *Factory) RegisterGCS(ctx context.Context) error {
	p, err := NewGCSProvider(ctx)
	if err != nil {
		return fmt.Errorf("source: gcs provider setup failed: %w", err)
	}
	f.Register(SchemeGCS, p)
	return nil
}
