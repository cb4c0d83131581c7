//go:build !gcp

package source

import (
	"context"
	"fmt"
)

// RegisterGCS fails unless the binary was built with -tags gcp.
func (f *Factory) RegisterGCS(ctx context.Context) error {
	return fmt.Errorf("source: gcs support is not enabled in this build (use -tags gcp)")
}
