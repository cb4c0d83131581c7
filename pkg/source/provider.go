// Package source fetches raw component artifact bytes from heterogeneous
// locations: local files, HTTP endpoints, layered image layouts, cache blobs,
// and cloud object stores. Providers report what they fetched; verification
// is the store's job, never the provider's.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/gantrylabs/gantry/pkg/digest"
)

// Media types accepted for executable component artifacts.
const (
	MediaTypeWasm        = "application/wasm"
	MediaTypeOctetStream = "application/octet-stream"
)

// ErrNoMatchingArtifact is returned when a source holds no candidate with an
// accepted media type.
var ErrNoMatchingArtifact = errors.New("source: no artifact with an accepted media type")

// Payload is the raw result of one fetch: bytes plus provider-reported
// metadata. AdvertisedDigest and Signature are untrusted hints until the
// store verifies them.
type Payload struct {
	Bytes            []byte
	MediaType        string
	AdvertisedDigest digest.Digest
	Signature        string // hex-encoded, empty when the source ships none
	SourceLabel      string
}

// Provider fetches artifact bytes for locators of one scheme family.
type Provider interface {
	Fetch(ctx context.Context, loc Locator) (*Payload, error)
}

// FetchError reports a failed fetch. NotFound distinguishes a definitively
// absent artifact from a transient failure the caller may retry.
type FetchError struct {
	Locator  string
	NotFound bool
	Err      error
}

func (e *FetchError) Error() string {
	kind := "transient"
	if e.NotFound {
		kind = "not found"
	}
	return fmt.Sprintf("source: fetch %s failed (%s): %v", e.Locator, kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func notFound(loc Locator, err error) *FetchError {
	return &FetchError{Locator: loc.String(), NotFound: true, Err: err}
}

func transient(loc Locator, err error) *FetchError {
	return &FetchError{Locator: loc.String(), Err: err}
}

// IsNotFound reports whether err is a definitive not-found fetch failure.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.NotFound
}
