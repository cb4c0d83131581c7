//go:build gcp

package source

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/gantrylabs/gantry/pkg/digest"
)

// Object metadata keys carrying integrity hints on stored artifacts.
const (
	gcsMetaDigest    = "artifact-digest"
	gcsMetaSignature = "artifact-signature"
)

// GCSProvider fetches artifacts from gs://bucket/object locators.
type GCSProvider struct {
	client *storage.Client
}

// NewGCSProvider creates a GCS-backed provider using Application Default
// Credentials.
func NewGCSProvider(ctx context.Context) (*GCSProvider, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSProvider{client: client}, nil
}

func (p *GCSProvider) Fetch(ctx context.Context, loc Locator) (*Payload, error) {
	obj := p.client.Bucket(loc.Bucket).Object(loc.Key)

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, notFound(loc, err)
		}
		return nil, transient(loc, err)
	}

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, transient(loc, err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, transient(loc, err)
	}

	payload := &Payload{
		Bytes:       data,
		MediaType:   contentMediaType(attrs.ContentType),
		Signature:   strings.TrimSpace(attrs.Metadata[gcsMetaSignature]),
		SourceLabel: loc.Raw,
	}
	if adv := strings.TrimSpace(attrs.Metadata[gcsMetaDigest]); adv != "" {
		d, err := digest.Parse(adv)
		if err != nil {
			return nil, transient(loc, err)
		}
		payload.AdvertisedDigest = d
	}
	return payload, nil
}

// Close closes the underlying client.
func (p *GCSProvider) Close() error {
	return p.client.Close()
}
