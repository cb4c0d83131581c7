package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gantrylabs/gantry/pkg/digest"
)

// ImageManifest is the layered image descriptor: an ordered list of layers,
// each with a media type and a digest naming its blob.
type ImageManifest struct {
	SchemaVersion int          `json:"schemaVersion"`
	MediaType     string       `json:"mediaType,omitempty"`
	Layers        []ImageLayer `json:"layers"`
}

// ImageLayer is one blob reference inside an image manifest.
type ImageLayer struct {
	MediaType string `json:"mediaType"`
	Digest    string `json:"digest"`
	Size      int64  `json:"size,omitempty"`
}

// ImageProvider reads an on-disk layered image layout: a directory with a
// manifest.json and a blobs/<algo>/<hex> tree. The component artifact is the
// FIRST layer carrying an accepted executable media type; later matching
// layers are ignored.
type ImageProvider struct{}

// NewImageProvider returns a layered image provider.
func NewImageProvider() *ImageProvider { return &ImageProvider{} }

func (p *ImageProvider) Fetch(ctx context.Context, loc Locator) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(loc, err)
	}

	raw, err := os.ReadFile(filepath.Join(loc.Target, "manifest.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(loc, fmt.Errorf("image layout has no manifest.json"))
		}
		return nil, transient(loc, err)
	}

	var im ImageManifest
	if err := json.Unmarshal(raw, &im); err != nil {
		return nil, transient(loc, fmt.Errorf("image manifest is not valid JSON: %w", err))
	}

	layer, err := SelectArtifactLayer(im.Layers)
	if err != nil {
		return nil, err
	}

	d, err := digest.Parse(layer.Digest)
	if err != nil {
		return nil, transient(loc, fmt.Errorf("layer digest %q: %w", layer.Digest, err))
	}

	blobPath := filepath.Join(loc.Target, "blobs", string(d.Algorithm), d.Hex)
	data, err := os.ReadFile(blobPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(loc, fmt.Errorf("blob %s missing from layout", d))
		}
		return nil, transient(loc, err)
	}

	return &Payload{
		Bytes:            data,
		MediaType:        layer.MediaType,
		AdvertisedDigest: d,
		SourceLabel:      loc.Raw,
	}, nil
}

// SelectArtifactLayer picks the first layer with an accepted executable
// media type. No match is ErrNoMatchingArtifact.
func SelectArtifactLayer(layers []ImageLayer) (ImageLayer, error) {
	for _, layer := range layers {
		switch layer.MediaType {
		case MediaTypeWasm, MediaTypeOctetStream:
			return layer, nil
		}
	}
	return ImageLayer{}, ErrNoMatchingArtifact
}
