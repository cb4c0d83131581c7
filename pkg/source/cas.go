package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gantrylabs/gantry/pkg/digest"
)

// CASProvider resolves cas://<digest> locators against a local blob
// directory laid out as <hex>.blob files.
type CASProvider struct {
	dir string
}

// NewCASProvider returns a provider reading blobs from dir.
func NewCASProvider(dir string) *CASProvider {
	return &CASProvider{dir: dir}
}

func (p *CASProvider) Fetch(ctx context.Context, loc Locator) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(loc, err)
	}

	d, err := digest.Parse(loc.Target)
	if err != nil {
		return nil, notFound(loc, fmt.Errorf("cas locator must carry a digest: %w", err))
	}

	data, err := os.ReadFile(filepath.Join(p.dir, d.Hex+".blob"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(loc, err)
		}
		return nil, transient(loc, err)
	}

	return &Payload{
		Bytes:            data,
		MediaType:        MediaTypeOctetStream,
		AdvertisedDigest: d,
		SourceLabel:      loc.Raw,
	}, nil
}
