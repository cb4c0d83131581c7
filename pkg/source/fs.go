package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gantrylabs/gantry/pkg/manifest"
)

// FSProvider fetches artifacts from the local filesystem. A locator may point
// at an artifact file directly, or at a component directory holding a
// component.json manifest that names the binary and its digest pin.
type FSProvider struct{}

// NewFSProvider returns a filesystem provider.
func NewFSProvider() *FSProvider { return &FSProvider{} }

func (p *FSProvider) Fetch(ctx context.Context, loc Locator) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(loc, err)
	}

	info, err := os.Stat(loc.Target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(loc, err)
		}
		return nil, transient(loc, err)
	}

	if info.IsDir() {
		return p.fetchComponentDir(loc)
	}
	return p.fetchFile(loc, loc.Target)
}

func (p *FSProvider) fetchComponentDir(loc Locator) (*Payload, error) {
	manifestPath := filepath.Join(loc.Target, "component.json")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(loc, fmt.Errorf("component directory has no component.json"))
		}
		return nil, transient(loc, err)
	}

	m, err := manifest.Parse(raw)
	if err != nil {
		return nil, transient(loc, err)
	}
	rel, ok := m.PrimaryArtifact()
	if !ok {
		return nil, notFound(loc, fmt.Errorf("manifest declares no %s artifact", manifest.RoleComponentWasm))
	}

	payload, err := p.fetchFile(loc, filepath.Join(loc.Target, rel))
	if err != nil {
		return nil, err
	}
	if pin, ok := m.PinnedDigest(manifest.RoleComponentWasm); ok {
		payload.AdvertisedDigest = pin
	}
	return payload, nil
}

func (p *FSProvider) fetchFile(loc Locator, path string) (*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(loc, err)
		}
		return nil, transient(loc, err)
	}

	payload := &Payload{
		Bytes:       data,
		MediaType:   mediaTypeForPath(path),
		SourceLabel: loc.Raw,
	}

	// Detached signature ships as a hex sidecar next to the binary.
	if sig, err := os.ReadFile(path + ".sig"); err == nil {
		payload.Signature = strings.TrimSpace(string(sig))
	} else if !os.IsNotExist(err) {
		return nil, transient(loc, err)
	}
	return payload, nil
}

func mediaTypeForPath(path string) string {
	if filepath.Ext(path) == ".wasm" {
		return MediaTypeWasm
	}
	return MediaTypeOctetStream
}
