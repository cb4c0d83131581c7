package source

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gantrylabs/gantry/pkg/digest"
)

// Response headers an artifact server may use to advertise integrity
// metadata alongside the bytes.
const (
	HeaderArtifactDigest    = "X-Artifact-Digest"
	HeaderArtifactSignature = "X-Artifact-Signature"
)

// HTTPProvider fetches artifacts over HTTP(S) with client-side rate
// limiting so bulk operations do not hammer a registry.
type HTTPProvider struct {
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient overrides the underlying client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.client = client }
}

// WithRateLimit bounds outgoing requests per second with the given burst.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(p *HTTPProvider) { p.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewHTTPProvider returns an HTTP provider with a 30s timeout and a default
// limit of 10 requests per second.
func NewHTTPProvider(opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *HTTPProvider) Fetch(ctx context.Context, loc Locator) (*Payload, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, transient(loc, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.Target, nil)
	if err != nil {
		return nil, transient(loc, err)
	}
	req.Header.Set("Accept", MediaTypeWasm+", "+MediaTypeOctetStream)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transient(loc, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, notFound(loc, fmt.Errorf("server returned %s", resp.Status))
	default:
		return nil, transient(loc, fmt.Errorf("server returned %s", resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transient(loc, err)
	}

	payload := &Payload{
		Bytes:       data,
		MediaType:   contentMediaType(resp.Header.Get("Content-Type")),
		Signature:   strings.TrimSpace(resp.Header.Get(HeaderArtifactSignature)),
		SourceLabel: loc.Raw,
	}

	if adv := strings.TrimSpace(resp.Header.Get(HeaderArtifactDigest)); adv != "" {
		d, err := digest.Parse(adv)
		if err != nil {
			return nil, transient(loc, fmt.Errorf("malformed %s header: %w", HeaderArtifactDigest, err))
		}
		payload.AdvertisedDigest = d
	}
	return payload, nil
}

func contentMediaType(header string) string {
	if header == "" {
		return MediaTypeOctetStream
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return MediaTypeOctetStream
	}
	return mt
}
