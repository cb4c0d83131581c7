package source

import (
	"fmt"
	"strings"
)

// Scheme tags where a locator points.
type Scheme string

const (
	SchemeFS    Scheme = "fs"    // bare path or file://
	SchemeHTTP  Scheme = "http"  // http://
	SchemeHTTPS Scheme = "https" // https://
	SchemeImage Scheme = "oci"   // oci:// layered image layout
	SchemeCAS   Scheme = "cas"   // cas://<digest> local cache blob
	SchemeS3    Scheme = "s3"    // s3://bucket/key
	SchemeGCS   Scheme = "gs"    // gs://bucket/object
)

// Locator is a parsed source reference. Target is the scheme-stripped body;
// for object stores Bucket and Key are split out.
type Locator struct {
	Scheme Scheme
	Raw    string
	Target string
	Bucket string
	Key    string
}

func (l Locator) String() string { return l.Raw }

// ParseLocator parses a raw source reference. A reference without a scheme
// is a filesystem path.
func ParseLocator(raw string) (Locator, error) {
	if strings.TrimSpace(raw) == "" {
		return Locator{}, fmt.Errorf("source: locator must not be empty")
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Locator{Scheme: SchemeFS, Raw: raw, Target: raw}, nil
	}
	if rest == "" {
		return Locator{}, fmt.Errorf("source: locator %q has an empty target", raw)
	}

	loc := Locator{Raw: raw, Target: rest}
	switch Scheme(scheme) {
	case "file":
		loc.Scheme = SchemeFS
	case SchemeHTTP:
		loc.Scheme = SchemeHTTP
		loc.Target = raw
	case SchemeHTTPS:
		loc.Scheme = SchemeHTTPS
		loc.Target = raw
	case SchemeImage:
		loc.Scheme = SchemeImage
	case SchemeCAS:
		loc.Scheme = SchemeCAS
	case SchemeS3, SchemeGCS:
		loc.Scheme = Scheme(scheme)
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return Locator{}, fmt.Errorf("source: locator %q must name bucket and key", raw)
		}
		loc.Bucket = bucket
		loc.Key = key
	default:
		return Locator{}, fmt.Errorf("source: unknown locator scheme %q", scheme)
	}
	return loc, nil
}
