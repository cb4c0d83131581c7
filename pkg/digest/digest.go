// Package digest provides algorithm-tagged content digests used as cache keys
// and manifest integrity pins throughout Gantry.
package digest

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Algorithm identifies a supported digest algorithm.
type Algorithm string

const (
	SHA256  Algorithm = "sha256"
	BLAKE2b Algorithm = "blake2b" // blake2b-256
)

// hexLen is the rendered length of both supported 256-bit digests.
const hexLen = 64

// Digest is an immutable, algorithm-tagged content hash rendered as
// "<algo>:<lowercase-hex>".
type Digest struct {
	Algorithm Algorithm
	Hex       string
}

// Compute hashes data with the given algorithm.
func Compute(algo Algorithm, data []byte) (Digest, error) {
	switch algo {
	case SHA256:
		sum := sha256.Sum256(data)
		return Digest{Algorithm: SHA256, Hex: hex.EncodeToString(sum[:])}, nil
	case BLAKE2b:
		sum := blake2b.Sum256(data)
		return Digest{Algorithm: BLAKE2b, Hex: hex.EncodeToString(sum[:])}, nil
	default:
		return Digest{}, fmt.Errorf("digest: unsupported algorithm %q", algo)
	}
}

// Parse decodes "<algo>:<hex>" into a Digest. The hex part is normalized to
// lowercase; uppercase input is accepted.
func Parse(s string) (Digest, error) {
	algo, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Digest{}, fmt.Errorf("digest: missing algorithm tag in %q", s)
	}
	switch Algorithm(algo) {
	case SHA256, BLAKE2b:
	default:
		return Digest{}, fmt.Errorf("digest: unsupported algorithm %q", algo)
	}
	rest = strings.ToLower(rest)
	if len(rest) != hexLen {
		return Digest{}, fmt.Errorf("digest: %s value must be %d hex characters, got %d", algo, hexLen, len(rest))
	}
	if _, err := hex.DecodeString(rest); err != nil {
		return Digest{}, fmt.Errorf("digest: invalid hex in %q: %w", s, err)
	}
	return Digest{Algorithm: Algorithm(algo), Hex: rest}, nil
}

// MustParse is Parse for static digests in tests and fixtures.
func MustParse(s string) Digest {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Digest) String() string {
	return string(d.Algorithm) + ":" + d.Hex
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d.Algorithm == "" && d.Hex == ""
}

// Equal compares two digests with constant structure: the full hex strings
// are always compared, so a mismatch position never changes the work done.
func (d Digest) Equal(other Digest) bool {
	algoEq := subtle.ConstantTimeCompare([]byte(d.Algorithm), []byte(other.Algorithm))
	hexEq := subtle.ConstantTimeCompare([]byte(strings.ToLower(d.Hex)), []byte(strings.ToLower(other.Hex)))
	return algoEq&hexEq == 1
}

// MarshalText renders the digest in its wire form.
func (d Digest) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return nil, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText parses the wire form, so digests can sit directly in JSON and
// YAML documents.
func (d *Digest) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Digest{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Matches recomputes the digest of data using d's algorithm and compares.
func (d Digest) Matches(data []byte) (bool, Digest, error) {
	actual, err := Compute(d.Algorithm, data)
	if err != nil {
		return false, Digest{}, err
	}
	return d.Equal(actual), actual, nil
}
