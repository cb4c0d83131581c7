package store

import (
	"errors"

	"github.com/gantrylabs/gantry/pkg/digest"
	"github.com/gantrylabs/gantry/pkg/sigcheck"
	"github.com/gantrylabs/gantry/pkg/source"
)

// ErrDigestMissing fires when policy requires a digest pin but neither the
// deployment nor the source provided one.
var ErrDigestMissing = errors.New("store: digest verification required but no expected digest is available")

// DigestPolicy controls digest verification. Expected is the deployment's
// pin; when unset, a source-advertised digest is used instead. Required with
// no expected value from either side is a hard failure.
type DigestPolicy struct {
	Algo     digest.Algorithm `json:"algo,omitempty" yaml:"algo,omitempty"`
	Expected digest.Digest    `json:"expected,omitempty" yaml:"expected,omitempty"`
	Required bool             `json:"required" yaml:"required"`
}

// VerificationPolicy sequences the integrity checks applied to fetched bytes
// before they may enter the cache.
type VerificationPolicy struct {
	Digest    DigestPolicy    `json:"digest" yaml:"digest"`
	Signature sigcheck.Policy `json:"signature" yaml:"signature"`
}

// Verification records what was proven about an artifact's bytes.
type Verification struct {
	Digest          digest.Digest
	DigestVerified  bool
	SignatureAnchor string
}

// Verify runs the checks in their required order: the signature covers the
// raw bytes and is checked first, so a computed digest is never trusted
// before the bytes themselves are. Returns the content digest used as the
// cache key.
func (p VerificationPolicy) Verify(payload *source.Payload) (Verification, error) {
	var result Verification

	if p.Signature.Enabled() {
		anchorID, err := p.Signature.Verify(payload.Bytes, payload.Signature)
		if err != nil {
			return Verification{}, &VerificationError{Cause: CauseSignature, Err: err}
		}
		result.SignatureAnchor = anchorID
	}

	expected := p.Digest.Expected
	if expected.IsZero() {
		expected = payload.AdvertisedDigest
	}

	if expected.IsZero() {
		if p.Digest.Required {
			return Verification{}, &VerificationError{Cause: CauseDigest, Err: ErrDigestMissing}
		}
		algo := p.Digest.Algo
		if algo == "" {
			algo = digest.SHA256
		}
		d, err := digest.Compute(algo, payload.Bytes)
		if err != nil {
			return Verification{}, &VerificationError{Cause: CauseDigest, Err: err}
		}
		result.Digest = d
		return result, nil
	}

	ok, actual, err := expected.Matches(payload.Bytes)
	if err != nil {
		return Verification{}, &VerificationError{Cause: CauseDigest, Err: err}
	}
	if !ok {
		return Verification{}, &VerificationError{
			Cause:    CauseDigest,
			Expected: expected.String(),
			Actual:   actual.String(),
		}
	}
	result.Digest = expected
	result.DigestVerified = true
	return result, nil
}
