// Package sigcheck verifies artifact signatures against a set of trusted
// ed25519 anchors. Signature verification runs before any computed digest is
// trusted: a forged digest without a valid signature must never reach the
// cache.
package sigcheck

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrSignatureMissing fires when policy requires a signature but the
	// source provided none.
	ErrSignatureMissing = errors.New("sigcheck: signature required but not provided")
	// ErrNoAnchorMatched fires when no trust anchor verifies the signature.
	ErrNoAnchorMatched = errors.New("sigcheck: signature did not verify against any trust anchor")
)

// TrustAnchor is a trusted signing identity.
type TrustAnchor struct {
	AnchorID  string `json:"anchor_id" yaml:"anchor_id"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	PublicKey string `json:"public_key" yaml:"public_key"` // hex-encoded ed25519 public key
}

// Policy controls whether and how signatures are checked.
type Policy struct {
	Anchors  []TrustAnchor `json:"anchors" yaml:"anchors"`
	Required bool          `json:"required" yaml:"required"`
}

// Verify checks sigHex (hex-encoded ed25519 signature over data) against the
// configured anchors. It returns the AnchorID of the anchor that verified the
// signature. An empty sigHex is an error only when the policy requires one;
// otherwise verification is skipped and ("", nil) is returned.
func (p Policy) Verify(data []byte, sigHex string) (string, error) {
	if sigHex == "" {
		if p.Required {
			return "", ErrSignatureMissing
		}
		return "", nil
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", fmt.Errorf("sigcheck: invalid signature hex: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return "", fmt.Errorf("sigcheck: invalid signature size %d", len(sig))
	}

	for _, anchor := range p.Anchors {
		pub, err := hex.DecodeString(anchor.PublicKey)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			continue
		}
		if ed25519.Verify(ed25519.PublicKey(pub), data, sig) {
			return anchor.AnchorID, nil
		}
	}
	return "", ErrNoAnchorMatched
}

// Enabled reports whether the policy performs any checking at all.
func (p Policy) Enabled() bool {
	return p.Required || len(p.Anchors) > 0
}
