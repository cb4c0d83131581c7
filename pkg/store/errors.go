package store

import "fmt"

// VerificationCause names which check failed.
type VerificationCause string

const (
	CauseDigest    VerificationCause = "digest"
	CauseSignature VerificationCause = "signature"
)

// VerificationError reports a failed integrity check. Bytes that produce one
// are discarded immediately and never enter the cache.
type VerificationError struct {
	Cause    VerificationCause
	Expected string
	Actual   string
	Err      error
}

func (e *VerificationError) Error() string {
	switch {
	case e.Expected != "" && e.Actual != "":
		return fmt.Sprintf("store: %s verification failed: expected %s, got %s", e.Cause, e.Expected, e.Actual)
	case e.Err != nil:
		return fmt.Sprintf("store: %s verification failed: %v", e.Cause, e.Err)
	default:
		return fmt.Sprintf("store: %s verification failed", e.Cause)
	}
}

func (e *VerificationError) Unwrap() error { return e.Err }
