package describe

import (
	"context"
	"fmt"
	"strings"
)

// Attempt records one failed resolution step for the operator.
type Attempt struct {
	Step Provenance
	Err  error
}

// UnavailableError reports that every resolution step failed. It lists which
// steps were attempted and why each failed; the operator should never have to
// re-run with verbose logging to learn that.
type UnavailableError struct {
	Attempts []Attempt
}

func (e *UnavailableError) Error() string {
	var b strings.Builder
	b.WriteString("describe: no description available")
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %v", a.Step, a.Err)
	}
	return b.String()
}

// Resolver runs the describe fallback chain: embedded section, then the
// describe export through the execution host, then sidecar files. Steps are
// tried strictly in order and the first success wins.
type Resolver struct {
	invoker    Invoker
	exportName string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithInvoker enables the export step using the given execution host.
func WithInvoker(invoker Invoker) ResolverOption {
	return func(r *Resolver) { r.invoker = invoker }
}

// WithExportName overrides the export invoked in step two.
func WithExportName(name string) ResolverOption {
	return func(r *Resolver) { r.exportName = name }
}

// NewResolver builds a resolver. Without an invoker the export step is
// skipped (recorded as an attempt, not silently dropped).
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{exportName: DefaultExportName}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve recovers the description for a component artifact. artifactDir is
// the directory the artifact was materialized in; empty disables the sidecar
// step.
func (r *Resolver) Resolve(ctx context.Context, wasm []byte, artifactDir string) (*Description, error) {
	var attempts []Attempt

	desc, err := fromEmbedded(ctx, wasm)
	if err == nil {
		return desc, nil
	}
	attempts = append(attempts, Attempt{Step: ProvenanceEmbedded, Err: err})

	if r.invoker != nil {
		desc, err = fromExport(ctx, r.invoker, wasm, r.exportName)
		if err == nil {
			return desc, nil
		}
		attempts = append(attempts, Attempt{Step: ProvenanceExport, Err: err})
	} else {
		attempts = append(attempts, Attempt{Step: ProvenanceExport, Err: fmt.Errorf("describe: no execution host configured")})
	}

	if artifactDir != "" {
		desc, err = fromSidecar(artifactDir)
		if err == nil {
			return desc, nil
		}
		attempts = append(attempts, Attempt{Step: ProvenanceSidecar, Err: err})
	} else {
		attempts = append(attempts, Attempt{Step: ProvenanceSidecar, Err: fmt.Errorf("describe: no artifact directory")})
	}

	return nil, &UnavailableError{Attempts: attempts}
}
