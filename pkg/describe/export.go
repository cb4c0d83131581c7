package describe

import (
	"context"
	"fmt"
)

// DefaultExportName is the operation invoked to ask a component to describe
// itself.
const DefaultExportName = "describe"

// Invoker is the execution host's invocation contract. The resolver only
// needs one round trip: run an operation against a module and read its
// output bytes.
type Invoker interface {
	Invoke(ctx context.Context, wasm []byte, op string, input []byte) ([]byte, error)
}

// fromExport asks the component to describe itself through the execution
// host.
func fromExport(ctx context.Context, invoker Invoker, wasm []byte, exportName string) (*Description, error) {
	out, err := invoker.Invoke(ctx, wasm, exportName, nil)
	if err != nil {
		return nil, fmt.Errorf("describe: %s export failed: %w", exportName, err)
	}
	desc, err := ParseDescription(out)
	if err != nil {
		return nil, err
	}
	desc.Provenance = ProvenanceExport
	return desc, nil
}
