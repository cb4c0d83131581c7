package describe

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
)

// CustomSectionName is the wasm custom section components embed their
// describe payload in.
const CustomSectionName = "component-describe"

// selfDescribeTag optionally prefixes the embedded payload; it is stripped
// before JSON parsing.
var selfDescribeTag = []byte{0xd9, 0xd9, 0xf7}

var errNoEmbeddedPayload = errors.New("describe: module has no " + CustomSectionName + " custom section")

// fromEmbedded compiles the module with custom sections retained and reads
// the describe payload out of the component-describe section.
func fromEmbedded(ctx context.Context, wasm []byte) (*Description, error) {
	runtime := wazero.NewRuntimeWithConfig(ctx,
		wazero.NewRuntimeConfig().WithCustomSections(true))
	defer func() { _ = runtime.Close(ctx) }()

	compiled, err := runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("describe: module compile failed: %w", err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	for _, section := range compiled.CustomSections() {
		if section.Name() != CustomSectionName {
			continue
		}
		payload := bytes.TrimPrefix(section.Data(), selfDescribeTag)
		desc, err := ParseDescription(payload)
		if err != nil {
			return nil, err
		}
		desc.Provenance = ProvenanceEmbedded
		return desc, nil
	}
	return nil, errNoEmbeddedPayload
}
