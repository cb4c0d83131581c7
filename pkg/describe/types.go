// Package describe recovers a component's self-description through an
// ordered fallback chain: metadata embedded in the wasm binary, a describe
// export invoked through the execution host, and finally a sidecar JSON file
// shipped beside the artifact.
package describe

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/gantrylabs/gantry/pkg/capability"
)

// Provenance records which resolution step produced a description.
type Provenance string

const (
	ProvenanceEmbedded Provenance = "embedded"
	ProvenanceExport   Provenance = "export"
	ProvenanceSidecar  Provenance = "sidecar"
)

// Operation is one callable operation a component exposes.
type Operation struct {
	Name         string          `json:"name"`
	InputSchema  json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
}

// Description is a component's self-description: identity, interface world,
// operations, capability requirements, and any named schemas it publishes.
type Description struct {
	ID           string                     `json:"id"`
	Name         string                     `json:"name"`
	Version      string                     `json:"version"`
	World        string                     `json:"world"`
	Operations   []Operation                `json:"operations,omitempty"`
	Capabilities capability.Declaration     `json:"capabilities"`
	Schemas      map[string]json.RawMessage `json:"schemas,omitempty"`

	// Provenance is set by the resolver, not carried on the wire.
	Provenance Provenance `json:"-"`
}

// ParseDescription decodes and shape-checks a describe payload. Payloads
// missing identity fields are rejected outright rather than coerced into a
// partial description.
func ParseDescription(data []byte) (*Description, error) {
	var desc Description
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("describe: payload is not valid JSON: %w", err)
	}
	if desc.ID == "" {
		return nil, fmt.Errorf("describe: payload missing id")
	}
	if desc.Name == "" {
		return nil, fmt.Errorf("describe: payload missing name")
	}
	if desc.Version == "" {
		return nil, fmt.Errorf("describe: payload missing version")
	}
	if _, err := semver.NewVersion(desc.Version); err != nil {
		return nil, fmt.Errorf("describe: version %q is not valid semver: %w", desc.Version, err)
	}
	if desc.World == "" {
		return nil, fmt.Errorf("describe: payload missing world")
	}
	for i, op := range desc.Operations {
		if op.Name == "" {
			return nil, fmt.Errorf("describe: operations[%d] missing name", i)
		}
	}
	if err := desc.Capabilities.Validate(); err != nil {
		return nil, fmt.Errorf("describe: %w", err)
	}
	return &desc, nil
}
