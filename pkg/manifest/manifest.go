// Package manifest parses and validates component manifests: the authored
// description of a component's identity, artifacts, digest pins, operations,
// and capability requirements.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	_ "embed"

	"github.com/Masterminds/semver/v3"
	"github.com/gowebpki/jcs"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/gantrylabs/gantry/pkg/capability"
	"github.com/gantrylabs/gantry/pkg/digest"
)

// RoleComponentWasm is the artifact role of the primary executable.
const RoleComponentWasm = "component_wasm"

//go:embed schemas/component.manifest.schema.json
var manifestSchemaJSON string

var manifestSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://gantry.schemas.local/component.manifest.schema.json"
	if err := c.AddResource(url, strings.NewReader(manifestSchemaJSON)); err != nil {
		panic(fmt.Sprintf("manifest schema load failed: %v", err))
	}
	schema, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("manifest schema compile failed: %v", err))
	}
	return schema
}

var operationNameRe = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Operation describes one callable operation and where its schemas live
// relative to the manifest.
type Operation struct {
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema  string `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
	OutputSchema string `json:"output_schema,omitempty" yaml:"output_schema,omitempty"`
}

// Limits bounds a component's execution.
type Limits struct {
	MemoryMB   int `json:"memory_mb,omitempty" yaml:"memory_mb,omitempty"`
	WallTimeMS int `json:"wall_time_ms,omitempty" yaml:"wall_time_ms,omitempty"`
}

// ComponentManifest is the authored description of a deployable component.
type ComponentManifest struct {
	ID               string                        `json:"id" yaml:"id"`
	Name             string                        `json:"name" yaml:"name"`
	Version          string                        `json:"version" yaml:"version"`
	World            string                        `json:"world" yaml:"world"`
	Description      string                        `json:"description,omitempty" yaml:"description,omitempty"`
	Capabilities     capability.Declaration        `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Operations       []Operation                   `json:"operations,omitempty" yaml:"operations,omitempty"`
	DefaultOperation string                        `json:"default_operation,omitempty" yaml:"default_operation,omitempty"`
	DescribeExport   string                        `json:"describe_export,omitempty" yaml:"describe_export,omitempty"`
	Artifacts        map[string]string             `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Hashes           map[string]digest.Digest      `json:"hashes,omitempty" yaml:"hashes,omitempty"`
	Limits           *Limits                       `json:"limits,omitempty" yaml:"limits,omitempty"`
	Profiles         map[string]capability.Profile `json:"profiles,omitempty" yaml:"profiles,omitempty"`
}

// Parse decodes manifest JSON, validates it against the embedded schema, and
// runs field-level validation.
func Parse(data []byte) (*ComponentManifest, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("manifest: invalid JSON: %w", err)
	}
	if err := manifestSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("manifest: schema validation failed: %w", err)
	}

	var m ComponentManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode failed: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate runs the field-level checks the schema cannot express.
func (m *ComponentManifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("manifest: id must not be empty")
	}
	if m.Name == "" {
		return fmt.Errorf("manifest: name must not be empty")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("manifest: version %q is not valid semver: %w", m.Version, err)
	}
	if m.World == "" {
		return fmt.Errorf("manifest: world must not be empty")
	}

	if err := m.Capabilities.Validate(); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}

	seen := make(map[string]bool, len(m.Operations))
	for _, op := range m.Operations {
		if !operationNameRe.MatchString(op.Name) {
			return fmt.Errorf("manifest: operation name %q must match %s", op.Name, operationNameRe)
		}
		if seen[op.Name] {
			return fmt.Errorf("manifest: duplicate operation %q", op.Name)
		}
		seen[op.Name] = true
	}
	if m.DefaultOperation != "" && !seen[m.DefaultOperation] {
		return fmt.Errorf("manifest: default_operation %q is not a declared operation", m.DefaultOperation)
	}

	for role, rel := range m.Artifacts {
		if role == "" {
			return fmt.Errorf("manifest: artifacts must not contain an empty role")
		}
		if err := validateRelativePath(rel); err != nil {
			return fmt.Errorf("manifest: artifacts[%s]: %w", role, err)
		}
	}
	for role, d := range m.Hashes {
		if d.IsZero() {
			return fmt.Errorf("manifest: hashes[%s] must not be empty", role)
		}
	}
	if m.Limits != nil {
		if m.Limits.MemoryMB < 0 {
			return fmt.Errorf("manifest: limits.memory_mb must not be negative")
		}
		if m.Limits.WallTimeMS < 0 {
			return fmt.Errorf("manifest: limits.wall_time_ms must not be negative")
		}
	}
	return nil
}

func validateRelativePath(rel string) error {
	if rel == "" {
		return fmt.Errorf("path must not be empty")
	}
	if path.IsAbs(rel) || strings.HasPrefix(rel, "\\") || regexp.MustCompile(`^[A-Za-z]:`).MatchString(rel) {
		return fmt.Errorf("path %q must be relative to the manifest", rel)
	}
	clean := path.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path %q escapes the manifest directory", rel)
	}
	return nil
}

// PrimaryArtifact returns the relative path of the primary executable, if
// declared.
func (m *ComponentManifest) PrimaryArtifact() (string, bool) {
	rel, ok := m.Artifacts[RoleComponentWasm]
	return rel, ok
}

// PinnedDigest returns the digest pin for an artifact role, if declared.
func (m *ComponentManifest) PinnedDigest(role string) (digest.Digest, bool) {
	d, ok := m.Hashes[role]
	return d, ok
}

// RequiredSecretKeys returns the secret keys the component declares.
func (m *ComponentManifest) RequiredSecretKeys() []string {
	return m.Capabilities.RequiredSecretKeys()
}

// IdentityDigest computes a stable sha256 over the JCS-canonicalized manifest
// JSON. Two manifests with the same content hash identically regardless of
// key order or whitespace.
func (m *ComponentManifest) IdentityDigest() (digest.Digest, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("manifest: marshal for identity failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("manifest: canonicalization failed: %w", err)
	}
	sum := sha256.Sum256(bytes.TrimSpace(canonical))
	return digest.Digest{Algorithm: digest.SHA256, Hex: hex.EncodeToString(sum[:])}, nil
}
