// Package compat decides whether a described component may run under a
// deployment policy: ABI world prefix match plus required capability grants.
// Checks are pure and always itemize every failing requirement.
package compat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gantrylabs/gantry/pkg/capability"
	"github.com/gantrylabs/gantry/pkg/describe"
)

// Policy is the deployment's admission requirement for a component.
type Policy struct {
	RequiredABIPrefix    string   `json:"required_abi_prefix,omitempty" yaml:"required_abi_prefix,omitempty"`
	RequiredCapabilities []string `json:"required_capabilities,omitempty" yaml:"required_capabilities,omitempty"`
}

// Result is the full outcome of a compatibility check. OK is true only when
// Reasons is empty; the reasons alone must be enough to reproduce the
// verdict.
type Result struct {
	OK      bool                      `json:"ok"`
	Reasons []capability.DenialReason `json:"reasons,omitempty"`
}

// Check evaluates a description against a policy. Every failing requirement
// contributes its own reason; the check never stops at the first failure.
func Check(desc *describe.Description, policy Policy) Result {
	var reasons []capability.DenialReason

	if policy.RequiredABIPrefix != "" && !strings.HasPrefix(desc.World, policy.RequiredABIPrefix) {
		reasons = append(reasons, capability.DenialReason{
			Code: "abi",
			Message: fmt.Sprintf("world %q does not match required ABI prefix %q",
				desc.World, policy.RequiredABIPrefix),
		})
	}

	granted := make(map[string]bool)
	for _, name := range desc.Capabilities.GrantNames() {
		granted[name] = true
	}

	missing := make([]string, 0, len(policy.RequiredCapabilities))
	seen := make(map[string]bool, len(policy.RequiredCapabilities))
	for _, name := range policy.RequiredCapabilities {
		if seen[name] {
			continue
		}
		seen[name] = true
		if !granted[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)

	for _, name := range missing {
		reasons = append(reasons, capability.DenialReason{
			Code:    qualifyCapability(name),
			Message: fmt.Sprintf("component does not declare required capability %q", name),
		})
	}

	return Result{OK: len(reasons) == 0, Reasons: reasons}
}

// qualifyCapability turns a flat grant name into its path-qualified denial
// code. WASI-level surfaces live under wasi.*, host services under host.*.
func qualifyCapability(name string) string {
	switch {
	case name == "env" || name == "random" || name == "clocks" || strings.HasPrefix(name, "fs."):
		return "wasi." + name
	default:
		return "host." + name
	}
}
