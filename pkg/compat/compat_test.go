package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantrylabs/gantry/pkg/capability"
	"github.com/gantrylabs/gantry/pkg/describe"
)

func descWith(world string, caps capability.Declaration) *describe.Description {
	return &describe.Description{
		ID:           "acme.widget",
		Name:         "widget",
		Version:      "1.2.3",
		World:        world,
		Capabilities: caps,
	}
}

func reasonCodes(r Result) []string {
	codes := make([]string, 0, len(r.Reasons))
	for _, reason := range r.Reasons {
		codes = append(codes, reason.Code)
	}
	return codes
}

func TestCheckABIPrefix(t *testing.T) {
	desc := descWith("gantry:component/runner@0.3.0", capability.Declaration{})

	t.Run("prefix matches", func(t *testing.T) {
		res := Check(desc, Policy{RequiredABIPrefix: "gantry:component/runner@0.3"})
		assert.True(t, res.OK)
		assert.Empty(t, res.Reasons)
	})

	t.Run("prefix mismatch", func(t *testing.T) {
		res := Check(desc, Policy{RequiredABIPrefix: "gantry:component/runner@0.4"})
		assert.False(t, res.OK)
		require.Len(t, res.Reasons, 1)
		assert.Equal(t, "abi", res.Reasons[0].Code)
		assert.Contains(t, res.Reasons[0].Message, "gantry:component/runner@0.4")
	})

	t.Run("no prefix requirement", func(t *testing.T) {
		res := Check(desc, Policy{})
		assert.True(t, res.OK)
	})
}

func TestCheckMissingStateWrite(t *testing.T) {
	desc := descWith("gantry:component/runner@0.3.0", capability.Declaration{
		Host: capability.HostCaps{State: &capability.StateCaps{Read: true}},
	})

	res := Check(desc, Policy{RequiredCapabilities: []string{"state.write"}})
	assert.False(t, res.OK)
	assert.Equal(t, []string{"host.state.write"}, reasonCodes(res))
}

func TestCheckCompleteness(t *testing.T) {
	// Policy requires {A, B, C}; component declares only A. The result must
	// list exactly {B, C}: no omissions, no duplicates, no short-circuit.
	desc := descWith("gantry:component/runner@0.3.0", capability.Declaration{
		Host: capability.HostCaps{
			State: &capability.StateCaps{Read: true},
		},
	})

	res := Check(desc, Policy{RequiredCapabilities: []string{
		"state.read",
		"http.client",
		"messaging.outbound",
		"http.client", // duplicate requirement must not double-report
	}})
	assert.False(t, res.OK)
	assert.Equal(t, []string{"host.http.client", "host.messaging.outbound"}, reasonCodes(res))
}

func TestCheckWasiQualification(t *testing.T) {
	desc := descWith("gantry:component/runner@0.3.0", capability.Declaration{})

	res := Check(desc, Policy{RequiredCapabilities: []string{"clocks", "fs.readonly", "env"}})
	assert.False(t, res.OK)
	assert.Equal(t, []string{"wasi.clocks", "wasi.env", "wasi.fs.readonly"}, reasonCodes(res))
}

func TestCheckImpliedWriteSatisfiesPolicy(t *testing.T) {
	// delete:true grants the implied write; policy requiring state.write
	// must pass.
	desc := descWith("gantry:component/runner@0.3.0", capability.Declaration{
		Host: capability.HostCaps{State: &capability.StateCaps{Delete: true}},
	})

	res := Check(desc, Policy{RequiredCapabilities: []string{"state.write", "state.delete"}})
	assert.True(t, res.OK)
}

func TestCheckABIAndCapabilitiesBothReported(t *testing.T) {
	desc := descWith("other:world@1.0.0", capability.Declaration{})

	res := Check(desc, Policy{
		RequiredABIPrefix:    "gantry:component",
		RequiredCapabilities: []string{"telemetry"},
	})
	assert.False(t, res.OK)
	assert.Equal(t, []string{"abi", "host.telemetry"}, reasonCodes(res))
}
