package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyModule is the smallest valid wasm binary: magic plus version. It has
// no exports and no _start, which wazero treats as a successful no-op
// instantiation.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestSandboxInvokeEmptyModule(t *testing.T) {
	ctx := context.Background()
	sandbox, err := NewSandbox(ctx, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = sandbox.Close() }()

	out, err := sandbox.Invoke(ctx, emptyModule, "describe", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSandboxInvokeRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	sandbox, err := NewSandbox(ctx, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = sandbox.Close() }()

	_, err = sandbox.Invoke(ctx, []byte("not wasm"), "describe", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compilation failed")
}

func TestSandboxMemoryLimitPages(t *testing.T) {
	ctx := context.Background()

	// Sub-page limits round up to one page rather than zero.
	sandbox, err := NewSandbox(ctx, Config{MemoryLimitBytes: 1024})
	require.NoError(t, err)
	defer func() { _ = sandbox.Close() }()

	_, err = sandbox.Invoke(ctx, emptyModule, "noop", nil)
	assert.NoError(t, err)
}
