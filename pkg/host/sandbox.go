// Package host runs component modules in a deny-by-default WASI sandbox and
// implements the execution host invocation contract the describe resolver
// depends on.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Config bounds a sandboxed execution.
type Config struct {
	// MemoryLimitBytes caps linear memory; wazero rounds down to 64KB pages.
	MemoryLimitBytes int64
	// CPUTimeLimit bounds one invocation via context deadline.
	CPUTimeLimit time.Duration
}

// DefaultConfig bounds components to 64MB and five seconds.
func DefaultConfig() Config {
	return Config{
		MemoryLimitBytes: 64 * 1024 * 1024,
		CPUTimeLimit:     5 * time.Second,
	}
}

// envelope is the invocation frame written to the module's stdin.
type envelope struct {
	Op    string          `json:"op"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Sandbox executes component modules with no ambient authority: no
// filesystem, no network, no environment, no host clock or randomness.
// Capability-granted surfaces are mediated elsewhere; nothing is wired here.
type Sandbox struct {
	runtime wazero.Runtime
	config  wazero.ModuleConfig
	limits  Config
}

// NewSandbox creates a sandbox runtime with the given limits.
func NewSandbox(ctx context.Context, cfg Config) (*Sandbox, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitBytes > 0 {
		pages := uint32(cfg.MemoryLimitBytes / (64 * 1024))
		if pages == 0 {
			pages = 1
		}
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(pages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	// Only stdio is wired. We deliberately do NOT call:
	// - WithFSConfig()    → no filesystem
	// - WithEnv()         → no environment variables
	// - WithSysNanotime() → no high-res timers
	// - WithRandSource()  → no crypto randomness
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	modCfg := wazero.NewModuleConfig().
		WithName("gantry-sandbox").
		WithStartFunctions("_start")

	return &Sandbox{
		runtime: r,
		config:  modCfg,
		limits:  cfg,
	}, nil
}

// Invoke runs one operation against a module: the op and input go in as a
// JSON envelope on stdin, the result comes back on stdout. Implements the
// describe resolver's Invoker contract.
func (s *Sandbox) Invoke(ctx context.Context, wasm []byte, op string, input []byte) ([]byte, error) {
	if s.limits.CPUTimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limits.CPUTimeLimit)
		defer cancel()
	}

	frame, err := json.Marshal(envelope{Op: op, Input: input})
	if err != nil {
		return nil, fmt.Errorf("host: encode invocation envelope: %w", err)
	}

	var stdout, stderr bytes.Buffer
	modCfg := s.config.
		WithStdin(bytes.NewReader(frame)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	compiled, err := s.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("host: compilation failed: %w", err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	mod, err := s.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("host: execution timed out after %v", s.limits.CPUTimeLimit)
		}
		return nil, fmt.Errorf("host: instantiation failed: %w", err)
	}
	defer func() { _ = mod.Close(ctx) }()

	if stderr.Len() > 0 {
		return stdout.Bytes(), fmt.Errorf("host: module wrote to stderr: %s", stderr.String())
	}
	return stdout.Bytes(), nil
}

// Close shuts down the runtime, freeing all compiled modules.
func (s *Sandbox) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.runtime.Close(ctx)
}
