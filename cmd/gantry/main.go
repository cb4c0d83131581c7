// Command gantry fetches, inspects, and admission-checks component
// artifacts against a deployment profile.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gantrylabs/gantry/pkg/capability"
	"github.com/gantrylabs/gantry/pkg/compat"
	"github.com/gantrylabs/gantry/pkg/config"
	"github.com/gantrylabs/gantry/pkg/describe"
	"github.com/gantrylabs/gantry/pkg/host"
	"github.com/gantrylabs/gantry/pkg/introspect"
	"github.com/gantrylabs/gantry/pkg/observability"
	"github.com/gantrylabs/gantry/pkg/source"
	"github.com/gantrylabs/gantry/pkg/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: gantry <command> [flags]

Commands:
  fetch    <source-id> <locator>   fetch, verify, and cache an artifact
  inspect  <source-id> <locator>   resolve the describe payload and report schema annotations
  check    <source-id> <locator>   evaluate compatibility against the deployment profile

Flags:
  -json    emit machine-readable output`)
}

func run() error {
	jsonOut := flag.Bool("json", false, "emit machine-readable output")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 3 {
		usage()
		return fmt.Errorf("expected a command, a source id, and a locator")
	}
	command, sourceID, locator := args[0], args[1], args[2]

	cfg := config.Load()
	ctx := context.Background()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:  "gantry",
		LogLevel:     cfg.LogLevel,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.OTLPEndpoint != "",
		Insecure:     true,
	})
	if err != nil {
		return err
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	profile := &config.DeploymentProfile{Grants: capability.PermissiveProfile()}
	if cfg.ProfilePath != "" {
		profile, err = config.LoadProfileFile(cfg.ProfilePath)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}
	index, err := store.NewSQLiteIndex(cfg.IndexDBPath)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	st, err := store.New(index, source.NewFactory(cfg.CacheDir), profile.Verification)
	if err != nil {
		return err
	}

	if err := st.Register(ctx, sourceID, locator); err != nil {
		return err
	}
	artifact, err := st.Get(ctx, sourceID)
	if err != nil {
		return err
	}

	switch command {
	case "fetch":
		return reportFetch(artifact, *jsonOut)
	case "inspect":
		return reportInspect(ctx, artifact, locator, *jsonOut)
	case "check":
		return reportCheck(ctx, artifact, locator, profile.Compatibility, *jsonOut)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func resolveDescription(ctx context.Context, artifact *store.Artifact, locator string) (*describe.Description, error) {
	sandbox, err := host.NewSandbox(ctx, host.DefaultConfig())
	if err != nil {
		return nil, err
	}
	defer func() { _ = sandbox.Close() }()

	artifactDir := ""
	if loc, err := source.ParseLocator(locator); err == nil && loc.Scheme == source.SchemeFS {
		if info, err := os.Stat(loc.Target); err == nil {
			if info.IsDir() {
				artifactDir = loc.Target
			} else {
				artifactDir = filepath.Dir(loc.Target)
			}
		}
	}

	resolver := describe.NewResolver(describe.WithInvoker(sandbox))
	return resolver.Resolve(ctx, artifact.Bytes, artifactDir)
}

func reportFetch(artifact *store.Artifact, jsonOut bool) error {
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"digest":           artifact.Digest.String(),
			"bytes":            len(artifact.Bytes),
			"media_type":       artifact.MediaType,
			"digest_verified":  artifact.DigestVerified,
			"signature_anchor": artifact.SignatureAnchor,
		})
	}
	fmt.Printf("digest:   %s\n", artifact.Digest)
	fmt.Printf("size:     %d bytes\n", len(artifact.Bytes))
	fmt.Printf("media:    %s\n", artifact.MediaType)
	fmt.Printf("verified: %t\n", artifact.DigestVerified)
	if artifact.SignatureAnchor != "" {
		fmt.Printf("anchor:   %s\n", artifact.SignatureAnchor)
	}
	return nil
}

func reportInspect(ctx context.Context, artifact *store.Artifact, locator string, jsonOut bool) error {
	desc, err := resolveDescription(ctx, artifact, locator)
	if err != nil {
		return err
	}

	annotations := make(map[string][]introspect.Annotation)
	for _, op := range desc.Operations {
		if len(op.InputSchema) > 0 {
			annotations[op.Name+"/input"] = introspect.Walk(op.InputSchema)
		}
		if len(op.OutputSchema) > 0 {
			annotations[op.Name+"/output"] = introspect.Walk(op.OutputSchema)
		}
	}
	for name, schema := range desc.Schemas {
		annotations["schemas/"+name] = introspect.Walk(schema)
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"description": desc,
			"provenance":  desc.Provenance,
			"annotations": annotations,
		})
	}

	fmt.Printf("%s %s (world %s, via %s)\n", desc.ID, desc.Version, desc.World, desc.Provenance)
	for _, op := range desc.Operations {
		fmt.Printf("  operation %s\n", op.Name)
	}
	for scope, list := range annotations {
		for _, a := range list {
			fmt.Printf("  %s%s: %v\n", scope, a.Path, a.Kinds)
		}
	}
	return nil
}

func reportCheck(ctx context.Context, artifact *store.Artifact, locator string, policy compat.Policy, jsonOut bool) error {
	desc, err := resolveDescription(ctx, artifact, locator)
	if err != nil {
		return err
	}

	result := compat.Check(desc, policy)
	if jsonOut {
		if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
			return err
		}
	} else if result.OK {
		fmt.Println("compatible")
	} else {
		fmt.Println("incompatible:")
		for _, reason := range result.Reasons {
			fmt.Printf("  %s\n", reason)
		}
	}
	if !result.OK {
		os.Exit(2)
	}
	return nil
}
