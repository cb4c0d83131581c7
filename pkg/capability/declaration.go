package capability

import (
	"fmt"
	"sort"
)

// Normalize returns a copy of the declaration with compatibility shims
// applied. The one shim today: a state delete grant implies write, because
// the enforcement profile has no dedicated state delete flag and delete
// without write must not silently no-op.
func (d Declaration) Normalize() Declaration {
	out := d
	if d.Host.State != nil {
		state := *d.Host.State
		if state.Delete && !state.Write {
			state.Write = true
		}
		out.Host.State = &state
	}
	return out
}

// Validate checks structural correctness of the declaration.
func (d Declaration) Validate() error {
	if fs := d.Wasi.Filesystem; fs != nil {
		switch fs.Mode {
		case FilesystemNone, FilesystemReadOnly, FilesystemReadWrite:
		default:
			return fmt.Errorf("capability: wasi.filesystem.mode %q is not a known mode", fs.Mode)
		}
		if fs.Mode != FilesystemNone && len(fs.Mounts) == 0 {
			return fmt.Errorf("capability: wasi.filesystem.mounts must be declared when exposing the filesystem")
		}
		for _, m := range fs.Mounts {
			if m.Name == "" {
				return fmt.Errorf("capability: wasi.filesystem.mounts[].name cannot be empty")
			}
			if m.HostClass == "" {
				return fmt.Errorf("capability: wasi.filesystem.mounts[%s].host_class must describe a storage class", m.Name)
			}
			if m.GuestPath == "" {
				return fmt.Errorf("capability: wasi.filesystem.mounts[%s].guest_path cannot be empty", m.Name)
			}
		}
	}
	if env := d.Wasi.Env; env != nil {
		for _, name := range env.Allow {
			if name == "" {
				return fmt.Errorf("capability: wasi.env.allow[] contains an empty variable name")
			}
		}
	}
	if state := d.Host.State; state != nil {
		if !state.Read && !state.Write && !state.Delete {
			return fmt.Errorf("capability: host.state must enable read, write, or delete")
		}
	}
	if secrets := d.Host.Secrets; secrets != nil {
		seen := make(map[string]bool, len(secrets.Required))
		for _, req := range secrets.Required {
			if req.Key == "" {
				return fmt.Errorf("capability: host.secrets.required[].key cannot be empty")
			}
			if seen[req.Key] {
				return fmt.Errorf("capability: duplicate secret %q in host.secrets.required", req.Key)
			}
			seen[req.Key] = true
			if req.Scope != nil {
				if req.Scope.Env == "" {
					return fmt.Errorf("capability: secret %q scope.env must not be empty", req.Key)
				}
				if req.Scope.Tenant == "" {
					return fmt.Errorf("capability: secret %q scope.tenant must not be empty", req.Key)
				}
			}
		}
	}
	return nil
}

// GrantNames flattens the declaration into the dotted grant names used by
// compatibility policies ("state.write", "http.client", ...). Output is
// sorted and duplicate-free.
func (d Declaration) GrantNames() []string {
	n := d.Normalize()
	var names []string

	if fs := n.Wasi.Filesystem; fs != nil {
		switch fs.Mode {
		case FilesystemReadOnly:
			names = append(names, "fs.readonly")
		case FilesystemReadWrite:
			names = append(names, "fs.readonly", "fs.readwrite")
		}
	}
	if env := n.Wasi.Env; env != nil && len(env.Allow) > 0 {
		names = append(names, "env")
	}
	if n.Wasi.Random {
		names = append(names, "random")
	}
	if n.Wasi.Clocks {
		names = append(names, "clocks")
	}

	if state := n.Host.State; state != nil {
		if state.Read {
			names = append(names, "state.read")
		}
		if state.Write {
			names = append(names, "state.write")
		}
		if state.Delete {
			names = append(names, "state.delete")
		}
	}
	if secrets := n.Host.Secrets; secrets != nil && (secrets.Read || len(secrets.Required) > 0) {
		names = append(names, "secrets.read")
	}
	if msg := n.Host.Messaging; msg != nil {
		if msg.Inbound {
			names = append(names, "messaging.inbound")
		}
		if msg.Outbound {
			names = append(names, "messaging.outbound")
		}
	}
	if http := n.Host.HTTP; http != nil {
		if http.Client {
			names = append(names, "http.client")
		}
		if http.Server {
			names = append(names, "http.server")
		}
	}
	if n.Host.Telemetry != nil {
		names = append(names, "telemetry")
	}

	sort.Strings(names)
	return names
}

// RequiredSecretKeys returns the declared secret keys, in declaration order.
func (d Declaration) RequiredSecretKeys() []string {
	if d.Host.Secrets == nil {
		return nil
	}
	keys := make([]string, 0, len(d.Host.Secrets.Required))
	for _, req := range d.Host.Secrets.Required {
		keys = append(keys, req.Key)
	}
	return keys
}
