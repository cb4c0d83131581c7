package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDeleteImpliesWrite(t *testing.T) {
	decl := Declaration{
		Host: HostCaps{State: &StateCaps{Delete: true}},
	}

	norm := decl.Normalize()
	assert.True(t, norm.Host.State.Write, "delete without write must normalize to write")
	assert.True(t, norm.Host.State.Delete)

	// Original is untouched.
	assert.False(t, decl.Host.State.Write)
}

func TestNormalizeIdempotent(t *testing.T) {
	decl := Declaration{
		Host: HostCaps{State: &StateCaps{Read: true, Write: true, Delete: true}},
	}
	once := decl.Normalize()
	twice := once.Normalize()
	assert.Equal(t, once, twice)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		decl    Declaration
		wantErr string
	}{
		{
			name: "empty declaration is valid",
			decl: Declaration{},
		},
		{
			name: "valid full declaration",
			decl: Declaration{
				Wasi: WasiCaps{
					Filesystem: &FilesystemCaps{
						Mode:   FilesystemReadOnly,
						Mounts: []FilesystemMount{{Name: "data", HostClass: "scratch", GuestPath: "/data"}},
					},
					Env:    &EnvCaps{Allow: []string{"LOG_LEVEL"}},
					Random: true,
				},
				Host: HostCaps{
					State: &StateCaps{Read: true},
					Secrets: &SecretsCaps{
						Read: true,
						Required: []SecretRequirement{
							{Key: "API_TOKEN", Required: true, Scope: &SecretScope{Env: "prod", Tenant: "acme"}},
						},
					},
				},
			},
		},
		{
			name: "unknown filesystem mode",
			decl: Declaration{
				Wasi: WasiCaps{Filesystem: &FilesystemCaps{Mode: "append-only"}},
			},
			wantErr: "not a known mode",
		},
		{
			name: "filesystem exposed without mounts",
			decl: Declaration{
				Wasi: WasiCaps{Filesystem: &FilesystemCaps{Mode: FilesystemReadWrite}},
			},
			wantErr: "mounts must be declared",
		},
		{
			name: "mount missing guest path",
			decl: Declaration{
				Wasi: WasiCaps{Filesystem: &FilesystemCaps{
					Mode:   FilesystemReadOnly,
					Mounts: []FilesystemMount{{Name: "data", HostClass: "scratch"}},
				}},
			},
			wantErr: "guest_path",
		},
		{
			name: "empty env var name",
			decl: Declaration{
				Wasi: WasiCaps{Env: &EnvCaps{Allow: []string{"GOOD", ""}}},
			},
			wantErr: "empty variable name",
		},
		{
			name: "state with no flags",
			decl: Declaration{
				Host: HostCaps{State: &StateCaps{}},
			},
			wantErr: "must enable read, write, or delete",
		},
		{
			name: "duplicate secret key",
			decl: Declaration{
				Host: HostCaps{Secrets: &SecretsCaps{Read: true, Required: []SecretRequirement{
					{Key: "API_TOKEN"},
					{Key: "API_TOKEN"},
				}}},
			},
			wantErr: "duplicate secret",
		},
		{
			name: "secret scope missing tenant",
			decl: Declaration{
				Host: HostCaps{Secrets: &SecretsCaps{Read: true, Required: []SecretRequirement{
					{Key: "API_TOKEN", Scope: &SecretScope{Env: "prod"}},
				}}},
			},
			wantErr: "scope.tenant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decl.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestGrantNames(t *testing.T) {
	decl := Declaration{
		Wasi: WasiCaps{
			Filesystem: &FilesystemCaps{
				Mode:   FilesystemReadWrite,
				Mounts: []FilesystemMount{{Name: "data", HostClass: "scratch", GuestPath: "/data"}},
			},
			Clocks: true,
		},
		Host: HostCaps{
			State: &StateCaps{Delete: true},
			HTTP:  &HTTPCaps{Client: true},
		},
	}

	names := decl.GrantNames()
	assert.Equal(t, []string{
		"clocks",
		"fs.readonly",
		"fs.readwrite",
		"http.client",
		"state.delete",
		"state.write", // implied by delete
	}, names)
}

func fixedClock() func() time.Time {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return func() time.Time { return ts }
}

func denialCodes(d Decision) []string {
	codes := make([]string, 0, len(d.Denials))
	for _, r := range d.Denials {
		codes = append(codes, r.Code)
	}
	return codes
}

func TestEnforcerBothSidesMustGrant(t *testing.T) {
	decl := Declaration{
		Host: HostCaps{State: &StateCaps{Read: true}},
	}

	t.Run("granted by both", func(t *testing.T) {
		e := NewEnforcer(decl, PermissiveProfile()).WithClock(fixedClock())
		d := e.Check(StateRead())
		assert.True(t, d.Allowed)
		assert.Empty(t, d.Denials)
		assert.NotEmpty(t, d.ID)
	})

	t.Run("declared but profile denies", func(t *testing.T) {
		e := NewEnforcer(decl, Profile{}).WithClock(fixedClock())
		d := e.Check(StateRead())
		assert.False(t, d.Allowed)
		assert.Equal(t, []string{"capabilities.state.read"}, denialCodes(d))
	})

	t.Run("profile grants but undeclared", func(t *testing.T) {
		e := NewEnforcer(Declaration{}, PermissiveProfile()).WithClock(fixedClock())
		d := e.Check(StateRead())
		assert.False(t, d.Allowed)
		assert.Equal(t, []string{"host.state.read"}, denialCodes(d))
	})

	t.Run("denied by both lists both", func(t *testing.T) {
		e := NewEnforcer(Declaration{}, Profile{}).WithClock(fixedClock())
		d := e.Check(StateWrite())
		assert.False(t, d.Allowed)
		assert.Equal(t, []string{"host.state.write", "capabilities.state.write"}, denialCodes(d))
	})
}

func TestEnforcerDeleteRidesOnWrite(t *testing.T) {
	decl := Declaration{
		Host: HostCaps{State: &StateCaps{Delete: true}},
	}

	t.Run("delete grant implies write grant", func(t *testing.T) {
		e := NewEnforcer(decl, PermissiveProfile()).WithClock(fixedClock())
		assert.True(t, e.Check(StateDelete()).Allowed)
		assert.True(t, e.Check(StateWrite()).Allowed, "normalized delete must enforce-equivalent to write")
	})

	t.Run("profile without write denies delete", func(t *testing.T) {
		e := NewEnforcer(decl, Profile{State: &StateProfile{Read: true}}).WithClock(fixedClock())
		d := e.Check(StateDelete())
		assert.False(t, d.Allowed)
		assert.Equal(t, []string{"capabilities.state.write"}, denialCodes(d))
	})
}

func TestEnforcerSecretsPerKey(t *testing.T) {
	decl := Declaration{
		Host: HostCaps{Secrets: &SecretsCaps{
			Read:     true,
			Required: []SecretRequirement{{Key: "DB_PASSWORD", Required: true}},
		}},
	}
	e := NewEnforcer(decl, PermissiveProfile()).WithClock(fixedClock())

	t.Run("declared key allowed", func(t *testing.T) {
		assert.True(t, e.Check(SecretGet("DB_PASSWORD")).Allowed)
	})

	t.Run("undeclared key denied even though surface is readable", func(t *testing.T) {
		d := e.Check(SecretGet("API_TOKEN"))
		assert.False(t, d.Allowed)
		assert.Equal(t, []string{"host.secrets.required[API_TOKEN]"}, denialCodes(d))
	})

	t.Run("profile key restriction applies", func(t *testing.T) {
		restricted := NewEnforcer(decl, Profile{
			Secrets: &SecretsProfile{Read: true, Keys: []string{"OTHER"}},
		}).WithClock(fixedClock())
		d := restricted.Check(SecretGet("DB_PASSWORD"))
		assert.False(t, d.Allowed)
		assert.Equal(t, []string{"capabilities.secrets.keys[DB_PASSWORD]"}, denialCodes(d))
	})
}

func TestEnforcerHTTPDomains(t *testing.T) {
	decl := Declaration{
		Host: HostCaps{HTTP: &HTTPCaps{Client: true, Domains: []string{"api.example.com"}}},
	}

	t.Run("declared domain via permissive profile", func(t *testing.T) {
		e := NewEnforcer(decl, PermissiveProfile()).WithClock(fixedClock())
		assert.True(t, e.Check(HTTPFetch("api.example.com")).Allowed)
	})

	t.Run("undeclared domain denied", func(t *testing.T) {
		e := NewEnforcer(decl, PermissiveProfile()).WithClock(fixedClock())
		d := e.Check(HTTPFetch("evil.example"))
		assert.False(t, d.Allowed)
		assert.Equal(t, []string{"host.http.domains[evil.example]"}, denialCodes(d))
	})

	t.Run("profile domain list restricts further", func(t *testing.T) {
		e := NewEnforcer(decl, Profile{
			HTTP: &HTTPProfile{Client: true, Domains: []string{"other.example"}},
		}).WithClock(fixedClock())
		d := e.Check(HTTPFetch("api.example.com"))
		assert.False(t, d.Allowed)
		assert.Equal(t, []string{"capabilities.http.domains[api.example.com]"}, denialCodes(d))
	})

	t.Run("server not declared", func(t *testing.T) {
		e := NewEnforcer(decl, PermissiveProfile()).WithClock(fixedClock())
		d := e.Check(HTTPServe())
		assert.False(t, d.Allowed)
		assert.Equal(t, []string{"host.http.server"}, denialCodes(d))
	})
}

func TestEnforcerEnvWildcard(t *testing.T) {
	decl := Declaration{
		Wasi: WasiCaps{Env: &EnvCaps{Allow: []string{"LOG_LEVEL"}}},
	}
	e := NewEnforcer(decl, PermissiveProfile()).WithClock(fixedClock())

	assert.True(t, e.Check(EnvRead("LOG_LEVEL")).Allowed)

	d := e.Check(EnvRead("HOME"))
	assert.False(t, d.Allowed)
	assert.Equal(t, []string{"wasi.env.allow[HOME]"}, denialCodes(d))
}

func TestEnforcerFilesystemModes(t *testing.T) {
	decl := Declaration{
		Wasi: WasiCaps{Filesystem: &FilesystemCaps{
			Mode:   FilesystemReadOnly,
			Mounts: []FilesystemMount{{Name: "data", HostClass: "scratch", GuestPath: "/data"}},
		}},
	}
	e := NewEnforcer(decl, PermissiveProfile()).WithClock(fixedClock())

	assert.True(t, e.Check(FilesystemRead()).Allowed)

	d := e.Check(FilesystemWrite())
	assert.False(t, d.Allowed)
	assert.Equal(t, []string{"wasi.filesystem.mode"}, denialCodes(d))
}

func TestEnforcerDecisionLog(t *testing.T) {
	e := NewEnforcer(Declaration{}, Profile{}).WithClock(fixedClock())

	e.Check(RandomRead())
	e.Check(ClockRead())

	log := e.Decisions()
	require.Len(t, log, 2)
	assert.Equal(t, SurfaceRandom, log[0].Intent.Surface)
	assert.Equal(t, SurfaceClocks, log[1].Intent.Surface)
	assert.NotEqual(t, log[0].ID, log[1].ID)
	assert.Equal(t, fixedClock()(), log[0].Timestamp)

	// The returned slice is a copy.
	log[0].Allowed = true
	assert.False(t, e.Decisions()[0].Allowed)
}
