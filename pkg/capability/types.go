// Package capability models the structured capability declarations components
// ship in their manifests, the deployment-side profiles describing what a
// runtime is willing to grant, and the invocation-time enforcement engine
// that compares the two.
package capability

// FilesystemMode selects how much of the filesystem a component may see.
type FilesystemMode string

const (
	FilesystemNone      FilesystemMode = "none"
	FilesystemReadOnly  FilesystemMode = "readonly"
	FilesystemReadWrite FilesystemMode = "readwrite"
)

// FilesystemMount maps a named host storage class into the guest.
type FilesystemMount struct {
	Name      string `json:"name" yaml:"name"`
	HostClass string `json:"host_class" yaml:"host_class"`
	GuestPath string `json:"guest_path" yaml:"guest_path"`
}

// FilesystemCaps declares filesystem exposure.
type FilesystemCaps struct {
	Mode   FilesystemMode    `json:"mode" yaml:"mode"`
	Mounts []FilesystemMount `json:"mounts,omitempty" yaml:"mounts,omitempty"`
}

// EnvCaps declares the environment variables a component may read.
type EnvCaps struct {
	Allow []string `json:"allow" yaml:"allow"`
}

// WasiCaps groups the WASI-level surfaces.
type WasiCaps struct {
	Filesystem *FilesystemCaps `json:"filesystem,omitempty" yaml:"filesystem,omitempty"`
	Env        *EnvCaps        `json:"env,omitempty" yaml:"env,omitempty"`
	Random     bool            `json:"random,omitempty" yaml:"random,omitempty"`
	Clocks     bool            `json:"clocks,omitempty" yaml:"clocks,omitempty"`
}

// StateCaps declares access to the host state service. State has no native
// delete flag at the enforcement profile level; see Normalize.
type StateCaps struct {
	Read   bool `json:"read" yaml:"read"`
	Write  bool `json:"write" yaml:"write"`
	Delete bool `json:"delete,omitempty" yaml:"delete,omitempty"`
}

// SecretScope pins a secret requirement to an environment and tenant.
type SecretScope struct {
	Env    string `json:"env" yaml:"env"`
	Tenant string `json:"tenant" yaml:"tenant"`
	Team   string `json:"team,omitempty" yaml:"team,omitempty"`
}

// SecretRequirement names one secret key the component needs at runtime.
type SecretRequirement struct {
	Key      string       `json:"key" yaml:"key"`
	Required bool         `json:"required" yaml:"required"`
	Format   string       `json:"format,omitempty" yaml:"format,omitempty"`
	Scope    *SecretScope `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// SecretsCaps declares access to the host secrets service. The surface grant
// (Read) is necessary but not sufficient: each key fetched at runtime must
// also appear in Required.
type SecretsCaps struct {
	Read     bool                `json:"read" yaml:"read"`
	Required []SecretRequirement `json:"required,omitempty" yaml:"required,omitempty"`
}

// MessagingCaps declares message-bus directions.
type MessagingCaps struct {
	Inbound  bool `json:"inbound" yaml:"inbound"`
	Outbound bool `json:"outbound" yaml:"outbound"`
}

// HTTPCaps declares network/HTTP access. An empty Domains list means any
// domain the deployment profile allows.
type HTTPCaps struct {
	Client        bool     `json:"client" yaml:"client"`
	Server        bool     `json:"server" yaml:"server"`
	Domains       []string `json:"domains,omitempty" yaml:"domains,omitempty"`
	AllowInsecure bool     `json:"allow_insecure,omitempty" yaml:"allow_insecure,omitempty"`
}

// TelemetryCaps declares telemetry emission.
type TelemetryCaps struct {
	Scope      string            `json:"scope,omitempty" yaml:"scope,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// HostCaps groups the host-service surfaces.
type HostCaps struct {
	State     *StateCaps     `json:"state,omitempty" yaml:"state,omitempty"`
	Secrets   *SecretsCaps   `json:"secrets,omitempty" yaml:"secrets,omitempty"`
	Messaging *MessagingCaps `json:"messaging,omitempty" yaml:"messaging,omitempty"`
	HTTP      *HTTPCaps      `json:"http,omitempty" yaml:"http,omitempty"`
	Telemetry *TelemetryCaps `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}

// Declaration is a component's full capability request, as authored in its
// manifest or recovered from its describe payload.
type Declaration struct {
	Wasi WasiCaps `json:"wasi" yaml:"wasi"`
	Host HostCaps `json:"host" yaml:"host"`
}
