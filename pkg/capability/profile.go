package capability

// Profile is the deployment's description of what it is willing to grant.
// Nil surface pointers mean the surface is denied outright.
type Profile struct {
	Filesystem *FilesystemProfile `json:"filesystem,omitempty" yaml:"filesystem,omitempty"`
	Env        *EnvCaps           `json:"env,omitempty" yaml:"env,omitempty"`
	Random     bool               `json:"random,omitempty" yaml:"random,omitempty"`
	Clocks     bool               `json:"clocks,omitempty" yaml:"clocks,omitempty"`
	State      *StateProfile      `json:"state,omitempty" yaml:"state,omitempty"`
	Secrets    *SecretsProfile    `json:"secrets,omitempty" yaml:"secrets,omitempty"`
	Messaging  *MessagingCaps     `json:"messaging,omitempty" yaml:"messaging,omitempty"`
	HTTP       *HTTPProfile       `json:"http,omitempty" yaml:"http,omitempty"`
	Telemetry  bool               `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}

// FilesystemProfile grants filesystem exposure up to Mode.
type FilesystemProfile struct {
	Mode FilesystemMode `json:"mode" yaml:"mode"`
}

// StateProfile grants state-service access. There is deliberately no Delete
// flag here; deletes ride on Write (see Declaration.Normalize).
type StateProfile struct {
	Read  bool `json:"read" yaml:"read"`
	Write bool `json:"write" yaml:"write"`
}

// SecretsProfile grants secret access, optionally restricted to named keys.
// An empty Keys list grants any key the component declared.
type SecretsProfile struct {
	Read bool     `json:"read" yaml:"read"`
	Keys []string `json:"keys,omitempty" yaml:"keys,omitempty"`
}

// HTTPProfile grants outbound/inbound HTTP, optionally restricted to named
// domains. An empty Domains list grants any domain.
type HTTPProfile struct {
	Client        bool     `json:"client" yaml:"client"`
	Server        bool     `json:"server" yaml:"server"`
	Domains       []string `json:"domains,omitempty" yaml:"domains,omitempty"`
	AllowInsecure bool     `json:"allow_insecure,omitempty" yaml:"allow_insecure,omitempty"`
}

// PermissiveProfile grants everything; useful for tests and trusted
// development environments.
func PermissiveProfile() Profile {
	return Profile{
		Filesystem: &FilesystemProfile{Mode: FilesystemReadWrite},
		Env:        &EnvCaps{Allow: []string{"*"}},
		Random:     true,
		Clocks:     true,
		State:      &StateProfile{Read: true, Write: true},
		Secrets:    &SecretsProfile{Read: true},
		Messaging:  &MessagingCaps{Inbound: true, Outbound: true},
		HTTP:       &HTTPProfile{Client: true, Server: true},
		Telemetry:  true,
	}
}

func (p *SecretsProfile) allowsKey(key string) bool {
	if len(p.Keys) == 0 {
		return true
	}
	for _, k := range p.Keys {
		if k == key {
			return true
		}
	}
	return false
}

func (p *HTTPProfile) allowsDomain(domain string) bool {
	if len(p.Domains) == 0 {
		return true
	}
	for _, d := range p.Domains {
		if d == domain {
			return true
		}
	}
	return false
}

func (p *EnvCaps) allowsVar(name string) bool {
	for _, v := range p.Allow {
		if v == "*" || v == name {
			return true
		}
	}
	return false
}
