package capability

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Surface names a host-mediated capability surface.
type Surface string

const (
	SurfaceState      Surface = "state"
	SurfaceSecrets    Surface = "secrets"
	SurfaceHTTP       Surface = "http"
	SurfaceMessaging  Surface = "messaging"
	SurfaceTelemetry  Surface = "telemetry"
	SurfaceEnv        Surface = "env"
	SurfaceRandom     Surface = "random"
	SurfaceClocks     Surface = "clocks"
	SurfaceFilesystem Surface = "filesystem"
)

// Action is the sub-permission being invoked on a surface.
type Action string

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionDelete  Action = "delete"
	ActionGet     Action = "get"
	ActionFetch   Action = "fetch"
	ActionServe   Action = "serve"
	ActionSend    Action = "send"
	ActionReceive Action = "receive"
	ActionEmit    Action = "emit"
)

// Intent is one host-mediated call a component attempts during execution.
// Key qualifies the call where the surface needs it: the secret key for
// secrets.get, the domain for http.fetch, the variable name for env.read.
type Intent struct {
	Surface Surface `json:"surface"`
	Action  Action  `json:"action"`
	Key     string  `json:"key,omitempty"`
}

// Intent constructors for the common calls.
func StateRead() Intent            { return Intent{Surface: SurfaceState, Action: ActionRead} }
func StateWrite() Intent           { return Intent{Surface: SurfaceState, Action: ActionWrite} }
func StateDelete() Intent          { return Intent{Surface: SurfaceState, Action: ActionDelete} }
func SecretGet(key string) Intent  { return Intent{Surface: SurfaceSecrets, Action: ActionGet, Key: key} }
func HTTPFetch(dom string) Intent  { return Intent{Surface: SurfaceHTTP, Action: ActionFetch, Key: dom} }
func HTTPServe() Intent            { return Intent{Surface: SurfaceHTTP, Action: ActionServe} }
func MessagingSend() Intent        { return Intent{Surface: SurfaceMessaging, Action: ActionSend} }
func MessagingReceive() Intent     { return Intent{Surface: SurfaceMessaging, Action: ActionReceive} }
func TelemetryEmit() Intent        { return Intent{Surface: SurfaceTelemetry, Action: ActionEmit} }
func EnvRead(name string) Intent   { return Intent{Surface: SurfaceEnv, Action: ActionRead, Key: name} }
func RandomRead() Intent           { return Intent{Surface: SurfaceRandom, Action: ActionRead} }
func ClockRead() Intent            { return Intent{Surface: SurfaceClocks, Action: ActionRead} }
func FilesystemRead() Intent       { return Intent{Surface: SurfaceFilesystem, Action: ActionRead} }
func FilesystemWrite() Intent      { return Intent{Surface: SurfaceFilesystem, Action: ActionWrite} }

// Decision is the terminal outcome of one enforcement check. There are no
// retries at this layer.
type Decision struct {
	ID        string         `json:"id"`
	Intent    Intent         `json:"intent"`
	Allowed   bool           `json:"allowed"`
	Denials   []DenialReason `json:"denials,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Enforcer gates host-mediated calls against a component's declaration and
// the deployment profile. A call is allowed only when both sides grant it.
type Enforcer struct {
	decl    Declaration
	profile Profile
	logger  *slog.Logger

	mu        sync.Mutex
	decisions []Decision
	clock     func() time.Time
}

// NewEnforcer builds an enforcer. The declaration is normalized once here so
// every later check sees the delete-implies-write shim applied.
func NewEnforcer(decl Declaration, profile Profile) *Enforcer {
	return &Enforcer{
		decl:    decl.Normalize(),
		profile: profile,
		logger:  slog.Default(),
		clock:   time.Now,
	}
}

// WithLogger overrides the audit logger.
func (e *Enforcer) WithLogger(logger *slog.Logger) *Enforcer {
	e.logger = logger
	return e
}

// WithClock overrides the clock for testing.
func (e *Enforcer) WithClock(clock func() time.Time) *Enforcer {
	e.clock = clock
	return e
}

// Check evaluates one intent. Every failing side contributes its own
// path-qualified denial; the result is never collapsed to a bare boolean.
func (e *Enforcer) Check(intent Intent) Decision {
	denials := e.evaluate(intent)

	decision := Decision{
		ID:        uuid.NewString(),
		Intent:    intent,
		Allowed:   len(denials) == 0,
		Denials:   denials,
		Timestamp: e.clock(),
	}

	e.mu.Lock()
	e.decisions = append(e.decisions, decision)
	e.mu.Unlock()

	if decision.Allowed {
		e.logger.Debug("capability allowed",
			"surface", intent.Surface, "action", intent.Action, "key", intent.Key)
	} else {
		codes := make([]string, 0, len(denials))
		for _, d := range denials {
			codes = append(codes, d.Code)
		}
		e.logger.Warn("capability denied",
			"surface", intent.Surface, "action", intent.Action, "key", intent.Key, "codes", codes)
	}
	return decision
}

// Decisions returns a copy of the decision log for audit.
func (e *Enforcer) Decisions() []Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Decision, len(e.decisions))
	copy(out, e.decisions)
	return out
}

func (e *Enforcer) evaluate(intent Intent) []DenialReason {
	var denials []DenialReason
	add := func(r DenialReason) { denials = append(denials, r) }

	switch intent.Surface {
	case SurfaceState:
		state := e.decl.Host.State
		switch intent.Action {
		case ActionRead:
			if state == nil || !state.Read {
				add(deny("host.state.read", "component does not declare state read"))
			}
			if e.profile.State == nil || !e.profile.State.Read {
				add(deny("capabilities.state.read", "profile does not permit state read"))
			}
		case ActionWrite:
			if state == nil || !state.Write {
				add(deny("host.state.write", "component does not declare state write"))
			}
			if e.profile.State == nil || !e.profile.State.Write {
				add(deny("capabilities.state.write", "profile does not permit state write"))
			}
		case ActionDelete:
			if state == nil || !state.Delete {
				add(deny("host.state.delete", "component does not declare state delete"))
			}
			// No native delete flag on the profile; deletes ride on write.
			if e.profile.State == nil || !e.profile.State.Write {
				add(deny("capabilities.state.write", "profile does not permit state write (required for delete)"))
			}
		default:
			add(deny("host.state", "unknown state action %q", intent.Action))
		}

	case SurfaceSecrets:
		secrets := e.decl.Host.Secrets
		if secrets == nil || !secrets.Read {
			add(deny("host.secrets.read", "component does not declare secrets read"))
		}
		if secrets != nil && !declaresSecret(secrets, intent.Key) {
			add(deny("host.secrets.required["+intent.Key+"]",
				"secret %q is not listed in the component's required secrets", intent.Key))
		}
		if e.profile.Secrets == nil || !e.profile.Secrets.Read {
			add(deny("capabilities.secrets", "profile denies access to secrets"))
		} else if !e.profile.Secrets.allowsKey(intent.Key) {
			add(deny("capabilities.secrets.keys["+intent.Key+"]",
				"secret %q is not granted by the profile", intent.Key))
		}

	case SurfaceHTTP:
		http := e.decl.Host.HTTP
		switch intent.Action {
		case ActionFetch:
			if http == nil || !http.Client {
				add(deny("host.http.client", "component does not declare an HTTP client"))
			}
			if http != nil && len(http.Domains) > 0 && !containsString(http.Domains, intent.Key) {
				add(deny("host.http.domains["+intent.Key+"]",
					"domain %q is not in the component's declared domain list", intent.Key))
			}
			if e.profile.HTTP == nil || !e.profile.HTTP.Client {
				add(deny("capabilities.http", "profile does not permit outbound HTTP"))
			} else if intent.Key != "" && !e.profile.HTTP.allowsDomain(intent.Key) {
				add(deny("capabilities.http.domains["+intent.Key+"]",
					"domain %q is not allowed by the profile", intent.Key))
			}
		case ActionServe:
			if http == nil || !http.Server {
				add(deny("host.http.server", "component does not declare an HTTP server"))
			}
			if e.profile.HTTP == nil || !e.profile.HTTP.Server {
				add(deny("capabilities.http.server", "profile does not permit serving HTTP"))
			}
		default:
			add(deny("host.http", "unknown http action %q", intent.Action))
		}

	case SurfaceMessaging:
		msg := e.decl.Host.Messaging
		switch intent.Action {
		case ActionSend:
			if msg == nil || !msg.Outbound {
				add(deny("host.messaging.outbound", "component does not declare outbound messaging"))
			}
			if e.profile.Messaging == nil || !e.profile.Messaging.Outbound {
				add(deny("capabilities.messaging.outbound", "profile does not permit outbound messaging"))
			}
		case ActionReceive:
			if msg == nil || !msg.Inbound {
				add(deny("host.messaging.inbound", "component does not declare inbound messaging"))
			}
			if e.profile.Messaging == nil || !e.profile.Messaging.Inbound {
				add(deny("capabilities.messaging.inbound", "profile does not permit inbound messaging"))
			}
		default:
			add(deny("host.messaging", "unknown messaging action %q", intent.Action))
		}

	case SurfaceTelemetry:
		if e.decl.Host.Telemetry == nil {
			add(deny("host.telemetry", "component does not declare telemetry"))
		}
		if !e.profile.Telemetry {
			add(deny("capabilities.telemetry", "profile does not permit telemetry"))
		}

	case SurfaceEnv:
		env := e.decl.Wasi.Env
		if env == nil || !containsString(env.Allow, intent.Key) {
			add(deny("wasi.env.allow["+intent.Key+"]",
				"environment variable %q is not in the component's allow list", intent.Key))
		}
		if e.profile.Env == nil || !e.profile.Env.allowsVar(intent.Key) {
			add(deny("capabilities.env.allow["+intent.Key+"]",
				"environment variable %q is not granted by the profile", intent.Key))
		}

	case SurfaceRandom:
		if !e.decl.Wasi.Random {
			add(deny("wasi.random", "component does not declare random access"))
		}
		if !e.profile.Random {
			add(deny("capabilities.random", "profile does not permit random access"))
		}

	case SurfaceClocks:
		if !e.decl.Wasi.Clocks {
			add(deny("wasi.clocks", "component does not declare clock access"))
		}
		if !e.profile.Clocks {
			add(deny("capabilities.clocks", "profile does not permit clock access"))
		}

	case SurfaceFilesystem:
		fs := e.decl.Wasi.Filesystem
		declMode := FilesystemNone
		if fs != nil {
			declMode = fs.Mode
		}
		profMode := FilesystemNone
		if e.profile.Filesystem != nil {
			profMode = e.profile.Filesystem.Mode
		}
		switch intent.Action {
		case ActionRead:
			if declMode == FilesystemNone {
				add(deny("wasi.filesystem.mode", "component does not declare filesystem access"))
			}
			if profMode == FilesystemNone {
				add(deny("capabilities.filesystem.mode", "profile does not expose a filesystem"))
			}
		case ActionWrite:
			if declMode != FilesystemReadWrite {
				add(deny("wasi.filesystem.mode", "component does not declare filesystem writes"))
			}
			if profMode != FilesystemReadWrite {
				add(deny("capabilities.filesystem.mode", "profile exposes the filesystem read-only"))
			}
		default:
			add(deny("wasi.filesystem", "unknown filesystem action %q", intent.Action))
		}

	default:
		add(deny("host."+string(intent.Surface), "unknown capability surface %q", intent.Surface))
	}

	return denials
}

func declaresSecret(secrets *SecretsCaps, key string) bool {
	for _, req := range secrets.Required {
		if req.Key == key {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
