package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/memodash/memodash/internal/catalog"
	"github.com/memodash/memodash/internal/metrics"
	"github.com/memodash/memodash/internal/proxy"
	"github.com/memodash/memodash/internal/store"
)

// ConfigStore is the slice of the persistence service the registry
// consumes. Writes are atomic per single record; concurrent writes to
// the same (user, tool) row are last-write-wins.
type ConfigStore interface {
	LoadAll(ctx context.Context, userID string) ([]*store.UserToolConfig, error)
	Upsert(ctx context.Context, cfg *store.UserToolConfig) error
	SetEnabled(ctx context.Context, userID, toolID string, enabled bool) error
}

// ProxyClient relays remote-protocol calls through the execution proxy.
type ProxyClient interface {
	Execute(ctx context.Context, req *proxy.Request) (map[string]any, error)
}

// Registry merges the static catalog with one user's stored configs
// and owns dispatch. One instance per user per session; the cache is
// never shared across users.
type Registry struct {
	mu       sync.RWMutex
	userID   string
	configs  map[string]*store.UserToolConfig
	configDB ConfigStore
	handlers map[string]Handler
	proxy    ProxyClient
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics attaches dispatch instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates a registry for one user. Call Initialize before
// serving queries.
func NewRegistry(configDB ConfigStore, px ProxyClient, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		configs:  make(map[string]*store.UserToolConfig),
		configDB: configDB,
		handlers: make(map[string]Handler),
		proxy:    px,
		logger:   logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterHandler binds an in-process handler to a local-kind tool.
func (r *Registry) RegisterHandler(toolID string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[toolID]; exists {
		return fmt.Errorf("handler for %q already registered", toolID)
	}
	r.handlers[toolID] = h
	return nil
}

// Initialize loads the user's config rows into the local cache. A
// not-yet-migrated backing table degrades to an empty cache so
// catalog-only dashboard tools keep working.
func (r *Registry) Initialize(ctx context.Context, userID string) error {
	rows, err := r.configDB.LoadAll(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrMissingTable) {
			r.logger.Warn("tool config table missing, serving catalog-only tools",
				zap.String("user_id", userID))
			rows = nil
		} else {
			return fmt.Errorf("registry initialize: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.userID = userID
	r.configs = make(map[string]*store.UserToolConfig, len(rows))
	for _, cfg := range rows {
		r.configs[cfg.ToolID] = cfg
	}
	return nil
}

// EnabledTools returns the tools the assistant may present: every
// local tool unconditionally, everything else only when the user's
// stored config enables it.
func (r *Registry) EnabledTools() []catalog.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []catalog.ToolDefinition
	for _, def := range catalog.All() {
		if def.Kind == catalog.KindLocal {
			out = append(out, def)
			continue
		}
		if cfg, ok := r.configs[def.ID]; ok && cfg.Enabled {
			out = append(out, def)
		}
	}
	return out
}

// CanInvoke reports whether the assistant may invoke the action
// unattended. Local tools are first-party and always trusted. For all
// other kinds, a config row must exist and list the action. An unknown
// tool ID answers false; absence of permission and absence of
// knowledge are indistinguishable here.
func (r *Registry) CanInvoke(toolID, actionID string) bool {
	def, ok := catalog.Lookup(toolID)
	if !ok {
		return false
	}
	if def.Kind == catalog.KindLocal {
		return true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[toolID]
	return ok && cfg.HasPermission(actionID)
}

// Grant enables a tool for the user with the given credential and
// authorized action list. The cache is updated only after the
// persistence write succeeds.
func (r *Registry) Grant(ctx context.Context, toolID, credential string, permissions []string) error {
	if _, ok := catalog.Lookup(toolID); !ok {
		return fmt.Errorf("grant %q: %w", toolID, ErrToolNotFound)
	}

	cfg := &store.UserToolConfig{
		UserID:      r.userID,
		ToolID:      toolID,
		Enabled:     true,
		Credential:  credential,
		Permissions: permissions,
	}
	if err := r.configDB.Upsert(ctx, cfg); err != nil {
		return fmt.Errorf("grant %q: %w", toolID, err)
	}

	r.mu.Lock()
	r.configs[toolID] = cfg
	r.mu.Unlock()
	return nil
}

// Revoke disables a tool without clearing its granted permissions, so
// a later re-enable restores the previous authorization.
func (r *Registry) Revoke(ctx context.Context, toolID string) error {
	if err := r.configDB.SetEnabled(ctx, r.userID, toolID, false); err != nil {
		return fmt.Errorf("revoke %q: %w", toolID, err)
	}

	r.mu.Lock()
	if cfg, ok := r.configs[toolID]; ok {
		cfg.Enabled = false
	}
	r.mu.Unlock()
	return nil
}

// Permissions returns the granted action list for a tool, or nil.
func (r *Registry) Permissions(toolID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cfg, ok := r.configs[toolID]; ok {
		out := make([]string, len(cfg.Permissions))
		copy(out, cfg.Permissions)
		return out
	}
	return nil
}

// Dispatch resolves ref ("<toolID>.<actionID>"), checks the permission
// grant, and executes the action via the strategy the catalog declares
// for the tool. The permission check precedes every handler and
// network call; there is no path around it. Dispatch keeps no per-call
// state and is safe to re-enter.
func (r *Registry) Dispatch(ctx context.Context, ref string, params map[string]any) (map[string]any, error) {
	toolID, actionID, err := SplitActionRef(ref)
	if err != nil {
		r.count(metrics.OutcomeBadRef)
		return nil, err
	}

	def, ok := catalog.Lookup(toolID)
	if !ok {
		r.count(metrics.OutcomeNotFound)
		return nil, fmt.Errorf("dispatch %q: %w", ref, ErrToolNotFound)
	}

	if !r.CanInvoke(toolID, actionID) {
		r.count(metrics.OutcomeDenied)
		return nil, fmt.Errorf("dispatch %q: %w", ref, ErrPermissionDenied)
	}

	// Augment with the caller's identity so local handlers can scope
	// their own queries.
	callParams := make(map[string]any, len(params)+1)
	for k, v := range params {
		callParams[k] = v
	}
	callParams["user_id"] = r.userID

	switch def.Kind {
	case catalog.KindLocal:
		r.mu.RLock()
		h, ok := r.handlers[toolID]
		r.mu.RUnlock()
		if !ok {
			r.count(metrics.OutcomeUnsupported)
			return nil, fmt.Errorf("dispatch %q: no local handler registered", ref)
		}
		result, err := h.Handle(ctx, actionID, callParams)
		if err != nil {
			r.count(metrics.OutcomeHandlerError)
			return nil, fmt.Errorf("dispatch %q: %w", ref, err)
		}
		r.count(metrics.OutcomeOK)
		return result, nil

	case catalog.KindRemoteProtocol:
		r.mu.RLock()
		cfg := r.configs[toolID]
		r.mu.RUnlock()
		credential := ""
		if cfg != nil {
			credential = cfg.Credential
		}
		if def.RequiresCredential && credential == "" {
			r.count(metrics.OutcomeNoCredential)
			return nil, fmt.Errorf("dispatch %q: %w", ref, ErrCredentialRequired)
		}
		result, err := r.proxy.Execute(ctx, &proxy.Request{
			ToolID:     toolID,
			ActionID:   actionID,
			Params:     callParams,
			Credential: credential,
		})
		if err != nil {
			r.count(metrics.OutcomeRemoteFailed)
			return nil, fmt.Errorf("dispatch %q: %w: %v", ref, ErrRemoteExecutionFailed, err)
		}
		r.count(metrics.OutcomeOK)
		return result, nil

	case catalog.KindGenericAPI:
		r.count(metrics.OutcomeUnsupported)
		return nil, fmt.Errorf("dispatch %q: generic-api tools: %w", ref, ErrUnsupported)

	default:
		r.count(metrics.OutcomeUnsupported)
		return nil, fmt.Errorf("dispatch %q: kind %q: %w", ref, def.Kind, ErrUnsupported)
	}
}

func (r *Registry) count(outcome string) {
	if r.metrics != nil {
		r.metrics.Dispatches.WithLabelValues(outcome).Inc()
	}
}
