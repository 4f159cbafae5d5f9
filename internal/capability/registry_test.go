package capability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/memodash/memodash/internal/catalog"
	"github.com/memodash/memodash/internal/proxy"
	"github.com/memodash/memodash/internal/store"
)

type fakeConfigStore struct {
	rows      map[string]*store.UserToolConfig
	loadErr   error
	upsertErr error
	flagErr   error
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{rows: make(map[string]*store.UserToolConfig)}
}

func (f *fakeConfigStore) LoadAll(_ context.Context, userID string) ([]*store.UserToolConfig, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	var out []*store.UserToolConfig
	for _, cfg := range f.rows {
		if cfg.UserID == userID {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (f *fakeConfigStore) Upsert(_ context.Context, cfg *store.UserToolConfig) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	clone := *cfg
	f.rows[cfg.ToolID] = &clone
	return nil
}

func (f *fakeConfigStore) SetEnabled(_ context.Context, userID, toolID string, enabled bool) error {
	if f.flagErr != nil {
		return f.flagErr
	}
	cfg, ok := f.rows[toolID]
	if !ok || cfg.UserID != userID {
		return fmt.Errorf("no row for %s/%s", userID, toolID)
	}
	cfg.Enabled = enabled
	return nil
}

type fakeProxy struct {
	calls   int
	lastReq *proxy.Request
	result  map[string]any
	err     error
}

func (f *fakeProxy) Execute(_ context.Context, req *proxy.Request) (map[string]any, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type countingHandler struct {
	calls      int
	lastAction string
	lastParams map[string]any
	result     map[string]any
	err        error
}

func (h *countingHandler) Handle(_ context.Context, actionID string, params map[string]any) (map[string]any, error) {
	h.calls++
	h.lastAction = actionID
	h.lastParams = params
	if h.err != nil {
		return nil, h.err
	}
	return h.result, nil
}

func newTestRegistry(t *testing.T, cs ConfigStore, px ProxyClient) *Registry {
	t.Helper()
	r := NewRegistry(cs, px, zap.NewNop())
	if err := r.Initialize(context.Background(), "u1"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return r
}

func TestLocalToolsAlwaysEnabled(t *testing.T) {
	r := newTestRegistry(t, newFakeConfigStore(), &fakeProxy{})

	enabled := make(map[string]bool)
	for _, d := range r.EnabledTools() {
		enabled[d.ID] = true
	}
	for _, d := range catalog.All() {
		if d.Kind == catalog.KindLocal && !enabled[d.ID] {
			t.Errorf("local tool %q missing from EnabledTools with no stored config", d.ID)
		}
		if d.Kind != catalog.KindLocal && enabled[d.ID] {
			t.Errorf("non-local tool %q enabled with no stored config", d.ID)
		}
	}
}

func TestCanInvokeLocalUnconditional(t *testing.T) {
	r := newTestRegistry(t, newFakeConfigStore(), &fakeProxy{})
	for _, d := range catalog.All() {
		if d.Kind != catalog.KindLocal {
			continue
		}
		for _, a := range d.Actions {
			if !r.CanInvoke(d.ID, a.ID) {
				t.Errorf("CanInvoke(%s, %s) = false for local tool", d.ID, a.ID)
			}
		}
	}
}

func TestCanInvokeNonLocalRequiresGrant(t *testing.T) {
	r := newTestRegistry(t, newFakeConfigStore(), &fakeProxy{})

	if r.CanInvoke("integrations.github", "list_issues") {
		t.Error("CanInvoke true with no stored config")
	}
	if err := r.Grant(context.Background(), "integrations.github", "tok", []string{"list_issues"}); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if !r.CanInvoke("integrations.github", "list_issues") {
		t.Error("CanInvoke false for granted action")
	}
	if r.CanInvoke("integrations.github", "create_issue") {
		t.Error("CanInvoke true for ungranted action")
	}
}

func TestCanInvokeUnknownTool(t *testing.T) {
	r := newTestRegistry(t, newFakeConfigStore(), &fakeProxy{})
	if r.CanInvoke("ghost.tool", "anything") {
		t.Error("CanInvoke true for unknown tool")
	}
}

func TestRevokeKeepsPermissions(t *testing.T) {
	r := newTestRegistry(t, newFakeConfigStore(), &fakeProxy{})
	ctx := context.Background()

	if err := r.Grant(ctx, "integrations.github", "tok", []string{"a1"}); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := r.Revoke(ctx, "integrations.github"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	perms := r.Permissions("integrations.github")
	if len(perms) != 1 || perms[0] != "a1" {
		t.Errorf("permissions after revoke = %v, want [a1]", perms)
	}

	var found bool
	for _, d := range r.EnabledTools() {
		if d.ID == "integrations.github" {
			found = true
		}
	}
	if found {
		t.Error("revoked tool still listed as enabled")
	}
}

func TestGrantWriteFailureLeavesCacheUntouched(t *testing.T) {
	cs := newFakeConfigStore()
	r := newTestRegistry(t, cs, &fakeProxy{})

	cs.upsertErr = errors.New("persistence down")
	if err := r.Grant(context.Background(), "integrations.github", "tok", []string{"a1"}); err == nil {
		t.Fatal("expected Grant to propagate persistence error")
	}
	if r.CanInvoke("integrations.github", "a1") {
		t.Error("cache updated despite failed persistence write")
	}
}

func TestGrantUnknownTool(t *testing.T) {
	r := newTestRegistry(t, newFakeConfigStore(), &fakeProxy{})
	err := r.Grant(context.Background(), "ghost.tool", "", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Grant error = %v, want ErrToolNotFound", err)
	}
}

func TestInitializeMissingTableDegrades(t *testing.T) {
	cs := newFakeConfigStore()
	cs.loadErr = fmt.Errorf("wrapped: %w", store.ErrMissingTable)
	r := NewRegistry(cs, &fakeProxy{}, zap.NewNop())

	if err := r.Initialize(context.Background(), "u1"); err != nil {
		t.Fatalf("Initialize should degrade on missing table, got %v", err)
	}
	if len(r.EnabledTools()) == 0 {
		t.Error("catalog-only tools not served after degraded initialize")
	}
}

func TestInitializeOtherErrorPropagates(t *testing.T) {
	cs := newFakeConfigStore()
	cs.loadErr = errors.New("connection refused")
	r := NewRegistry(cs, &fakeProxy{}, zap.NewNop())
	if err := r.Initialize(context.Background(), "u1"); err == nil {
		t.Error("expected non-schema load errors to propagate")
	}
}

func TestDispatchInvalidRef(t *testing.T) {
	r := newTestRegistry(t, newFakeConfigStore(), &fakeProxy{})
	_, err := r.Dispatch(context.Background(), "badformat", nil)
	if !errors.Is(err, ErrInvalidActionRef) {
		t.Errorf("Dispatch error = %v, want ErrInvalidActionRef", err)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := newTestRegistry(t, newFakeConfigStore(), &fakeProxy{})
	_, err := r.Dispatch(context.Background(), "ghost.tool.run", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Dispatch error = %v, want ErrToolNotFound", err)
	}
}

func TestDispatchDeniedNeverInvokes(t *testing.T) {
	px := &fakeProxy{}
	r := newTestRegistry(t, newFakeConfigStore(), px)
	h := &countingHandler{}
	// Bind a handler to a remote tool's ID to prove neither path runs.
	if err := r.RegisterHandler("integrations.github", h); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	_, err := r.Dispatch(context.Background(), "integrations.github.list_issues", nil)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Dispatch error = %v, want ErrPermissionDenied", err)
	}
	if h.calls != 0 {
		t.Errorf("handler invoked %d times on denied dispatch", h.calls)
	}
	if px.calls != 0 {
		t.Errorf("proxy invoked %d times on denied dispatch", px.calls)
	}
}

func TestDispatchLocal(t *testing.T) {
	r := newTestRegistry(t, newFakeConfigStore(), &fakeProxy{})
	h := &countingHandler{result: map[string]any{"keys": []string{}}}
	if err := r.RegisterHandler("dashboard.api_keys", h); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	result, err := r.Dispatch(context.Background(), "dashboard.api_keys.list", map[string]any{"limit": 5})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if h.calls != 1 || h.lastAction != "list" {
		t.Errorf("handler calls = %d, action = %q", h.calls, h.lastAction)
	}
	if h.lastParams["user_id"] != "u1" {
		t.Errorf("caller identity not injected: %v", h.lastParams)
	}
	if h.lastParams["limit"] != 5 {
		t.Errorf("caller params dropped: %v", h.lastParams)
	}
	if result == nil {
		t.Error("result not propagated")
	}
}

func TestDispatchLocalNoHandler(t *testing.T) {
	r := newTestRegistry(t, newFakeConfigStore(), &fakeProxy{})
	if _, err := r.Dispatch(context.Background(), "dashboard.usage.summary", nil); err == nil {
		t.Error("expected error for local tool with no registered handler")
	}
}

func TestDispatchRemote(t *testing.T) {
	px := &fakeProxy{result: map[string]any{"ok": true}}
	r := newTestRegistry(t, newFakeConfigStore(), px)
	ctx := context.Background()

	if err := r.Grant(ctx, "integrations.github", "tok_123", []string{"list_issues"}); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	result, err := r.Dispatch(ctx, "integrations.github.list_issues", map[string]any{"repo": "m/m"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if px.calls != 1 {
		t.Fatalf("proxy calls = %d, want 1", px.calls)
	}
	if px.lastReq.Credential != "tok_123" {
		t.Errorf("credential = %q", px.lastReq.Credential)
	}
	if px.lastReq.Params["user_id"] != "u1" || px.lastReq.Params["repo"] != "m/m" {
		t.Errorf("params = %v", px.lastReq.Params)
	}
	if result["ok"] != true {
		t.Errorf("result = %v", result)
	}
}

func TestDispatchRemoteCredentialRequired(t *testing.T) {
	px := &fakeProxy{}
	r := newTestRegistry(t, newFakeConfigStore(), px)
	ctx := context.Background()

	// Granted but no credential stored.
	if err := r.Grant(ctx, "integrations.github", "", []string{"list_issues"}); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	_, err := r.Dispatch(ctx, "integrations.github.list_issues", nil)
	if !errors.Is(err, ErrCredentialRequired) {
		t.Errorf("Dispatch error = %v, want ErrCredentialRequired", err)
	}
	if px.calls != 0 {
		t.Error("proxy invoked despite missing credential")
	}
}

func TestDispatchRemoteFailure(t *testing.T) {
	px := &fakeProxy{err: errors.New("status 502")}
	r := newTestRegistry(t, newFakeConfigStore(), px)
	ctx := context.Background()

	if err := r.Grant(ctx, "integrations.github", "tok", []string{"list_issues"}); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	_, err := r.Dispatch(ctx, "integrations.github.list_issues", nil)
	if !errors.Is(err, ErrRemoteExecutionFailed) {
		t.Errorf("Dispatch error = %v, want ErrRemoteExecutionFailed", err)
	}
}

func TestDispatchGenericAPIUnsupported(t *testing.T) {
	r := newTestRegistry(t, newFakeConfigStore(), &fakeProxy{})
	ctx := context.Background()

	if err := r.Grant(ctx, "web.request", "", []string{"get"}); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	_, err := r.Dispatch(ctx, "web.request.get", map[string]any{"url": "https://example.com"})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Dispatch error = %v, want ErrUnsupported", err)
	}
}

func TestDispatchDoesNotMutateCallerParams(t *testing.T) {
	r := newTestRegistry(t, newFakeConfigStore(), &fakeProxy{})
	h := &countingHandler{}
	if err := r.RegisterHandler("dashboard.memory", h); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	params := map[string]any{"query": "notes"}
	if _, err := r.Dispatch(context.Background(), "dashboard.memory.search", params); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, leaked := params["user_id"]; leaked {
		t.Error("dispatch mutated the caller's params map")
	}
}
