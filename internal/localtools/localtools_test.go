package localtools

import (
	"context"
	"errors"
	"testing"

	"github.com/memodash/memodash/internal/identity"
	"github.com/memodash/memodash/internal/recall"
	"github.com/memodash/memodash/internal/store"
)

type fakeBackend struct {
	inserted []*store.MemoryEntry
	recent   []*store.MemoryEntry
	err      error
}

func (f *fakeBackend) Insert(_ context.Context, entry *store.MemoryEntry) error {
	if f.err != nil {
		return f.err
	}
	entry.ID = "mem_test"
	f.inserted = append(f.inserted, entry)
	return nil
}

func (f *fakeBackend) Recent(_ context.Context, _ string, _ int) ([]*store.MemoryEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recent, nil
}

type fakeSearcher struct {
	lastUser  string
	lastQuery string
	results   []recall.Result
}

func (f *fakeSearcher) Recall(_ context.Context, userID, query string) []recall.Result {
	f.lastUser = userID
	f.lastQuery = query
	return f.results
}

func params(extra map[string]any) map[string]any {
	p := map[string]any{"user_id": "u1"}
	for k, v := range extra {
		p[k] = v
	}
	return p
}

func TestMemorySearchScopedToCaller(t *testing.T) {
	s := &fakeSearcher{results: []recall.Result{{ID: "mem_1"}}}
	m := NewMemory(&fakeBackend{}, s)

	out, err := m.Handle(context.Background(), "search", params(map[string]any{"query": "notes"}))
	if err != nil {
		t.Fatal(err)
	}
	if s.lastUser != "u1" || s.lastQuery != "notes" {
		t.Errorf("search scoped wrong: user=%q query=%q", s.lastUser, s.lastQuery)
	}
	if out["count"] != 1 {
		t.Errorf("count = %v", out["count"])
	}
}

func TestMemorySave(t *testing.T) {
	b := &fakeBackend{}
	m := NewMemory(b, &fakeSearcher{})

	out, err := m.Handle(context.Background(), "save",
		params(map[string]any{"title": "t", "content": "c"}))
	if err != nil {
		t.Fatal(err)
	}
	if len(b.inserted) != 1 || b.inserted[0].UserID != "u1" {
		t.Errorf("inserted = %+v", b.inserted)
	}
	if out["id"] == "" {
		t.Error("no id returned")
	}
}

func TestMemorySaveRequiresContent(t *testing.T) {
	m := NewMemory(&fakeBackend{}, &fakeSearcher{})
	if _, err := m.Handle(context.Background(), "save", params(nil)); err == nil {
		t.Error("expected error for missing content")
	}
}

func TestMemoryRejectsMissingCaller(t *testing.T) {
	m := NewMemory(&fakeBackend{}, &fakeSearcher{})
	if _, err := m.Handle(context.Background(), "search", map[string]any{"query": "x"}); err == nil {
		t.Error("expected error when caller identity is absent")
	}
}

func TestMemoryFallsBackToContextIdentity(t *testing.T) {
	s := &fakeSearcher{}
	m := NewMemory(&fakeBackend{}, s)

	ctx := identity.WithUser(context.Background(), "u2")
	if _, err := m.Handle(ctx, "search", map[string]any{"query": "x"}); err != nil {
		t.Fatal(err)
	}
	if s.lastUser != "u2" {
		t.Errorf("context identity not used: %q", s.lastUser)
	}
}

func TestMemoryUnknownAction(t *testing.T) {
	m := NewMemory(&fakeBackend{}, &fakeSearcher{})
	if _, err := m.Handle(context.Background(), "explode", params(nil)); err == nil {
		t.Error("expected error for unknown action")
	}
}

type fakeKeys struct {
	keys      []APIKey
	lastUser  string
	revokeErr error
}

func (f *fakeKeys) List(_ context.Context, userID string) ([]APIKey, error) {
	f.lastUser = userID
	return f.keys, nil
}

func (f *fakeKeys) Create(_ context.Context, userID, label string) (APIKey, error) {
	f.lastUser = userID
	return APIKey{ID: "key_1", Label: label}, nil
}

func (f *fakeKeys) Revoke(_ context.Context, userID, keyID string) error {
	f.lastUser = userID
	return f.revokeErr
}

func TestAPIKeysList(t *testing.T) {
	ks := &fakeKeys{keys: []APIKey{{ID: "key_1", Label: "ci"}}}
	h := NewAPIKeys(ks)

	out, err := h.Handle(context.Background(), "list", params(nil))
	if err != nil {
		t.Fatal(err)
	}
	if ks.lastUser != "u1" {
		t.Errorf("list not scoped to caller: %q", ks.lastUser)
	}
	if out["count"] != 1 {
		t.Errorf("count = %v", out["count"])
	}
}

func TestAPIKeysCreateRequiresLabel(t *testing.T) {
	h := NewAPIKeys(&fakeKeys{})
	if _, err := h.Handle(context.Background(), "create", params(nil)); err == nil {
		t.Error("expected error for missing label")
	}
}

func TestAPIKeysRevokePropagatesError(t *testing.T) {
	h := NewAPIKeys(&fakeKeys{revokeErr: errors.New("nope")})
	_, err := h.Handle(context.Background(), "revoke", params(map[string]any{"key_id": "key_1"}))
	if err == nil {
		t.Error("expected revoke error to propagate")
	}
}

type fakeUsage struct {
	lastPeriod string
}

func (f *fakeUsage) Summary(_ context.Context, _, period string) (UsageSummary, error) {
	f.lastPeriod = period
	return UsageSummary{Period: period, Requests: 42}, nil
}

func TestUsageSummaryDefaultsPeriod(t *testing.T) {
	us := &fakeUsage{}
	h := NewUsage(us)

	out, err := h.Handle(context.Background(), "summary", params(nil))
	if err != nil {
		t.Fatal(err)
	}
	if us.lastPeriod != "month" {
		t.Errorf("period = %q, want default month", us.lastPeriod)
	}
	if out["summary"].(UsageSummary).Requests != 42 {
		t.Errorf("summary = %v", out["summary"])
	}
}
