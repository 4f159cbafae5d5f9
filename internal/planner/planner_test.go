package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/memodash/memodash/internal/provider"
	"github.com/memodash/memodash/internal/recall"
)

func recalled(n int) []recall.Result {
	out := make([]recall.Result, n)
	for i := range out {
		out[i] = recall.Result{ID: "mem_" + strings.Repeat("x", i+1), Content: "ctx"}
	}
	return out
}

func TestPlanPriority(t *testing.T) {
	p := NewPlanner()
	tests := []struct {
		goal string
		want Priority
	}{
		{"migrate the database", PriorityMedium},
		{"urgent: migrate the database", PriorityHigh},
		{"need this asap", PriorityHigh},
		{"handle the critical incident", PriorityHigh},
		{"do it immediately", PriorityHigh},
		{"emergency rollback", PriorityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.goal, func(t *testing.T) {
			plan, err := p.Plan(tt.goal, nil)
			if err != nil {
				t.Fatal(err)
			}
			if plan.Priority != tt.want {
				t.Errorf("priority = %q, want %q", plan.Priority, tt.want)
			}
		})
	}
}

func TestPlanTimeframeBuckets(t *testing.T) {
	p := NewPlanner()
	tests := []struct {
		name  string
		words int
		want  string
	}{
		{"short", 5, "1-2 days"},
		{"medium", 15, "3-5 days"},
		{"long", 25, "1-2 weeks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			goal := strings.TrimSpace(strings.Repeat("word ", tt.words))
			plan, err := p.Plan(goal, nil)
			if err != nil {
				t.Fatal(err)
			}
			if plan.Timeframe != tt.want {
				t.Errorf("timeframe = %q, want %q", plan.Timeframe, tt.want)
			}
		})
	}
}

func TestPlanMissingInfo(t *testing.T) {
	p := NewPlanner()

	sparse, err := p.Plan("migrate the database", recalled(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(sparse.MissingInfo) == 0 {
		t.Error("expected missing info with fewer than 3 context items")
	}

	grounded, err := p.Plan("migrate the database", recalled(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(grounded.MissingInfo) != 0 {
		t.Errorf("unexpected missing info: %v", grounded.MissingInfo)
	}
}

func TestPlanShape(t *testing.T) {
	p := NewPlanner()
	ctx := recalled(3)
	plan, err := p.Plan("migrate the database to the new cluster", ctx)
	if err != nil {
		t.Fatal(err)
	}

	if plan.ID == "" || plan.Goal == "" || plan.Summary == "" || plan.CreatedAt.IsZero() {
		t.Errorf("incomplete plan: %+v", plan)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(plan.Steps))
	}
	if len(plan.Steps[0].DependsOn) != 0 {
		t.Error("first step must not depend on anything")
	}
	if len(plan.MemoryIDs) != 3 {
		t.Errorf("memory ids = %d, want 3", len(plan.MemoryIDs))
	}
	for _, step := range plan.Steps {
		if step.Outcome == "" {
			t.Errorf("step %q has no expected outcome", step.ID)
		}
	}
	if err := Validate(plan); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		steps   []Step
		wantErr bool
	}{
		{"empty", nil, false},
		{"chain", []Step{{ID: "a"}, {ID: "b", DependsOn: []string{"a"}}}, false},
		{"forward reference", []Step{{ID: "a", DependsOn: []string{"b"}}, {ID: "b"}}, true},
		{"self reference", []Step{{ID: "a", DependsOn: []string{"a"}}}, true},
		{"unknown reference", []Step{{ID: "a", DependsOn: []string{"ghost"}}}, true},
		{"duplicate id", []Step{{ID: "a"}, {ID: "a"}}, true},
		{"missing id", []Step{{ID: ""}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&Plan{ID: "p", Steps: tt.steps})
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate err = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

type stubClient struct {
	content string
	err     error
}

func (s *stubClient) Complete(_ context.Context, _ *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &provider.CompletionResponse{Content: s.content}, nil
}

func TestModelPlannerParsesModelOutput(t *testing.T) {
	client := &stubClient{content: `{
		"summary": "migrate db",
		"priority": "high",
		"timeframe": "2 days",
		"steps": [
			{"id": "step_1", "label": "snapshot", "outcome": "backup exists"},
			{"id": "step_2", "label": "migrate", "depends_on": ["step_1"], "outcome": "data moved"}
		]
	}`}
	m := NewModelPlanner(client, zap.NewNop())

	plan, err := m.Plan(context.Background(), "migrate the database", recalled(1))
	if err != nil {
		t.Fatal(err)
	}
	if plan.Priority != PriorityHigh || len(plan.Steps) != 2 {
		t.Errorf("got %+v", plan)
	}
	if plan.Goal != "migrate the database" {
		t.Errorf("goal = %q", plan.Goal)
	}
	if len(plan.MemoryIDs) != 1 {
		t.Errorf("memory ids = %v", plan.MemoryIDs)
	}
}

func TestModelPlannerFallsBackOnError(t *testing.T) {
	m := NewModelPlanner(&stubClient{err: errors.New("down")}, zap.NewNop())
	plan, err := m.Plan(context.Background(), "urgent migration", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Steps) != 3 {
		t.Errorf("fallback template not used: %d steps", len(plan.Steps))
	}
	if plan.Priority != PriorityHigh {
		t.Errorf("fallback priority = %q", plan.Priority)
	}
}

func TestModelPlannerRejectsInvalidDependencies(t *testing.T) {
	client := &stubClient{content: `{
		"summary": "x", "priority": "medium", "timeframe": "1 day",
		"steps": [{"id": "step_1", "depends_on": ["step_2"], "outcome": "o"},
		          {"id": "step_2", "outcome": "o"}]
	}`}
	m := NewModelPlanner(client, zap.NewNop())

	plan, err := m.Plan(context.Background(), "goal", nil)
	if err != nil {
		t.Fatal(err)
	}
	// Forward reference must be rejected and the template used instead.
	if len(plan.Steps) != 3 || plan.Steps[0].ID != "step_1" || len(plan.Steps[0].DependsOn) != 0 {
		t.Errorf("expected template fallback, got %+v", plan.Steps)
	}
}
