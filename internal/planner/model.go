package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memodash/memodash/internal/provider"
	"github.com/memodash/memodash/internal/recall"
)

const planSystemPrompt = `You turn a user goal into a structured workflow plan.
Respond with a single JSON object and nothing else, in this shape:
{"summary":"one line","priority":"high|medium|low","timeframe":"estimate",
"steps":[{"id":"step_1","label":"...","detail":"...","depends_on":[],"tool":"tool.action or empty","outcome":"..."}],
"risks":[],"missing_info":[]}
Step depends_on entries may reference only earlier step ids.`

// ModelPlanner asks the upstream language model for a plan and falls
// back to the template planner when the model fails or emits a plan
// that violates the dependency invariant. Both producers emit the same
// typed Plan.
type ModelPlanner struct {
	client   provider.Client
	fallback *Planner
	logger   *zap.Logger
}

func NewModelPlanner(client provider.Client, logger *zap.Logger) *ModelPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelPlanner{
		client:   client,
		fallback: NewPlanner(),
		logger:   logger,
	}
}

func (m *ModelPlanner) Plan(ctx context.Context, goal string, recalled []recall.Result) (*Plan, error) {
	if m.client == nil {
		return m.fallback.Plan(goal, recalled)
	}

	resp, err := m.client.Complete(ctx, &provider.CompletionRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: planSystemPrompt},
			{Role: provider.RoleUser, Content: buildPlanRequest(goal, recalled)},
		},
		MaxTokens: 2048,
	})
	if err != nil {
		m.logger.Warn("model planning failed, using template planner", zap.Error(err))
		return m.fallback.Plan(goal, recalled)
	}

	plan, err := parsePlan(resp.Content, goal, recalled)
	if err != nil {
		m.logger.Warn("model returned invalid plan, using template planner", zap.Error(err))
		return m.fallback.Plan(goal, recalled)
	}
	return plan, nil
}

func buildPlanRequest(goal string, recalled []recall.Result) string {
	var sb strings.Builder
	sb.WriteString("Goal: ")
	sb.WriteString(goal)
	if len(recalled) > 0 {
		sb.WriteString("\n\nRelated stored context:\n")
		for _, r := range recalled {
			sb.WriteString("- ")
			if r.Title != "" {
				sb.WriteString(r.Title)
				sb.WriteString(": ")
			}
			sb.WriteString(r.Content)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func parsePlan(content, goal string, recalled []recall.Result) (*Plan, error) {
	var plan Plan
	if err := json.Unmarshal([]byte(stripFences(content)), &plan); err != nil {
		return nil, err
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("model plan has no steps")
	}
	switch plan.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return nil, fmt.Errorf("model plan has invalid priority %q", plan.Priority)
	}

	plan.ID = "plan_" + uuid.New().String()
	plan.Goal = goal
	plan.CreatedAt = time.Now().UTC()
	plan.MemoryIDs = plan.MemoryIDs[:0]
	for _, r := range recalled {
		plan.MemoryIDs = append(plan.MemoryIDs, r.ID)
	}

	if err := Validate(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
