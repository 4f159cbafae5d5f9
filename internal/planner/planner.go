package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memodash/memodash/internal/recall"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	// PriorityLow exists in the shape but the urgency heuristic never
	// produces it; goals are either urgent or medium.
	PriorityLow Priority = "low"
)

var urgencyKeywords = []string{"urgent", "asap", "immediately", "critical", "emergency"}

// Step is one planned unit of work. DependsOn may reference only step
// IDs that appear earlier in the plan; Validate enforces this.
type Step struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Detail    string   `json:"detail"`
	DependsOn []string `json:"depends_on,omitempty"`
	Tool      string   `json:"tool,omitempty"`
	Outcome   string   `json:"outcome"`
	Status    string   `json:"status,omitempty"`
}

// Plan is a structured, dependency-ordered response to a goal-type
// utterance. Steps are planned, never executed here.
type Plan struct {
	ID          string    `json:"id"`
	Goal        string    `json:"goal"`
	Summary     string    `json:"summary"`
	Priority    Priority  `json:"priority"`
	Timeframe   string    `json:"timeframe"`
	Steps       []Step    `json:"steps"`
	Risks       []string  `json:"risks,omitempty"`
	MissingInfo []string  `json:"missing_info,omitempty"`
	MemoryIDs   []string  `json:"memory_ids,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the dependency invariant: every DependsOn entry must
// name a step that appears earlier in the list, so no forward or
// circular references exist.
func Validate(p *Plan) error {
	earlier := make(map[string]bool, len(p.Steps))
	for i, step := range p.Steps {
		if step.ID == "" {
			return fmt.Errorf("plan %s: step %d has no id", p.ID, i)
		}
		if earlier[step.ID] {
			return fmt.Errorf("plan %s: duplicate step id %q", p.ID, step.ID)
		}
		for _, dep := range step.DependsOn {
			if !earlier[dep] {
				return fmt.Errorf("plan %s: step %q depends on %q which is not an earlier step", p.ID, step.ID, dep)
			}
		}
		earlier[step.ID] = true
	}
	return nil
}

// Planner produces plans from a fixed gather-execute-verify template.
// It is not goal-aware; the model-backed planner is the goal-aware
// alternative and emits the same shape.
type Planner struct{}

func NewPlanner() *Planner {
	return &Planner{}
}

// Plan builds a plan for the goal, grounded on the recalled context.
func (p *Planner) Plan(goal string, recalled []recall.Result) (*Plan, error) {
	memoryIDs := make([]string, 0, len(recalled))
	for _, r := range recalled {
		memoryIDs = append(memoryIDs, r.ID)
	}

	plan := &Plan{
		ID:        "plan_" + uuid.New().String(),
		Goal:      goal,
		Summary:   summarize(goal),
		Priority:  priorityFor(goal),
		Timeframe: timeframeFor(goal),
		Steps: []Step{
			{
				ID:      "step_1",
				Label:   "Gather context",
				Detail:  "Search stored memories and enabled tools for material related to the goal.",
				Tool:    "dashboard.memory.search",
				Outcome: "Relevant prior context collected and reviewed.",
			},
			{
				ID:        "step_2",
				Label:     "Execute the goal",
				Detail:    "Carry out the main work the goal describes, using the gathered context.",
				DependsOn: []string{"step_1"},
				Outcome:   "The goal's primary deliverable exists.",
			},
			{
				ID:        "step_3",
				Label:     "Verify and store the outcome",
				Detail:    "Check the result against the goal and record the outcome for future recall.",
				DependsOn: []string{"step_2"},
				Tool:      "dashboard.memory.save",
				Outcome:   "Outcome verified and saved as context.",
			},
		},
		MemoryIDs: memoryIDs,
		CreatedAt: time.Now().UTC(),
	}

	if len(recalled) < 3 {
		plan.MissingInfo = append(plan.MissingInfo,
			"little related context is stored; details of prior work may be missing")
	}
	if plan.Priority == PriorityHigh {
		plan.Risks = append(plan.Risks, "urgent timeline leaves no slack for blocked steps")
	}

	if err := Validate(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func priorityFor(goal string) Priority {
	lower := strings.ToLower(goal)
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			return PriorityHigh
		}
	}
	return PriorityMedium
}

func timeframeFor(goal string) string {
	words := len(strings.Fields(goal))
	switch {
	case words < 10:
		return "1-2 days"
	case words < 20:
		return "3-5 days"
	default:
		return "1-2 weeks"
	}
}

func summarize(goal string) string {
	const maxLen = 80
	line := strings.Join(strings.Fields(goal), " ")
	if len(line) > maxLen {
		line = line[:maxLen-3] + "..."
	}
	return line
}
