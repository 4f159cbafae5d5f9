package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/memodash/memodash/internal/capability"
	"github.com/memodash/memodash/internal/intent"
	"github.com/memodash/memodash/internal/metrics"
	"github.com/memodash/memodash/internal/planner"
	"github.com/memodash/memodash/internal/recall"
	"github.com/memodash/memodash/internal/session"
	"github.com/memodash/memodash/internal/store"
)

// Classifier resolves raw text to a typed intent.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Intent
}

// Planner turns a goal plus recalled context into a workflow plan.
type Planner interface {
	Plan(ctx context.Context, goal string, recalled []recall.Result) (*planner.Plan, error)
}

// Dispatcher executes one fully qualified tool action.
type Dispatcher interface {
	Dispatch(ctx context.Context, ref string, params map[string]any) (map[string]any, error)
}

// Recaller retrieves prior context, best-effort.
type Recaller interface {
	Recall(ctx context.Context, userID, query string) []recall.Result
}

// MemoryWriter persists new context records.
type MemoryWriter interface {
	Insert(ctx context.Context, entry *store.MemoryEntry) error
}

// TurnResult is everything one turn produced. DispatchErr carries the
// typed dispatch error for programmatic callers; Reply already
// contains the collapsed user-facing message.
type TurnResult struct {
	Intent      intent.Intent
	Reply       string
	Plan        *planner.Plan
	Recalled    []recall.Result
	Dispatched  map[string]any
	DispatchErr error
}

// Assistant runs one user's dispatch core: classify, ground, branch,
// track. One instance per user per session; turns run sequentially.
type Assistant struct {
	userID     string
	classifier Classifier
	recaller   Recaller
	planner    Planner
	dispatcher Dispatcher
	memories   MemoryWriter
	tracker    *session.Tracker
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithMetrics attaches turn instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// New creates an assistant for one user session.
func New(
	userID string,
	classifier Classifier,
	recaller Recaller,
	pl Planner,
	dispatcher Dispatcher,
	memories MemoryWriter,
	tracker *session.Tracker,
	logger *zap.Logger,
	opts ...Option,
) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Assistant{
		userID:     userID,
		classifier: classifier,
		recaller:   recaller,
		planner:    pl,
		dispatcher: dispatcher,
		memories:   memories,
		tracker:    tracker,
		logger:     logger,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// HandleTurn processes one utterance end to end. Both sides of the
// exchange land in the session log; the tracker snapshots on its own
// cadence.
func (a *Assistant) HandleTurn(ctx context.Context, text string) (*TurnResult, error) {
	in := a.classifier.Classify(ctx, text)
	a.tracker.Append(ctx, session.RoleUser, text)

	result := &TurnResult{Intent: in}
	var err error
	switch in.Type {
	case intent.TypeCreateWorkflow:
		err = a.handleWorkflow(ctx, text, result)
	case intent.TypeQuery:
		a.handleQuery(ctx, text, result)
	case intent.TypeStore:
		err = a.handleStore(ctx, text, result)
	case intent.TypeExecuteAction:
		a.handleExecute(ctx, in, result)
	case intent.TypeGeneral:
		result.Reply = "I can search your stored context, save notes, plan workflows, and run actions on your enabled tools. What do you need?"
	default:
		result.Reply = "I didn't understand that. Try rephrasing?"
	}
	if err != nil {
		return nil, err
	}

	a.tracker.Append(ctx, session.RoleAssistant, result.Reply)
	if a.metrics != nil {
		a.metrics.Turns.WithLabelValues(string(in.Type)).Inc()
	}
	return result, nil
}

func (a *Assistant) handleWorkflow(ctx context.Context, goal string, result *TurnResult) error {
	result.Recalled = a.recaller.Recall(ctx, a.userID, goal)

	plan, err := a.planner.Plan(ctx, goal, result.Recalled)
	if err != nil {
		return fmt.Errorf("planning %q: %w", goal, err)
	}
	result.Plan = plan
	result.Reply = formatPlan(plan)

	// Best-effort record of the plan for future grounding.
	entry := &store.MemoryEntry{
		UserID:  a.userID,
		Title:   "Workflow plan: " + plan.Summary,
		Content: formatPlan(plan),
		Tags:    []string{"workflow", plan.ID},
	}
	if err := a.memories.Insert(ctx, entry); err != nil {
		a.logger.Warn("failed to record workflow plan", zap.Error(err), zap.String("plan_id", plan.ID))
	}
	return nil
}

func (a *Assistant) handleQuery(ctx context.Context, text string, result *TurnResult) {
	result.Recalled = a.recaller.Recall(ctx, a.userID, text)
	if len(result.Recalled) == 0 {
		result.Reply = "I don't have any stored context about that yet."
		return
	}

	var sb strings.Builder
	sb.WriteString("Here's what I found:\n")
	for _, r := range result.Recalled {
		sb.WriteString("- ")
		if r.Title != "" {
			sb.WriteString(r.Title)
			sb.WriteString(": ")
		}
		sb.WriteString(truncate(r.Content, 160))
		sb.WriteString("\n")
	}
	result.Reply = strings.TrimRight(sb.String(), "\n")
}

func (a *Assistant) handleStore(ctx context.Context, text string, result *TurnResult) error {
	entry := &store.MemoryEntry{
		UserID:  a.userID,
		Title:   titleFor(text),
		Content: text,
		Tags:    []string{"noted"},
	}
	// Storing context is an explicit user action; a failed write must
	// surface, not vanish.
	if err := a.memories.Insert(ctx, entry); err != nil {
		return fmt.Errorf("storing context: %w", err)
	}
	result.Reply = "Got it, I'll remember that."
	return nil
}

func (a *Assistant) handleExecute(ctx context.Context, in intent.Intent, result *TurnResult) {
	if in.Action == "" {
		result.Reply = "Tell me which tool action to run, as tool.action."
		return
	}

	params := make(map[string]any, len(in.Params))
	for k, v := range in.Params {
		params[k] = v
	}

	out, err := a.dispatcher.Dispatch(ctx, in.Action, params)
	if err != nil {
		result.DispatchErr = err
		result.Reply = dispatchReply(in.Action, err)
		return
	}
	result.Dispatched = out
	result.Reply = formatDispatchResult(in.Action, out)
}

// dispatchReply renders a dispatch failure for the user. Unknown tools
// and denied actions share one message so the reply does not reveal
// which tools exist; the typed error stays on TurnResult.DispatchErr.
func dispatchReply(ref string, err error) string {
	switch {
	case errors.Is(err, capability.ErrToolNotFound),
		errors.Is(err, capability.ErrPermissionDenied):
		return fmt.Sprintf("I can't run %s for your account. Enable the tool and grant access under Settings → Tools.", ref)
	case errors.Is(err, capability.ErrCredentialRequired):
		return fmt.Sprintf("%s needs a credential before I can use it. Add one under Settings → Tools.", ref)
	case errors.Is(err, capability.ErrInvalidActionRef):
		return fmt.Sprintf("%q doesn't look like a tool action. Use the tool.action form.", ref)
	case errors.Is(err, capability.ErrUnsupported):
		return fmt.Sprintf("%s isn't executable from the assistant yet.", ref)
	case errors.Is(err, capability.ErrRemoteExecutionFailed):
		return fmt.Sprintf("%s failed upstream. Try again in a moment.", ref)
	default:
		return fmt.Sprintf("%s failed: %v", ref, err)
	}
}

func formatDispatchResult(ref string, out map[string]any) string {
	if len(out) == 0 {
		return fmt.Sprintf("Ran %s.", ref)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Sprintf("Ran %s.", ref)
	}
	return fmt.Sprintf("Ran %s:\n%s", ref, data)
}

func formatPlan(p *planner.Plan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan: %s\nPriority: %s · Timeframe: %s\n", p.Summary, p.Priority, p.Timeframe)
	for i, step := range p.Steps {
		fmt.Fprintf(&sb, "%d. %s", i+1, step.Label)
		if len(step.DependsOn) > 0 {
			fmt.Fprintf(&sb, " (after %s)", strings.Join(step.DependsOn, ", "))
		}
		if step.Tool != "" {
			fmt.Fprintf(&sb, " [%s]", step.Tool)
		}
		sb.WriteString("\n")
	}
	for _, risk := range p.Risks {
		fmt.Fprintf(&sb, "Risk: %s\n", risk)
	}
	for _, missing := range p.MissingInfo {
		fmt.Fprintf(&sb, "Missing: %s\n", missing)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func titleFor(text string) string {
	words := strings.Fields(text)
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
