package intent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/memodash/memodash/internal/provider"
)

const classifySystemPrompt = `You classify a dashboard user's message into exactly one intent.
Respond with a single JSON object and nothing else:
{"type":"create_workflow|query_information|store_context|execute_action|general","action":"tool.action or empty","params":{},"confidence":0.0}
The action field is set only for execute_action and must be a fully qualified tool.action reference.`

// ModelClassifier asks the upstream language model for an intent and
// falls back to the keyword classifier when the model is unreachable
// or returns an unparseable answer. Both producers emit the same typed
// Intent; neither supersedes the other's shape.
type ModelClassifier struct {
	client   provider.Client
	fallback *Classifier
	logger   *zap.Logger
}

func NewModelClassifier(client provider.Client, logger *zap.Logger) *ModelClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelClassifier{
		client:   client,
		fallback: NewClassifier(),
		logger:   logger,
	}
}

func (m *ModelClassifier) Classify(ctx context.Context, text string) Intent {
	if m.client == nil {
		return m.fallback.Classify(text)
	}

	resp, err := m.client.Complete(ctx, &provider.CompletionRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: classifySystemPrompt},
			{Role: provider.RoleUser, Content: text},
		},
		MaxTokens: 256,
	})
	if err != nil {
		m.logger.Warn("model classification failed, using keyword tiers", zap.Error(err))
		return m.fallback.Classify(text)
	}

	in, err := parseIntent(resp.Content)
	if err != nil {
		m.logger.Warn("model returned unparseable intent, using keyword tiers",
			zap.Error(err), zap.String("content", resp.Content))
		return m.fallback.Classify(text)
	}
	return in
}

func parseIntent(content string) (Intent, error) {
	var in Intent
	if err := json.Unmarshal([]byte(stripFences(content)), &in); err != nil {
		return Intent{}, err
	}
	if !in.Type.Valid() {
		return Intent{}, errInvalidType(in.Type)
	}
	if in.Confidence < 0 {
		in.Confidence = 0
	}
	if in.Confidence > 1 {
		in.Confidence = 1
	}
	return in, nil
}

type errInvalidType Type

func (e errInvalidType) Error() string {
	return "invalid intent type " + string(e)
}

// stripFences removes a surrounding markdown code fence, which models
// add despite instructions.
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
