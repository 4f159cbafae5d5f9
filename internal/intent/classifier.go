package intent

import (
	"regexp"
	"strings"
)

// Tier confidences. Tier order, not confidence magnitude, governs
// precedence: the store tier scores higher than the query tier yet is
// evaluated after it.
const (
	confidenceAction   = 0.85
	confidenceWorkflow = 0.8
	confidenceQuery    = 0.7
	confidenceStore    = 0.9
	confidenceGeneral  = 0.5
)

var workflowTriggers = []string{
	"create workflow", "plan workflow", "help me", "i need to",
	"build plan", "set up workflow", "configure workflow",
}

var queryPrefixes = []string{
	"what", "how", "why", "when", "where", "who",
	"explain", "tell me", "describe",
}

var storeTriggers = []string{
	"remember", "save this", "note", "store", "keep in mind",
}

var searchQueryPattern = regexp.MustCompile(
	`(?i)search\s+(?:(?:for|in|my)\s+)?(?:memor(?:y|ies)\s+)?(?:(?:for|about)\s+)?(.+)`)

// Classifier resolves raw text to a typed intent via layered keyword
// matching. Tiers are evaluated in strict precedence order; the first
// match wins and later tiers are never consulted.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

func (c *Classifier) Classify(text string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))

	if in, ok := matchActionPattern(text, lower); ok {
		return in
	}

	for _, trigger := range workflowTriggers {
		if strings.Contains(lower, trigger) {
			return Intent{Type: TypeCreateWorkflow, Confidence: confidenceWorkflow}
		}
	}

	for _, prefix := range queryPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return Intent{Type: TypeQuery, Confidence: confidenceQuery}
		}
	}

	for _, trigger := range storeTriggers {
		if strings.Contains(lower, trigger) {
			return Intent{Type: TypeStore, Confidence: confidenceStore}
		}
	}

	return Intent{Type: TypeGeneral, Confidence: confidenceGeneral}
}

// matchActionPattern is the top tier: a closed set of keyword triggers
// that resolve directly to a catalog action.
func matchActionPattern(original, lower string) (Intent, bool) {
	if strings.Contains(lower, "list") &&
		(strings.Contains(lower, "api key") || strings.Contains(lower, "keys")) {
		return Intent{
			Type:       TypeExecuteAction,
			Action:     "dashboard.api_keys.list",
			Confidence: confidenceAction,
		}, true
	}

	if strings.Contains(lower, "search") &&
		(strings.Contains(lower, "memor") || strings.Contains(lower, "context")) {
		query := ""
		if m := searchQueryPattern.FindStringSubmatch(original); m != nil {
			query = strings.TrimSpace(m[1])
		}
		return Intent{
			Type:       TypeExecuteAction,
			Action:     "dashboard.memory.search",
			Params:     map[string]string{"query": query},
			Confidence: confidenceAction,
		}, true
	}

	return Intent{}, false
}
