package recall

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/memodash/memodash/internal/metrics"
	"github.com/memodash/memodash/internal/store"
)

const (
	maxResults = 10

	// No semantic backend is available here, so every hit carries the
	// same placeholder score.
	placeholderRelevance = 0.8
)

// Result is one recalled context record.
type Result struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Relevance float64   `json:"relevance"`
}

// MemorySearcher is the slice of the memory collection recall consumes.
type MemorySearcher interface {
	SearchContent(ctx context.Context, userID, fragment string, limit int) ([]*store.MemoryEntry, error)
	SearchTitle(ctx context.Context, userID, fragment string, limit int) ([]*store.MemoryEntry, error)
}

// Cache is an optional short-TTL result cache. Both methods are
// best-effort; implementations report misses instead of errors.
type Cache interface {
	Get(ctx context.Context, userID, query string) ([]Result, bool)
	Set(ctx context.Context, userID, query string, results []Result)
}

// Recaller retrieves prior context relevant to an utterance. Recall is
// best-effort and never returns an error: a grounding failure degrades
// to an empty result, not an aborted turn.
type Recaller struct {
	memories MemorySearcher
	cache    Cache
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Recaller.
type Option func(*Recaller)

// WithCache attaches a result cache.
func WithCache(c Cache) Option {
	return func(r *Recaller) { r.cache = c }
}

// WithMetrics attaches recall instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recaller) { r.metrics = m }
}

// NewRecaller creates a recaller over the given memory collection.
func NewRecaller(memories MemorySearcher, logger *zap.Logger, opts ...Option) *Recaller {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recaller{memories: memories, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Recall returns up to 10 records whose content or title contains the
// sanitized query, deduplicated by id.
func (r *Recaller) Recall(ctx context.Context, userID, query string) []Result {
	sanitized := sanitizeQuery(query)

	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, userID, sanitized); ok {
			r.observe(len(cached))
			return cached
		}
	}

	byContent, err := r.memories.SearchContent(ctx, userID, sanitized, maxResults)
	if err != nil {
		r.logger.Warn("recall content search failed", zap.Error(err), zap.String("user_id", userID))
		byContent = nil
	}
	byTitle, err := r.memories.SearchTitle(ctx, userID, sanitized, maxResults)
	if err != nil {
		r.logger.Warn("recall title search failed", zap.Error(err), zap.String("user_id", userID))
		byTitle = nil
	}

	seen := make(map[string]bool, len(byContent)+len(byTitle))
	var results []Result
	for _, entry := range append(byContent, byTitle...) {
		if seen[entry.ID] {
			continue
		}
		seen[entry.ID] = true
		results = append(results, Result{
			ID:        entry.ID,
			Title:     entry.Title,
			Content:   entry.Content,
			Tags:      entry.Tags,
			CreatedAt: entry.CreatedAt,
			Relevance: placeholderRelevance,
		})
		if len(results) == maxResults {
			break
		}
	}

	if r.cache != nil && len(results) > 0 {
		r.cache.Set(ctx, userID, sanitized, results)
	}
	r.observe(len(results))
	return results
}

func (r *Recaller) observe(n int) {
	if r.metrics != nil {
		r.metrics.RecallResults.Observe(float64(n))
	}
}

// sanitizeQuery substitutes filter metacharacters reserved by the
// storage layer with a wildcard so user text cannot break the filter
// expression.
func sanitizeQuery(query string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '%', '_', ',', '(', ')', '"', '\'':
			return '%'
		}
		return r
	}, query)
}
