package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/memodash/memodash/internal/metrics"
	"github.com/memodash/memodash/internal/store"
)

// snapshotInterval is the deterministic snapshot trigger: every 5th
// appended message, not a timer.
const snapshotInterval = 5

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one conversation entry. Appended, never mutated.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// MemoryWriter is the slice of the context store snapshots are
// written to.
type MemoryWriter interface {
	Insert(ctx context.Context, entry *store.MemoryEntry) error
}

// Tracker owns one session's append-only message log. Every 5th
// message it summarizes the last 5 into one context-store write tagged
// with the session id; a failed write is logged and swallowed, never
// failing the user-facing turn. Snapshotted messages are dropped from
// the live log; durable retention of the summary belongs to the
// memory store.
type Tracker struct {
	mu           sync.Mutex
	sessionID    string
	userID       string
	messages     []Message
	appended     int
	lastActivity time.Time
	memories     MemoryWriter
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMetrics attaches snapshot instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// NewTracker creates a tracker for one session.
func NewTracker(sessionID, userID string, memories MemoryWriter, logger *zap.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		sessionID:    sessionID,
		userID:       userID,
		memories:     memories,
		logger:       logger,
		lastActivity: time.Now(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tracker) SessionID() string { return t.sessionID }

// Append records one message and snapshots when the 5th message since
// the last snapshot lands.
func (t *Tracker) Append(ctx context.Context, role Role, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = append(t.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	t.appended++
	t.lastActivity = time.Now()

	if t.appended%snapshotInterval == 0 {
		t.snapshotLocked(ctx, snapshotInterval)
	}
}

// Flush snapshots any messages not yet covered by a periodic snapshot.
// Used before a session is dropped.
func (t *Tracker) Flush(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.messages) == 0 {
		return
	}
	t.snapshotLocked(ctx, len(t.messages))
}

// snapshotLocked summarizes the last n live messages into one memory
// entry. On success the covered messages leave the live log; on
// failure they stay and the error is swallowed.
func (t *Tracker) snapshotLocked(ctx context.Context, n int) {
	if n > len(t.messages) {
		n = len(t.messages)
	}
	if n == 0 {
		return
	}
	window := t.messages[len(t.messages)-n:]

	entry := &store.MemoryEntry{
		UserID:  t.userID,
		Title:   fmt.Sprintf("Conversation snapshot (%s)", t.sessionID),
		Content: summarize(window),
		Tags:    []string{"conversation", t.sessionID},
	}
	if err := t.memories.Insert(ctx, entry); err != nil {
		t.logger.Warn("conversation snapshot failed",
			zap.Error(err),
			zap.String("session_id", t.sessionID))
		if t.metrics != nil {
			t.metrics.SnapshotFailures.Inc()
		}
		return
	}
	t.messages = t.messages[:len(t.messages)-n]
}

// Messages returns a copy of the live (not yet snapshotted) log.
func (t *Tracker) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// LastActivity returns the time of the most recent append.
func (t *Tracker) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActivity
}

func summarize(window []Message) string {
	var sb strings.Builder
	for _, m := range window {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(truncate(m.Content, 200))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
