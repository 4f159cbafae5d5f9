package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/memodash/memodash/internal/session"
)

// Sweeper drops session trackers that have been idle past the TTL,
// flushing their remaining messages to the context store first. It
// runs on a cron schedule so retention keeps pace even when no turns
// arrive.
type Sweeper struct {
	sessions *session.Store
	ttl      time.Duration
	schedule string
	logger   *zap.Logger
	cron     *cron.Cron
}

// NewSweeper builds a sweeper over the live session store. schedule is
// a standard cron expression; ttl is the idle cutoff.
func NewSweeper(sessions *session.Store, ttl time.Duration, schedule string, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		sessions: sessions,
		ttl:      ttl,
		schedule: schedule,
		logger:   logger,
	}
}

// Start schedules the sweep. Returns an error if the schedule does
// not parse.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.sweep(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("retention sweeper started",
		zap.String("schedule", s.schedule),
		zap.Duration("ttl", s.ttl))
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// sweep flushes and drops every tracker idle longer than the TTL.
func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.ttl)
	swept := 0
	for _, t := range s.sessions.List() {
		if t.LastActivity().After(cutoff) {
			continue
		}
		t.Flush(ctx)
		s.sessions.Delete(t.SessionID())
		swept++
	}
	if swept > 0 {
		s.logger.Info("swept idle sessions", zap.Int("count", swept))
	}
}
