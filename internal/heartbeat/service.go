// Package heartbeat periodically checks the tool backend and flips its
// health flag, so requests fail fast while the backend is down and recover
// on the next successful check.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/bookrag/bookrag/internal/metrics"
)

const (
	defaultSchedule = "@every 30s"
	checkTimeout    = 5 * time.Second
)

// Target is a connection that can be pinged and marked up or down.
type Target interface {
	Ping(ctx context.Context) error
	SetHealthy(ok bool)
}

// Service runs the check on a cron schedule.
type Service struct {
	target   Target
	schedule string
	metrics  *metrics.Metrics

	mu   sync.Mutex
	last *bool // nil until the first check
}

// NewService creates a Service. schedule is a robfig cron spec with an
// optional seconds field; empty uses "@every 30s".
func NewService(target Target, schedule string, m *metrics.Metrics) *Service {
	if schedule == "" {
		schedule = defaultSchedule
	}
	return &Service{target: target, schedule: schedule, metrics: m}
}

// Start runs the heartbeat until ctx is cancelled. It returns an error only
// when the schedule cannot be parsed.
func (s *Service) Start(ctx context.Context) error {
	c := robfigcron.New(robfigcron.WithSeconds())
	if _, err := c.AddFunc(s.schedule, func() { s.Check(ctx) }); err != nil {
		return fmt.Errorf("heartbeat schedule %q: %w", s.schedule, err)
	}

	c.Start()
	slog.Info("heartbeat: started", "schedule", s.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("heartbeat: stopped")
	return ctx.Err()
}

// Check runs one health check and records the outcome.
func (s *Service) Check(ctx context.Context) bool {
	cctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	err := s.target.Ping(cctx)
	ok := err == nil
	s.target.SetHealthy(ok)
	s.metrics.SetBackendUp(ok)

	s.mu.Lock()
	changed := s.last == nil || *s.last != ok
	s.last = &ok
	s.mu.Unlock()

	switch {
	case changed && ok:
		slog.Info("heartbeat: tool backend up")
	case changed:
		slog.Warn("heartbeat: tool backend down", "err", err)
	default:
		slog.Debug("heartbeat: check", "ok", ok)
	}
	return ok
}
