package menu

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically removes menus whose timeout never fired, so a lost
// timer cannot pin a menu forever.
type Sweeper struct {
	router   *Router
	schedule string
	maxAge   time.Duration
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewSweeper creates a sweeper that runs on schedule (robfig/cron syntax,
// e.g. "@every 1m") and disbands menus older than maxAge.
func NewSweeper(router *Router, schedule string, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Sweeper{
		router:   router,
		schedule: schedule,
		maxAge:   maxAge,
		logger:   logger.With("component", "sweeper"),
	}
}

// Start schedules the sweep job.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	if _, err := s.cron.AddFunc(s.schedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		s.router.Sweep(sweepCtx, s.maxAge)
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("menu sweeper started", "schedule", s.schedule, "max_age", s.maxAge)
	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
