// Package schedule switches the home between day and night on a cron
// schedule. Each transition goes through the console, so it has the same
// lighting side effects and journal entry as an operator toggle.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/gray-logic-agents/internal/journal"
)

// NightSetter applies a day/night transition.
type NightSetter interface {
	SetNight(ctx context.Context, source string, night bool) (bool, error)
}

// Logger is the logging interface used by the scheduler.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds standard five-field cron specs for dusk and dawn.
type Config struct {
	Dusk     string
	Dawn     string
	Location *time.Location
}

// Scheduler fires dusk and dawn transitions.
type Scheduler struct {
	target NightSetter
	logger Logger
	dusk   cron.Schedule
	dawn   cron.Schedule
	loc    *time.Location

	mu  sync.Mutex
	ctx context.Context
}

// New parses the dusk and dawn specs.
func New(cfg Config, target NightSetter, logger Logger) (*Scheduler, error) {
	dusk, err := cron.ParseStandard(cfg.Dusk)
	if err != nil {
		return nil, fmt.Errorf("parsing dusk spec %q: %w", cfg.Dusk, err)
	}
	dawn, err := cron.ParseStandard(cfg.Dawn)
	if err != nil {
		return nil, fmt.Errorf("parsing dawn spec %q: %w", cfg.Dawn, err)
	}
	if logger == nil {
		logger = noopLogger{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		target: target,
		logger: logger,
		dusk:   dusk,
		dawn:   dawn,
		loc:    loc,
		ctx:    context.Background(),
	}, nil
}

// NightAt reports whether t falls between a dusk and the following dawn:
// it is night when the next dawn comes before the next dusk.
func (s *Scheduler) NightAt(t time.Time) bool {
	t = t.In(s.loc)
	return s.dawn.Next(t).Before(s.dusk.Next(t))
}

// Next returns the next dusk and dawn after t.
func (s *Scheduler) Next(t time.Time) (dusk, dawn time.Time) {
	t = t.In(s.loc)
	return s.dusk.Next(t), s.dawn.Next(t)
}

// Run aligns the home with the schedule, then fires transitions until ctx
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.apply(s.NightAt(time.Now()))

	c := cron.New(cron.WithLocation(s.loc))
	c.Schedule(s.dusk, cron.FuncJob(func() { s.apply(true) }))
	c.Schedule(s.dawn, cron.FuncJob(func() { s.apply(false) }))
	c.Start()

	dusk, dawn := s.Next(time.Now())
	s.logger.Info("day/night schedule started", "next_dusk", dusk, "next_dawn", dawn)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) apply(night bool) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	changed, err := s.target.SetNight(ctx, journal.SourceSchedule, night)
	if err != nil {
		s.logger.Error("scheduled day/night switch failed", "night", night, "error", err)
		return
	}
	if changed {
		s.logger.Info("scheduled day/night switch", "night", night)
	}
}
