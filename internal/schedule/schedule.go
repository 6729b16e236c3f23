// Package schedule fires a callback on a cron expression that can be
// changed while running.
package schedule

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/robfig/cron/v3"

	"github.com/raoulx24/wandering-echo/internal/logging"
)

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as @daily or @every 6h.
func Parse(expr string) (cron.Schedule, error) {
	s, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, errors.Annotatef(err, "invalid schedule %q", expr)
	}
	return s, nil
}

type Scheduler struct {
	clock clock.Clock
	log   logging.Logger
	fire  func(at time.Time)

	mu      sync.Mutex
	expr    string
	sched   cron.Schedule
	changed chan struct{}
}

func New(expr string, clk clock.Clock, log logging.Logger, fire func(at time.Time)) (*Scheduler, error) {
	sched, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		clock:   clk,
		log:     log,
		fire:    fire,
		expr:    strings.TrimSpace(expr),
		sched:   sched,
		changed: make(chan struct{}, 1),
	}, nil
}

// Reschedule swaps the expression. It reports false when expr is the
// current one.
func (s *Scheduler) Reschedule(expr string) (bool, error) {
	expr = strings.TrimSpace(expr)
	sched, err := Parse(expr)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if expr == s.expr {
		s.mu.Unlock()
		return false, nil
	}
	s.expr, s.sched = expr, sched
	s.mu.Unlock()

	s.log.Info("schedule changed", "cron", expr)
	select {
	case s.changed <- struct{}{}:
	default:
	}
	return true, nil
}

func (s *Scheduler) Expr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expr
}

// Next returns the first activation after from.
func (s *Scheduler) Next(from time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Next(from)
}

// Run fires until ctx is done. fire runs on this goroutine and must not
// block for long.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := s.clock.Now()
		next := s.Next(now)
		if next.IsZero() {
			return errors.Errorf("schedule %q never fires", s.Expr())
		}
		s.log.Debug("next run", "at", next)

		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.changed:
			timer.Stop()
		case at := <-timer.Chan():
			s.fire(at)
		}
	}
}
