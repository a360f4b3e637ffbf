// Package scheduler repeats check cycles over the configured URLs on a fixed
// interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webmonitor/internal/metrics"
	"github.com/JakeFAU/webmonitor/internal/monitor"
)

// State is what the loop is doing right now.
type State string

// Loop states.
const (
	StateIdle     State = "idle"
	StateChecking State = "checking"
)

// Checker inspects a single URL.
type Checker interface {
	Check(ctx context.Context, cycleID, url string) monitor.Report
}

// Cycle summarizes one pass over every URL.
type Cycle struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Checked    int       `json:"checked"`
	Failed     int       `json:"failed"`
	Images     int       `json:"images"`
	Fallbacks  int       `json:"fallbacks"`
}

// Scheduler owns the polling loop.
type Scheduler struct {
	checker  Checker
	urls     []string
	interval time.Duration
	ids      monitor.IDGenerator
	clock    monitor.Clock
	logger   *zap.Logger

	mu       sync.RWMutex
	state    State
	last     Cycle
	hasLast  bool
	inflight string
}

// New validates its inputs and returns an idle Scheduler.
func New(checker Checker, urls []string, interval time.Duration, ids monitor.IDGenerator, clock monitor.Clock, logger *zap.Logger) (*Scheduler, error) {
	if checker == nil {
		return nil, errors.New("checker is required")
	}
	if len(urls) == 0 {
		return nil, errors.New("at least one url is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	if ids == nil || clock == nil {
		return nil, errors.New("id generator and clock are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		checker:  checker,
		urls:     append([]string(nil), urls...),
		interval: interval,
		ids:      ids,
		clock:    clock,
		logger:   logger.Named("scheduler"),
		state:    StateIdle,
	}, nil
}

// Run checks every URL immediately and then once per interval until ctx is
// done. Ticks that fire during a long cycle are dropped by the ticker, so
// cycles never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("monitoring started",
		zap.Duration("interval", s.interval),
		zap.Strings("urls", s.urls))

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("monitoring stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cycle over every URL and returns its summary.
// URLs left when ctx is cancelled are skipped.
func (s *Scheduler) RunOnce(ctx context.Context) Cycle {
	cycle := Cycle{ID: s.newCycleID(), StartedAt: s.clock.Now()}
	logger := s.logger.With(zap.String("cycle_id", cycle.ID))

	s.setChecking(cycle.ID)
	metrics.CycleStarted()
	logger.Debug("cycle started", zap.Int("urls", len(s.urls)))

	for _, u := range s.urls {
		if ctx.Err() != nil {
			logger.Info("cycle interrupted", zap.Int("remaining", len(s.urls)-cycle.Checked))
			break
		}
		report := s.checker.Check(ctx, cycle.ID, u)
		cycle.Checked++
		switch {
		case report.Failed():
			cycle.Failed++
		case report.Kind == monitor.KindImage:
			cycle.Images++
		}
		if report.CaptureFellBack {
			cycle.Fallbacks++
		}
	}

	cycle.FinishedAt = s.clock.Now()
	metrics.CycleFinished()
	s.finish(cycle)
	logger.Info("cycle finished",
		zap.Int("checked", cycle.Checked),
		zap.Int("failed", cycle.Failed),
		zap.Duration("took", cycle.FinishedAt.Sub(cycle.StartedAt)))
	return cycle
}

// State reports whether a cycle is running and, if so, its ID.
func (s *Scheduler) State() (State, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.inflight
}

// LastCycle returns the most recent finished cycle.
func (s *Scheduler) LastCycle() (Cycle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.hasLast
}

// URLs returns the monitored URLs.
func (s *Scheduler) URLs() []string {
	return append([]string(nil), s.urls...)
}

// Interval returns the time between cycle starts.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) setChecking(cycleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateChecking
	s.inflight = cycleID
}

func (s *Scheduler) finish(cycle Cycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.inflight = ""
	s.last = cycle
	s.hasLast = true
}

func (s *Scheduler) newCycleID() string {
	id, err := s.ids.NewID()
	if err != nil {
		s.logger.Warn("generate cycle id", zap.Error(err))
		return fmt.Sprintf("cycle-%d", s.clock.Now().UnixNano())
	}
	return id
}
