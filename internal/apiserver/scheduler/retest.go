package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/amoylab/wshub/internal/apiserver/database"
)

// EnvironmentLister lists stored environments
type EnvironmentLister interface {
	ListEnvironments(ctx context.Context) ([]*database.Environment, error)
}

// Retester re-runs the connection test of one environment
type Retester interface {
	Retest(ctx context.Context, env *database.Environment) (string, error)
}

// RetestConfig holds configuration for the retest scheduler
type RetestConfig struct {
	Lister   EnvironmentLister
	Retester Retester
	Logger   *zap.Logger
	Interval time.Duration
	Workers  int
}

// RunResult summarizes one pass over all environments
type RunResult struct {
	StartTime time.Time      `json:"startTime"`
	Duration  time.Duration  `json:"duration"`
	Tested    int            `json:"tested"`
	Errors    int            `json:"errors"`
	Skipped   int            `json:"skipped"` // changed or deleted while being tested
	Statuses  map[string]int `json:"statuses"`
}

// RetestScheduler periodically re-tests every workspace environment so the
// cached connection status does not go stale
type RetestScheduler struct {
	logger   *zap.Logger
	lister   EnvironmentLister
	retester Retester
	interval time.Duration
	workers  int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	last    *RunResult
}

// NewRetestScheduler creates a retest scheduler. A zero interval disables it.
func NewRetestScheduler(cfg RetestConfig) *RetestScheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &RetestScheduler{
		logger:   cfg.Logger.Named("scheduler.retest"),
		lister:   cfg.Lister,
		retester: cfg.Retester,
		interval: cfg.Interval,
		workers:  cfg.Workers,
	}
}

// Enabled reports whether Start will schedule anything
func (s *RetestScheduler) Enabled() bool {
	return s.interval > 0
}

// Start begins the scheduler loop. It is a no-op when disabled.
func (s *RetestScheduler) Start(ctx context.Context) error {
	if !s.Enabled() {
		s.logger.Debug("environment retest disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("retest scheduler is already running")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true
	s.logger.Info("starting environment retest scheduler",
		zap.Duration("interval", s.interval), zap.Int("workers", s.workers))

	go s.loop(ctx)
	return nil
}

// Stop stops the loop and waits for an in-flight pass to finish
func (s *RetestScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("environment retest scheduler stopped")
}

// LastRun returns the result of the most recent pass, or nil
func (s *RetestScheduler) LastRun() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *RetestScheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("environment retest pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce tests every stored environment with at most Workers in flight.
// A failed connection counts as a status; only storage errors count as errors.
func (s *RetestScheduler) RunOnce(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	envs, err := s.lister.ListEnvironments(ctx)
	if err != nil {
		return nil, err
	}

	res := &RunResult{StartTime: start, Statuses: make(map[string]int)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, env := range envs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			status, err := s.retester.Retest(gctx, env)

			mu.Lock()
			defer mu.Unlock()
			res.Tested++
			if errors.Is(err, database.ErrStale) {
				res.Skipped++
				return nil
			}
			if err != nil {
				res.Errors++
				s.logger.Warn("failed to retest environment",
					zap.String("workspace_id", env.WorkspaceID), zap.Error(err))
				return nil
			}
			res.Statuses[status]++
			return nil
		})
	}
	_ = g.Wait()

	res.Duration = time.Since(start)
	s.logger.Info("environment retest pass finished",
		zap.Int("tested", res.Tested), zap.Int("errors", res.Errors), zap.Int("skipped", res.Skipped), zap.Duration("duration", res.Duration))

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()
	return res, ctx.Err()
}
