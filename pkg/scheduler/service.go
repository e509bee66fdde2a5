// Package scheduler retrains the pipeline on a cron schedule.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// Task is one full pipeline run.
type Task func(ctx context.Context) error

// Status describes the scheduled job.
type Status struct {
	Schedule  string     `json:"schedule"`
	Running   bool       `json:"running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Service provides job scheduling operations
type Service struct {
	spec    string
	task    Task
	logger  *zap.Logger
	cron    *cron.Cron
	entryID cron.EntryID
	running atomic.Bool

	mu      sync.Mutex
	lastRun *time.Time
	lastErr error
}

// NewService creates a scheduler running task on spec, a standard five
// field cron expression.
func NewService(spec string, task Task, logger *zap.Logger) (*Service, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.Wrap(err, "invalid cron expression")
	}

	s := &Service{
		spec:   spec,
		task:   task,
		logger: logger,
		cron:   cron.New(),
	}
	s.entryID = s.cron.Schedule(schedule, cron.FuncJob(s.executeJob))
	return s, nil
}

// Start starts the scheduler
func (s *Service) Start() {
	s.cron.Start()
	s.logger.Info("job scheduler started", zap.String("schedule", s.spec))
}

// Stop stops the scheduler and waits for an active run to finish
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("job scheduler stopped")
}

// RunOnce runs the task now unless a run is already active.
func (s *Service) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer s.running.Store(false)

	start := time.Now()
	err := s.task(ctx)

	s.mu.Lock()
	s.lastRun = &start
	s.lastErr = err
	s.mu.Unlock()
	return err
}

// executeJob runs the scheduled task, skipping the tick if the previous
// run is still going
func (s *Service) executeJob() {
	s.logger.Info("executing scheduled pipeline run")
	start := time.Now()
	err := s.RunOnce(context.Background())
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Warn("previous run still active, skipping tick")
	case err != nil:
		s.logger.Error("scheduled pipeline run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
	default:
		s.logger.Info("scheduled pipeline run completed", zap.Duration("elapsed", time.Since(start)))
	}
}

// Status reports the schedule and the outcome of the last run.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Schedule: s.spec, Running: s.running.Load(), LastRun: s.lastRun}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
		st.NextRun = &next
	}
	return st
}
