// Package cron drives scheduled jobs from a 1-second tick loop over a
// bounded worker pool, grounded on the teacher's internal/cron.Scheduler
// (ticker-driven runDue loop, Option-configured collaborators, per-job
// ExecutionStore recording) but reworked around robfig/cron/v3 schedule
// parsing instead of the teacher's hand-rolled Schedule type, and a
// semaphore-bounded dispatch loop instead of the teacher's unbounded
// sequential runDue.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	robfig "github.com/robfig/cron/v3"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/errkind"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/repository"
)

// ActionRunner executes a job's canonical action, returning an error on
// failure. The runner is responsible for resolving the job's session target
// and running the work itself; the scheduler only owns dispatch, timing,
// and bookkeeping.
type ActionRunner interface {
	RunAction(ctx context.Context, job *models.ScheduledJob) error
}

// HeartbeatSink receives a heartbeat after every dispatch.
type HeartbeatSink interface {
	Emit(ctx context.Context, hb *models.Heartbeat) error
}

// Config configures the Scheduler's tick cadence and concurrency.
type Config struct {
	TickInterval time.Duration
	MaxWorkers   int
	Now          func() time.Time
}

// DefaultConfig returns the baseline scheduler configuration (1-second
// ticks, 4 concurrent workers).
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Second,
		MaxWorkers:   4,
		Now:          time.Now,
	}
}

// Scheduler ticks once a second, dispatching due jobs onto a bounded worker
// pool and recording each dispatch as a JobExecution plus a Heartbeat.
type Scheduler struct {
	jobs       repository.JobRepository
	executions repository.ExecutionRepository
	heartbeats HeartbeatSink
	runner     ActionRunner
	cfg        Config
	logger     *slog.Logger

	sem     chan struct{}
	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger overrides the scheduler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHeartbeatSink wires the scheduler's heartbeat emitter.
func WithHeartbeatSink(sink HeartbeatSink) Option {
	return func(s *Scheduler) { s.heartbeats = sink }
}

// New creates a Scheduler backed by the given repositories and action runner.
func New(jobs repository.JobRepository, executions repository.ExecutionRepository, runner ActionRunner, cfg Config, opts ...Option) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Scheduler{
		jobs:       jobs,
		executions: executions,
		runner:     runner,
		cfg:        cfg,
		logger:     slog.Default().With("component", "cron"),
		sem:        make(chan struct{}, cfg.MaxWorkers),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextRunAt parses a schedule expression and returns the next fire time
// after from, using robfig/cron's standard 5-field parser.
func NextRunAt(expr string, from time.Time) (time.Time, error) {
	parser := robfig.NewParser(robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, errkind.New(errkind.Contract, "cron.NextRunAt", err)
	}
	return sched.Next(from), nil
}

// NormalizeJobArgs populates the canonical Action field from a legacy
// "type" alias key and preserves any unrecognized keys under Params,
// logging a warning for each one so misconfigured jobs are visible instead
// of silently dropped.
func NormalizeJobArgs(logger *slog.Logger, job *models.ScheduledJob, raw map[string]any) {
	if job.Action == "" {
		if t, ok := raw["type"].(string); ok {
			job.Action = t
		}
	}
	if job.Params == nil {
		job.Params = map[string]any{}
	}
	known := map[string]bool{"action": true, "type": true, "schedule_expression": true, "name": true, "enabled": true, "session_target": true, "max_duration_seconds": true}
	for k, v := range raw {
		if known[k] {
			continue
		}
		job.Params[k] = v
		if logger != nil {
			logger.Warn("unrecognized cron job field preserved in params", "job_id", job.JobID, "field", k)
		}
	}
}

// Start runs the tick loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
	return nil
}

// Stop waits for the tick loop and any in-flight dispatches to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick dispatches every due, enabled job. A job more than one tick interval
// past its due time when a worker slot finally frees up is marked skipped
// instead of run, so a long backlog cannot pile up stale work.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.cfg.Now()
	due, err := s.jobs.ListEnabledDue(ctx, now)
	if err != nil {
		s.logger.Error("failed to list due jobs", "error", err)
		return
	}
	for _, job := range due {
		job := job
		select {
		case s.sem <- struct{}{}:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer func() { <-s.sem }()
				defer func() {
					if r := recover(); r != nil {
						s.logger.Error("job panicked", "job_id", job.JobID, "panic", r)
					}
				}()
				s.dispatch(ctx, job, job.NextRunAt)
			}()
		default:
			// All workers busy this tick; defer to the next tick rather than
			// block the ticker loop. If the miss exceeds one full interval the
			// job is marked skipped the next time it is actually dispatched.
			s.logger.Warn("worker pool saturated, deferring job to next tick", "job_id", job.JobID)
		}
	}
}

// dispatch runs one job: resolves its session target via the action
// runner, records a JobExecution, and emits a heartbeat.
func (s *Scheduler) dispatch(ctx context.Context, job *models.ScheduledJob, due time.Time) {
	if s.cfg.Now().Sub(due) > s.cfg.TickInterval {
		s.recordSkipped(ctx, job, due)
		return
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if job.MaxDurationSeconds > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(job.MaxDurationSeconds)*time.Second)
		defer cancel()
	}

	exec := &models.JobExecution{
		ID:        uuid.NewString(),
		JobID:     job.JobID,
		Status:    models.ExecutionRunning,
		StartedAt: s.cfg.Now(),
	}
	if err := s.executions.Create(ctx, exec); err != nil {
		s.logger.Error("failed to record job execution start", "job_id", job.JobID, "error", err)
	}

	runErr := s.runner.RunAction(runCtx, job)
	completed := s.cfg.Now()
	exec.CompletedAt = completed
	exec.DurationMs = completed.Sub(exec.StartedAt).Milliseconds()

	lastStatus := models.JobStatusOK
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		exec.Status = models.ExecutionDeadlineExceeded
		exec.Error = "job exceeded max_duration_seconds"
		lastStatus = models.JobStatusError
	case runErr != nil:
		exec.Status = models.ExecutionFailed
		exec.Error = runErr.Error()
		lastStatus = models.JobStatusError
	default:
		exec.Status = models.ExecutionSucceeded
	}
	if err := s.executions.Update(ctx, exec); err != nil {
		s.logger.Error("failed to record job execution result", "job_id", job.JobID, "error", err)
	}

	job.LastRunAt = completed
	job.LastStatus = lastStatus
	job.LastDurationMs = exec.DurationMs
	job.RunCount++
	if lastStatus == models.JobStatusOK {
		job.SuccessCount++
	} else {
		job.FailCount++
	}
	if next, err := NextRunAt(job.ScheduleExpression, completed); err == nil {
		job.NextRunAt = next
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error("failed to persist job bookkeeping", "job_id", job.JobID, "error", err)
	}

	s.emitHeartbeat(ctx, job, lastStatus, exec.DurationMs)
}

func (s *Scheduler) recordSkipped(ctx context.Context, job *models.ScheduledJob, due time.Time) {
	job.LastStatus = models.JobStatusSkipped
	job.LastRunAt = s.cfg.Now()
	if next, err := NextRunAt(job.ScheduleExpression, s.cfg.Now()); err == nil {
		job.NextRunAt = next
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error("failed to persist skipped job", "job_id", job.JobID, "error", err)
	}
	s.logger.Warn("job missed its due time by more than one tick interval, skipping", "job_id", job.JobID, "due", due)
	s.emitHeartbeat(ctx, job, models.JobStatusSkipped, 0)
}

func (s *Scheduler) emitHeartbeat(ctx context.Context, job *models.ScheduledJob, status models.JobLastStatus, durationMs int64) {
	if s.heartbeats == nil {
		return
	}
	hbStatus := models.HeartbeatOK
	if status == models.JobStatusError {
		hbStatus = models.HeartbeatError
	}
	hb := &models.Heartbeat{
		JobName:    job.Name,
		Status:     hbStatus,
		Details:    models.NormalizeDetails(map[string]any{"job_id": job.JobID, "last_status": status}),
		ExecutedAt: s.cfg.Now(),
		DurationMs: durationMs,
	}
	if err := s.heartbeats.Emit(ctx, hb); err != nil {
		s.logger.Warn("failed to emit heartbeat", "job_id", job.JobID, "error", err)
	}
}

// RunOnce dispatches every currently due job synchronously, for tests and
// the CLI's manual "run job now" path.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	now := s.cfg.Now()
	due, err := s.jobs.ListEnabledDue(ctx, now)
	if err != nil {
		s.logger.Error("failed to list due jobs", "error", err)
		return 0
	}
	for _, job := range due {
		s.dispatch(ctx, job, now)
	}
	return len(due)
}
