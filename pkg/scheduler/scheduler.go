// Package scheduler wires named jobs onto calendar schedules. It is a
// thin layer over robfig/cron: jobs expose a synchronously-testable
// run function, and the timer wiring lives here alone. An overlap
// guard skips a tick while the previous run of the same job is still
// going; independent jobs still run concurrently with each other.
package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named unit of scheduled work. The context is canceled when
// the scheduler stops; jobs are expected to check it between items.
type Job func(ctx context.Context) error

// Scheduler owns the process-wide cron timer.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger

	mu  sync.RWMutex
	ctx context.Context
}

// New creates a stopped Scheduler. Register jobs, then call Start.
func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cl := &cronLogger{log: log}
	s := &Scheduler{
		log: log,
		ctx: context.Background(),
	}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		),
	)
	return s
}

// Register attaches a job to a cron expression (standard 5-field
// format, or @every descriptors). Returns an error for an invalid
// expression. Must be called before Start.
func (s *Scheduler) Register(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := s.context()
		if ctx.Err() != nil {
			return
		}

		started := time.Now()
		s.log.InfoContext(ctx, "scheduled job starting", slog.String("job", name))
		if err := job(ctx); err != nil {
			s.log.ErrorContext(ctx, "scheduled job failed",
				slog.String("job", name),
				slog.Duration("elapsed", time.Since(started)),
				slog.String("error", err.Error()),
			)
			return
		}
		s.log.InfoContext(ctx, "scheduled job finished",
			slog.String("job", name),
			slog.Duration("elapsed", time.Since(started)),
		)
	})
	return err
}

// Start begins firing schedules. Jobs receive a context derived from
// ctx, so canceling it requests cooperative shutdown of running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Stop halts scheduling and returns a context that is done once every
// in-flight job has returned. Mid-flight work is allowed to finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"error", err}, keysAndValues...)
	l.log.Error("cron: "+msg, args...)
}
