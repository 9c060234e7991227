// Package scheduler runs the periodic lock maintenance jobs on robfig/cron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/nimburion/recordlock/pkg/observability/logger"
)

var (
	ErrValidation     = errors.New("scheduler: invalid")
	ErrConflict       = errors.New("scheduler: conflict")
	ErrNotFound       = errors.New("scheduler: unknown task")
	ErrNotInitialized = errors.New("scheduler: not initialized")
	// ErrClosed is reported by HealthCheck while the runtime is stopped.
	ErrClosed = errors.New("scheduler: not running")
)

func failf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

const DefaultRunTimeout = 10 * time.Second

// Config tunes the runtime.
type Config struct {
	// RunTimeout bounds a run of a task without its own Timeout.
	RunTimeout time.Duration
	// Registerer receives the run metrics. Nil keeps them unregistered.
	Registerer prometheus.Registerer
}

// Runtime fires registered tasks on their cron schedules. A tick that
// arrives while the previous run of the same task is still going is skipped.
type Runtime struct {
	log        logger.Logger
	cron       *cron.Cron
	metrics    *runtimeMetrics
	runTimeout time.Duration

	mu     sync.Mutex
	tasks  map[string]Task
	runCtx context.Context // nil while stopped
	cancel context.CancelFunc
}

// NewRuntime creates a stopped runtime.
func NewRuntime(log logger.Logger, cfg Config) (*Runtime, error) {
	if log == nil {
		return nil, failf(ErrNotInitialized, "logger is required")
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	metrics, err := newRuntimeMetrics(cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register scheduler metrics: %w", err)
	}
	cl := cronLogger{log}
	return &Runtime{
		log: log,
		cron: cron.New(
			cron.WithParser(scheduleParser),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		metrics:    metrics,
		runTimeout: cfg.RunTimeout,
		tasks:      map[string]Task{},
	}, nil
}

// Register validates task and schedules it. Tasks may be added while running.
func (r *Runtime) Register(task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tasks[task.Name]; dup {
		return failf(ErrConflict, "task %q is already registered", task.Name)
	}
	r.tasks[task.Name] = task
	r.cron.Schedule(task.schedule, cron.FuncJob(func() { r.tick(task) }))
	return nil
}

// Tasks returns the registered task names, sorted.
func (r *Runtime) Tasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.tasks))
}

// Start runs the schedule until ctx is done, then stops it.
func (r *Runtime) Start(ctx context.Context) error {
	if r == nil {
		return ErrNotInitialized
	}

	r.mu.Lock()
	switch {
	case r.runCtx != nil:
		r.mu.Unlock()
		return failf(ErrConflict, "already running")
	case len(r.tasks) == 0:
		r.mu.Unlock()
		return failf(ErrValidation, "no tasks registered")
	}
	r.runCtx, r.cancel = context.WithCancel(ctx)
	done := r.runCtx.Done()
	count := len(r.tasks)
	r.mu.Unlock()

	r.cron.Start()
	r.log.Info("scheduler started", "tasks", count)

	<-done
	return r.Stop(context.Background())
}

// Stop cancels in-flight runs and waits for them until ctx is done.
func (r *Runtime) Stop(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	if r.runCtx == nil {
		r.mu.Unlock()
		return nil
	}
	r.cancel()
	r.runCtx, r.cancel = nil, nil
	r.mu.Unlock()

	select {
	case <-r.cron.Stop().Done():
		r.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs one task now, outside of its schedule.
func (r *Runtime) Trigger(ctx context.Context, name string) error {
	if r == nil {
		return ErrNotInitialized
	}
	r.mu.Lock()
	task, ok := r.tasks[name]
	r.mu.Unlock()
	if !ok {
		return failf(ErrNotFound, "%q", name)
	}
	return r.run(ctx, task)
}

// HealthCheck returns ErrClosed unless the runtime is running.
func (r *Runtime) HealthCheck(context.Context) error {
	if r == nil {
		return ErrNotInitialized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runCtx == nil {
		return ErrClosed
	}
	return nil
}

func (r *Runtime) tick(task Task) {
	r.mu.Lock()
	ctx := r.runCtx
	r.mu.Unlock()
	if ctx == nil {
		return
	}
	if err := r.run(ctx, task); err != nil && !errors.Is(err, context.Canceled) {
		r.log.Error("scheduler task failed", "task", task.Name, "error", err)
	}
}

func (r *Runtime) run(ctx context.Context, task Task) (err error) {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = r.runTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %q panicked: %v", task.Name, p)
		}
		r.metrics.record(task.Name, err, time.Since(start))
	}()
	return task.Run(ctx)
}

// cronLogger feeds cron's own messages into the service logger.
type cronLogger struct{ log logger.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron "+msg, append(keysAndValues, "error", err)...)
}
