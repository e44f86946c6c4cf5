// Package batch runs independent export tasks on a bounded worker pool.
//
// Failures are recorded per task and never stop the batch. Nothing is
// retried. An optional byte budget limits how much decoded data is held by
// tasks in flight.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Status is the final state of a task.
type Status uint8

// Task states.
const (
	StatusError Status = iota
	StatusLoaded
	StatusExported
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusExported:
		return "exported"
	default:
		return "error"
	}
}

// Task is one unit of work. Load produces a value; Export, when set,
// consumes it. Weight is the number of budget bytes held from the start of
// Load until Export returns.
type Task[T any] struct {
	Name   string
	Weight int64
	Load   func(ctx context.Context) (T, error)
	Export func(ctx context.Context, v T) error
}

// Result reports what happened to one task. Results are returned in task
// order.
type Result struct {
	Name    string
	Status  Status
	Message string
	Err     error
}

// Runner executes tasks concurrently.
type Runner struct {
	workers int
	budget  int64
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the number of concurrent tasks. Values < 1 use
// runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithMemoryBudget caps the summed Weight of tasks in flight. Zero disables
// the budget. A task heavier than the whole budget runs alone.
func WithMemoryBudget(bytes int64) Option {
	return func(r *Runner) {
		r.budget = bytes
	}
}

// WithLogger sets the logger for progress and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	return r
}

// Workers returns the concurrency limit.
func (r *Runner) Workers() int {
	return r.workers
}

func (r *Runner) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Run executes tasks and returns one result per task. Tasks not started
// before ctx is cancelled are marked StatusError with the context error.
func Run[T any](ctx context.Context, r *Runner, tasks []Task[T]) []Result {
	results := make([]Result, len(tasks))
	var budget *semaphore.Weighted
	if r.budget > 0 {
		budget = semaphore.NewWeighted(r.budget)
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			results[i] = failed(task.Name, err)
			continue
		}
		g.Go(func() error {
			results[i] = runTask(ctx, r, budget, task)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // tasks record failures in results

	var exported, loaded, errs int
	for _, res := range results {
		switch res.Status {
		case StatusExported:
			exported++
		case StatusLoaded:
			loaded++
		default:
			errs++
		}
	}
	r.log().Debug("batch finished", "tasks", len(tasks), "exported", exported, "loaded", loaded, "errors", errs)
	return results
}

func runTask[T any](ctx context.Context, r *Runner, budget *semaphore.Weighted, task Task[T]) Result {
	if err := ctx.Err(); err != nil {
		return failed(task.Name, err)
	}
	if budget != nil && task.Weight > 0 {
		weight := min(task.Weight, r.budget)
		if err := budget.Acquire(ctx, weight); err != nil {
			return failed(task.Name, err)
		}
		defer budget.Release(weight)
	}

	v, err := task.Load(ctx)
	if err != nil {
		r.log().Warn("batch task failed", "task", task.Name, "stage", "load", "error", err)
		return failed(task.Name, fmt.Errorf("load: %w", err))
	}
	if task.Export == nil {
		r.log().Debug("batch task loaded", "task", task.Name)
		return Result{Name: task.Name, Status: StatusLoaded}
	}
	if err := task.Export(ctx, v); err != nil {
		r.log().Warn("batch task failed", "task", task.Name, "stage", "export", "error", err)
		return failed(task.Name, fmt.Errorf("export: %w", err))
	}
	r.log().Debug("batch task exported", "task", task.Name)
	return Result{Name: task.Name, Status: StatusExported}
}

func failed(name string, err error) Result {
	return Result{Name: name, Status: StatusError, Message: err.Error(), Err: err}
}
