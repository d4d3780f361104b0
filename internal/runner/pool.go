// Package runner fans independent engine runs out across a bounded pool
// of goroutines — used by walk-forward window evaluation, which is
// embarrassingly parallel once the input bars for each window are sliced
// out.
package runner

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pool bounds concurrent work to a fixed number of goroutines via
// errgroup's SetLimit, with panic recovery per task so one bad run
// doesn't take the whole fan-out down.
type Pool struct {
	logger  *zap.Logger
	workers int
}

// Config tunes the pool. A zero NumWorkers defaults to runtime.NumCPU().
type Config struct {
	NumWorkers int
}

// DefaultConfig sizes the pool to the host's CPU count.
func DefaultConfig() Config {
	return Config{NumWorkers: runtime.NumCPU()}
}

// New constructs a Pool. A nil logger defaults to zap.NewNop().
func New(logger *zap.Logger, cfg Config) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{logger: logger, workers: workers}
}

// Run executes n independent tasks, each identified by its index, with at
// most p.workers running concurrently. It returns the first non-nil error
// and cancels the remaining in-flight tasks via ctx, matching errgroup's
// fail-fast semantics.
func (p *Pool) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					p.logger.Error("recovered panic in pooled task", zap.Int("index", i), zap.Any("panic", rec))
					err = &PanicError{Index: i, Value: rec}
				}
			}()
			return task(gctx, i)
		})
	}
	return g.Wait()
}

// PanicError reports a task index that panicked instead of returning an error.
type PanicError struct {
	Index int
	Value interface{}
}

func (e *PanicError) Error() string {
	return "runner: task panicked"
}
