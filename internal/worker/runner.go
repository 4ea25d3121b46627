package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/helpline-hq/support-desk/internal/observability"
)

// Task is a unit of best-effort background work.
type Task func(ctx context.Context) error

// Runner executes fire-and-forget tasks outside the request path. Task errors and panics
// are logged and counted, never returned, and tasks are not retried.
type Runner struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner builds a runner whose tasks each get a fresh context bounded by timeout.
func NewRunner(logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, metrics: metrics, timeout: timeout}
}

// Go starts task in its own goroutine and returns immediately.
func (r *Runner) Go(name string, task Task, fields ...zap.Field) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(name, task, fields)
	}()
}

func (r *Runner) run(name string, task Task, fields []zap.Field) {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
				r.logger.Error("background task panicked",
					append(fields, zap.String("task", name), zap.ByteString("stack", debug.Stack()))...)
			}
		}()
		return task(ctx)
	}()

	r.metrics.RecordTask(name, err != nil)
	if err != nil {
		r.logger.Warn("background task failed", append(fields, zap.String("task", name), zap.Error(err))...)
	}
}

// Wait blocks until every started task finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
