// Package async runs tasks on a bounded goroutine pool.
package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("pool is closed")

// Pool is a fixed-capacity worker pool. Submit blocks while every worker is busy.
type Pool struct {
	name    string
	logger  *slog.Logger
	workers int

	pool  *ants.Pool
	stats counters
}

type counters struct {
	submitted atomic.Int64
	completed atomic.Int64
	skipped   atomic.Int64
	panics    atomic.Int64
}

// Stats is a snapshot of pool activity.
type Stats struct {
	Submitted int64
	Completed int64
	Skipped   int64
	Panics    int64
	Running   int
	Capacity  int
}

// idleExpiry is how long an idle worker goroutine lives before ants reclaims it.
const idleExpiry = 10 * time.Second

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

func New(opts ...Option) (*Pool, error) {
	p := &Pool{
		name:    "default",
		logger:  slog.Default(),
		workers: 4,
	}
	for _, o := range opts {
		o(p)
	}
	pool, err := ants.NewPool(p.workers,
		ants.WithExpiryDuration(idleExpiry),
		ants.WithNonblocking(false),
		ants.WithPanicHandler(func(v any) {
			p.stats.panics.Add(1)
			p.logger.Error("pool.task.panic", "pool", p.name, "panic", v)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create pool %s: %w", p.name, err)
	}
	p.pool = pool
	p.logger.Debug("pool.start", "pool", p.name, "workers", p.workers)
	return p, nil
}

// Submit schedules task. If ctx is already done the task is not scheduled and ctx.Err()
// is returned.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		p.stats.skipped.Add(1)
		return err
	}
	err := p.pool.Submit(func() {
		defer p.stats.completed.Add(1)
		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrClosed
		}
		return fmt.Errorf("submit to pool %s: %w", p.name, err)
	}
	p.stats.submitted.Add(1)
	return nil
}

// Workers is the pool capacity.
func (p *Pool) Workers() int { return p.workers }

func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.stats.submitted.Load(),
		Completed: p.stats.completed.Load(),
		Skipped:   p.stats.skipped.Load(),
		Panics:    p.stats.panics.Load(),
		Running:   p.pool.Running(),
		Capacity:  p.pool.Cap(),
	}
}

// Shutdown stops accepting tasks and waits for running ones until ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	timeout := time.Minute
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("pool.shutdown.timeout", "pool", p.name, "error", err)
		return fmt.Errorf("shutdown pool %s: %w", p.name, err)
	}
	p.logger.Debug("pool.shutdown", "pool", p.name, "completed", p.stats.completed.Load())
	return nil
}
