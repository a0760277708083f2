// Package swarm runs independent tasks on a bounded worker pool.
package swarm

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Task represents a unit of work for the swarm.
type Task func(ctx context.Context) error

// Stats holds runtime statistics for the pool.
type Stats struct {
	ActiveWorkers  int
	MaxWorkers     int
	TasksCompleted int64
	TasksFailed    int64
}

// Pool bounds how many tasks run at once.
type Pool struct {
	MaxWorkers int

	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a pool with the given limit. Non-positive means GOMAXPROCS.
func NewPool(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	return &Pool{MaxWorkers: maxWorkers}
}

// Run executes every task and waits for them. The first failure cancels the
// context handed to the remaining tasks and is returned. A panicking task fails
// with an error carrying the stack instead of crashing the process.
func (p *Pool) Run(ctx context.Context, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	limit := p.MaxWorkers
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)

	for _, task := range tasks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			p.active.Add(1)
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("swarm task panicked: %v\n%s", r, debug.Stack())
				}
				p.active.Add(-1)
				if err != nil {
					p.failed.Add(1)
				} else {
					p.completed.Add(1)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			return task(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// A parent cancelled before any task failed still reports it.
	return ctx.Err()
}

// GetStats returns current pool stats.
func (p *Pool) GetStats() Stats {
	return Stats{
		ActiveWorkers:  int(p.active.Load()),
		MaxWorkers:     p.MaxWorkers,
		TasksCompleted: p.completed.Load(),
		TasksFailed:    p.failed.Load(),
	}
}
