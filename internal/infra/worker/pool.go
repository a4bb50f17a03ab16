// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrQueueFull is returned by Submit when the queue has no room.
var ErrQueueFull = errors.New("worker queue full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("worker pool stopped")

type Task func(ctx context.Context) error

type named struct {
	name string
	run  Task
}

// Pool runs submitted tasks on a fixed number of goroutines. Generation
// uses a single worker so jobs never compete for the same credentials.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan named
	quit chan struct{}
	n    int
	log  *zerolog.Logger

	mu      sync.Mutex
	stopped bool
}

func NewPool(workers, queue int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 4
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{jobs: make(chan named, queue), quit: make(chan struct{}), n: workers, log: &l}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					p.runOne(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) runOne(ctx context.Context, id int, task named) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Str("task", task.name).Str("panic", fmt.Sprint(r)).Msg("task panicked")
		}
	}()
	if err := task.run(ctx); err != nil {
		p.log.Warn().Err(err).Int("worker", id).Str("task", task.name).Msg("task error")
		return
	}
	p.log.Debug().Int("worker", id).Str("task", task.name).Msg("task done")
}

// Stop lets running tasks finish and drops queued ones.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.quit)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) Submit(name string, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- named{name: name, run: task}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Queued reports tasks waiting for a worker.
func (p *Pool) Queued() int { return len(p.jobs) }
