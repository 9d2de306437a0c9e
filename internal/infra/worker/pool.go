// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull   = errors.New("worker queue full")
	ErrPoolStopped = errors.New("worker pool stopped")
)

type Task func(ctx context.Context) error

// Pool runs tasks on a fixed set of workers. Tasks submitted under the same
// key always land on the same worker, so they run one after another in
// submission order while different keys proceed in parallel.
type Pool struct {
	wg     sync.WaitGroup
	queues []chan Task
	quit   chan struct{}
	once   sync.Once
	log    *zerolog.Logger
}

// NewPool creates workers goroutines, each with a queue of depth tasks.
func NewPool(workers, depth int, log *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if depth <= 0 {
		depth = 4
	}
	queues := make([]chan Task, workers)
	for i := range queues {
		queues[i] = make(chan Task, depth)
	}
	return &Pool{queues: queues, quit: make(chan struct{}), log: log}
}

func (p *Pool) Start(ctx context.Context) {
	for i, q := range p.queues {
		p.wg.Add(1)
		go func(id int, jobs <-chan Task) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-jobs:
					if err := task(ctx); err != nil {
						p.log.Error().Err(err).Int("worker", id).Msg("task failed")
					}
				}
			}
		}(i, q)
	}
}

// Stop waits for running tasks to return. Queued tasks are dropped.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit queues task on the worker that owns key. It never blocks: a full
// queue is reported as ErrQueueFull.
func (p *Pool) Submit(ctx context.Context, key int64, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case <-p.quit:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case p.queues[p.slot(key)] <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) slot(key int64) int {
	return int(uint64(key) % uint64(len(p.queues)))
}
