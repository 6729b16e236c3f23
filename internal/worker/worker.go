// Package worker runs independent jobs on a bounded set of goroutines and
// provides the join barrier the run phases wait on.
package worker

import (
	"context"
	"sync"

	"github.com/raoulx24/wandering-echo/internal/logging"
)

// Pool hands out batches. Size is the number of goroutines per batch;
// zero means one goroutine per job.
type Pool struct {
	size int
	log  logging.Logger
}

// New creates a pool with the given number of workers.
func New(size int, log logging.Logger) *Pool {
	if size < 0 {
		size = 0
	}
	return &Pool{size: size, log: log}
}

// Batch is a set of jobs with a single join point.
type Batch struct {
	queue *Queue
	wg    sync.WaitGroup
	once  sync.Once
}

// Batch starts the workers for a batch of n jobs. Submitting more than n
// jobs blocks until a worker frees a slot.
func (p *Pool) Batch(ctx context.Context, name string, n int) *Batch {
	workers := p.size
	if workers == 0 || workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	b := &Batch{queue: NewQueue(n)}
	log := p.log.With("batch", name)
	log.Debug("starting workers", "workers", workers, "jobs", n)

	b.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer b.wg.Done()
			RunLoop(ctx, log, b.queue)
		}()
	}
	return b
}

func (b *Batch) Submit(j Job) {
	b.queue.Push(j)
}

// Wait closes the batch to further submissions and blocks until every
// submitted job has returned.
func (b *Batch) Wait() {
	b.once.Do(b.queue.Close)
	b.wg.Wait()
}

// Run submits jobs as one batch and waits for all of them.
func (p *Pool) Run(ctx context.Context, name string, jobs []Job) {
	b := p.Batch(ctx, name, len(jobs))
	for _, j := range jobs {
		b.Submit(j)
	}
	b.Wait()
}
