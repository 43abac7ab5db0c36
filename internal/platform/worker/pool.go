// Package worker provides a generic worker pool for concurrent task execution.
package worker

import (
	"context"
	"sync"
)

// Job is a unit of work to be executed by a worker.
type Job[T any] struct {
	// ID is an optional identifier for the job (useful for logging/debugging)
	ID string
	// Execute is the function to run. It receives a context and returns a result and error.
	Execute func(ctx context.Context) (T, error)
}

// Result is the outcome of a job execution.
type Result[T any] struct {
	// JobID is the ID of the job that produced this result
	JobID string
	// Value is the result of the job execution (zero value if error)
	Value T
	// Err is the error from job execution (nil if successful)
	Err error
}

// Pool is a worker pool that processes jobs concurrently.
// It maintains a fixed number of worker goroutines that pull jobs from a queue.
type Pool[T any] struct {
	workers  int
	jobQueue chan Job[T]
	results  chan Result[T]
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewPool creates a new worker pool with the specified number of workers.
// The pool starts immediately and workers begin waiting for jobs.
//
// Parameters:
//   - ctx: Parent context for cancellation
//   - workers: Number of concurrent workers (goroutines)
//   - queueSize: Size of the job queue buffer (0 for unbuffered)
//
// Example:
//
//	pool := worker.NewPool[*Report](ctx, 4, 100)
//	defer pool.Close()
//	pool.Submit(worker.Job[*Report]{ID: "job1", Execute: func(ctx context.Context) (*Report, error) { ... }})
func NewPool[T any](ctx context.Context, workers int, queueSize int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	poolCtx, cancel := context.WithCancel(ctx)

	p := &Pool[T]{
		workers:  workers,
		jobQueue: make(chan Job[T], queueSize),
		results:  make(chan Result[T], queueSize),
		ctx:      poolCtx,
		cancel:   cancel,
	}

	// Start workers
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// worker is the main worker goroutine loop.
func (p *Pool[T]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return // Queue closed
			}
			value, err := job.Execute(p.ctx)
			// Send result (non-blocking if channel full, result is dropped)
			select {
			case p.results <- Result[T]{JobID: job.ID, Value: value, Err: err}:
			default:
			}
		}
	}
}

// Submit adds a job to the pool's queue.
// It blocks if the queue is full until space is available or context is cancelled.
// Returns an error if the pool is closed or context is cancelled.
func (p *Pool[T]) Submit(job Job[T]) error {
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.jobQueue <- job:
		return nil
	}
}

// SubmitAndWait submits multiple jobs and waits for all results.
// Returns results in the order they complete (not submission order).
func (p *Pool[T]) SubmitAndWait(jobs []Job[T]) []Result[T] {
	for _, job := range jobs {
		if err := p.Submit(job); err != nil {
			// Context cancelled, return partial results
			break
		}
	}

	results := make([]Result[T], 0, len(jobs))
	for i := 0; i < len(jobs); i++ {
		select {
		case <-p.ctx.Done():
			return results
		case result := <-p.results:
			results = append(results, result)
		}
	}

	return results
}

// Results returns the results channel for consuming job results.
// Callers should read from this channel to receive job outcomes.
func (p *Pool[T]) Results() <-chan Result[T] {
	return p.results
}

// Close gracefully shuts down the pool.
// It stops accepting new jobs and waits for all workers to finish.
func (p *Pool[T]) Close() {
	p.cancel()
	close(p.jobQueue)
	p.wg.Wait()
	close(p.results)
}

// Workers returns the number of workers in the pool.
func (p *Pool[T]) Workers() int {
	return p.workers
}

// QueueLen returns the current number of jobs waiting in the queue.
func (p *Pool[T]) QueueLen() int {
	return len(p.jobQueue)
}
