// Package async provides the bounded task pool the cache engine runs its
// fire-and-forget work on (profile writes, background refreshes).
package async

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Pool runs submitted tasks on a fixed set of workers over a bounded queue.
// Submission never blocks: when the queue is full the task is dropped and
// logged, which keeps a slow store from backing pressure into the caller.
type Pool struct {
	tasks   chan func()
	log     *zap.Logger
	workers sync.WaitGroup
	pending sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool starts workers goroutines consuming a queue of queueSize tasks.
func NewPool(workers, queueSize int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if log == nil {
		log = zap.NewNop()
	}

	p := &Pool{
		tasks: make(chan func(), queueSize),
		log:   log,
	}

	p.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.workers.Done()
	for task := range p.tasks {
		task()
		p.pending.Done()
	}
}

// Submit enqueues a task. Returns false when the pool is closed or the
// queue is saturated; the task is dropped in both cases.
func (p *Pool) Submit(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}

	p.pending.Add(1)
	select {
	case p.tasks <- task:
		return true
	default:
		p.pending.Done()
		p.log.Warn("task queue saturated, dropping task")
		return false
	}
}

// Quiesce blocks until every submitted task has finished or the context
// expires. Tests and the shutdown path synchronize on this; everything
// else fires and forgets.
func (p *Pool) Quiesce(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for in-flight work to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.workers.Wait()
}
