package ldpccoding

import (
	"runtime"
	"sync"
)

// Task is a unit of work run by a Pool worker.
type Task interface {
	Run()
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func()

func (f TaskFunc) Run() { f() }

// Pool runs submitted tasks on a fixed set of worker goroutines.
type Pool struct {
	tasks   chan Task
	workers int
	wg      sync.WaitGroup
	once    sync.Once
}

// NewPool starts workers goroutines (default numCPU-1, at least one) fed by
// a queue of the given depth (default 4 per worker).
func NewPool(workers, depth int) *Pool {
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	if depth <= 0 {
		depth = 4 * workers
	}
	p := &Pool{tasks: make(chan Task, depth), workers: workers}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		t.Run()
	}
}

// Submit queues t, blocking while the queue is full. Submitting after Close
// panics.
func (p *Pool) Submit(t Task) { p.tasks <- t }

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.tasks) })
	p.wg.Wait()
}
