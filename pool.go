package vsthreading

import "github.com/gammazero/deque"

// ThreadPoolScheduler is the abstraction this package consumes from the
// host for running work on "any worker" (§6, Factory.ThreadPoolScheduler).
// A host embedding this package in a larger runtime normally supplies its
// own; [NewWorkerPool] is the minimal standalone default.
type ThreadPoolScheduler interface {
	Schedule(fn func())
}

// WorkerPool is the default ThreadPoolScheduler: a small fixed pool of
// goroutines draining a shared deque-backed queue, generalizing the
// teacher's IODispatch/Schedule batching (fixed concurrency, a response
// channel, a semaphore) into plain closure dispatch, since this package has
// no I/O request/response shape to batch — only arbitrary continuations.
type WorkerPool struct {
	noCopy noCopy

	mu      chanMutex
	queue   deque.Deque[func()]
	wake    chan struct{}
	workers int
}

// chanMutex is a tiny mutex built on a buffered channel, matching the
// teacher's preference for channel-based synchronization primitives over
// bare sync.Mutex where either works equally well.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	m := make(chanMutex, 1)
	m <- struct{}{}
	return m
}

func (m chanMutex) Lock()   { <-m }
func (m chanMutex) Unlock() { m <- struct{}{} }

func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	p := &WorkerPool{
		mu:      newChanMutex(),
		wake:    make(chan struct{}, workers),
		workers: workers,
	}
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *WorkerPool) run() {
	for range p.wake {
		for {
			p.mu.Lock()
			if p.queue.Len() == 0 {
				p.mu.Unlock()
				break
			}
			fn := p.queue.PopFront()
			p.mu.Unlock()
			fn()
		}
	}
}

// Schedule enqueues fn for execution on some worker goroutine.
func (p *WorkerPool) Schedule(fn func()) {
	p.mu.Lock()
	p.queue.PushBack(fn)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Stop terminates every worker goroutine once its current queue drains.
// Schedule must not be called again afterward.
func (p *WorkerPool) Stop() {
	close(p.wake)
}
