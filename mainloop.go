package vsthreading

import "github.com/gammazero/deque"

// MainThreadScheduler is the abstraction this package consumes from the
// host for the main-thread message pump itself (§6): a way to post a
// closure for execution on the main thread, and a way to push a nested
// loop frame that runs until some predicate clears — the "dispatcher
// frame" model a modal UI loop needs (§4.6).
type MainThreadScheduler interface {
	Post(fn func())
	PushFrame(exit func() bool)
}

// MainThreadLoop is the default MainThreadScheduler: a single designated
// goroutine draining a FIFO of posted closures, in the spirit of the
// dedicated-goroutine dispatcher pattern used for binding work to one
// thread identity (funcQ/Call-style loops). Call [MainThreadLoop.Run] from
// the goroutine you intend to bind as the main thread via
// [Context.BindMainThread]; it blocks until [MainThreadLoop.Stop] is
// called.
type MainThreadLoop struct {
	noCopy noCopy

	mu    chanMutex
	queue deque.Deque[func()]
	wake  chan struct{}
	done  chan struct{}
}

// NewMainThreadLoop constructs a standalone main-thread loop.
func NewMainThreadLoop() *MainThreadLoop {
	return &MainThreadLoop{
		mu:   newChanMutex(),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn to run on the loop's goroutine.
func (l *MainThreadLoop) Post(fn func()) {
	l.mu.Lock()
	l.queue.PushBack(fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// PushFrame drains posted closures until exit reports true, modeling a
// modal host loop frame (§4.6) without blocking the goroutine forever: it
// is meant to be called from within a closure already running on the loop,
// re-entering drain in place.
func (l *MainThreadLoop) PushFrame(exit func() bool) {
	for !exit() {
		l.mu.Lock()
		if l.queue.Len() == 0 {
			l.mu.Unlock()
			select {
			case <-l.wake:
			case <-l.done:
				return
			}
			continue
		}
		fn := l.queue.PopFront()
		l.mu.Unlock()
		fn()
	}
}

// Run drives the loop until Stop is called. It should be invoked from the
// goroutine bound via Context.BindMainThread.
func (l *MainThreadLoop) Run() {
	l.PushFrame(func() bool {
		select {
		case <-l.done:
			return true
		default:
			return false
		}
	})
}

// Stop ends Run/PushFrame's outermost loop.
func (l *MainThreadLoop) Stop() {
	close(l.done)
}
