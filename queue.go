package vsthreading

import "github.com/gammazero/deque"

// workQueue is the Single-Execution Queue (C1): a FIFO of continuations
// pending on a single JoinableTask, drained one at a time by whichever
// scheduler is entitled to run them. It is deque-backed, the same choice
// the teacher makes for its own per-task waiter queues.
//
// workQueue carries no lock of its own — callers always reach it through a
// JoinableTask while holding that task's Context's mu, the one lock that
// serializes the whole join graph (§5). This mirrors the teacher's sema,
// whose waiter deque is likewise manipulated only under the caller's own
// discipline rather than an internal lock.
type workQueue struct {
	noCopy noCopy
	items  deque.Deque[func()]
	closed bool
}

func newWorkQueue() *workQueue {
	return &workQueue{}
}

// push enqueues fn. It reports false, dropping fn, if the queue has been
// closed — the realization of invariant 1(b): a continuation on a completed
// task is discarded rather than run.
func (q *workQueue) push(fn func()) bool {
	if q.closed {
		return false
	}
	q.items.PushBack(fn)
	return true
}

// tryPopFront removes and returns the oldest pending continuation, if any.
func (q *workQueue) tryPopFront() (func(), bool) {
	if q.items.Len() == 0 {
		return nil, false
	}
	return q.items.PopFront(), true
}

func (q *workQueue) len() int {
	return q.items.Len()
}

// close marks the queue closed and drops whatever remains in it.
func (q *workQueue) close() {
	q.closed = true
	for q.items.Len() > 0 {
		q.items.PopFront()
	}
}
