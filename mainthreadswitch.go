package vsthreading

import "context"

// MainThreadSwitch is the awaitable [Factory.SwitchToMainThreadAsync]
// returns: IsReady reports whether the caller is already on the main
// thread (and hence the switch is a no-op), and Await suspends the calling
// JoinableTask, if any, until it is (§4.1).
type MainThreadSwitch struct {
	f      *Factory
	ctx    context.Context
	cancel <-chan struct{}
}

// SwitchToMainThreadAsync returns an awaitable whose completion indicates
// the caller is now executing on the main thread. Pass an optional cancel
// channel; if it is already closed when Await is called from a JoinableTask
// body that is not ready, Await returns ErrCancelled delivered on a worker
// thread, never the main thread (§4.1, §5). The channel is checked only at
// that moment: a cancel that closes after the continuation has been queued
// does not interrupt the switch, and the channel is not consulted at all
// when ctx carries no ambient task.
func (f *Factory) SwitchToMainThreadAsync(ctx context.Context, cancel ...<-chan struct{}) *MainThreadSwitch {
	var c <-chan struct{}
	if len(cancel) > 0 {
		c = cancel[0]
	}
	return &MainThreadSwitch{f: f, ctx: ctx, cancel: c}
}

// IsReady is the synchronous "is-ready" check (§4.1): true if the caller is
// already on the main thread, or if this Context has no main thread bound
// at all (a no-op on hosts without one — §9's documented open question).
func (s *MainThreadSwitch) IsReady() bool {
	if !s.f.ctx.HasMainThread() {
		return true
	}
	return s.f.ctx.isMainThreadFor(s.ctx)
}

// Await blocks the calling JoinableTask until it is executing on the main
// thread, or returns ErrCancelled if the cancel channel was already closed
// when Await was called.
func (s *MainThreadSwitch) Await() error {
	if s.IsReady() {
		return nil
	}

	t, ok := TaskFromContext(s.ctx)
	if !ok {
		return s.awaitWithoutAmbientTask()
	}

	c := t.ctx
	c.mu.Lock()
	if t.isCompleteLocked() {
		c.mu.Unlock()
		return ErrCancelled
	}
	if s.cancel != nil {
		select {
		case <-s.cancel:
			c.mu.Unlock()
			return s.deliverCancellationOffMainThread(t)
		default:
		}
	}
	t.pendingMainThreadWork.push(func() { t.resumeOnce() })
	c.mu.Unlock()
	c.wakeAll()

	t.suspendSegment()
	return nil
}

// deliverCancellationOffMainThread hands the cancellation outcome to the
// thread pool so it is never observed as completing on the main thread.
func (s *MainThreadSwitch) deliverCancellationOffMainThread(t *JoinableTask) error {
	result := make(chan error, 1)
	t.factory.pool.Schedule(func() { result <- ErrCancelled })
	return <-result
}

// awaitWithoutAmbientTask handles a SwitchToMainThreadAsync call made
// outside any RunAsync/Run body. There is no coroutine to suspend, so the
// calling goroutine itself blocks on a plain channel until the main thread
// runs a transient gate closure; execution then resumes on the original
// calling goroutine immediately afterward rather than literally continuing
// "on" the main thread past this point — the best a language without
// stackless resumption of arbitrary running code can offer for this corner
// case (documented, per §9, rather than emulated further).
func (s *MainThreadSwitch) awaitWithoutAmbientTask() error {
	c := s.f.ctx
	if !c.HasMainThread() {
		return nil
	}

	transient := newTransientTask(s.f)
	s.f.collection.addMember(transient)
	defer s.f.collection.removeMember(transient)

	done := make(chan struct{})
	c.mu.Lock()
	transient.pendingMainThreadWork.push(func() { close(done) })
	c.mu.Unlock()
	c.wakeAll()
	<-done

	c.mu.Lock()
	transient.state = StateCompletedAsynchronously
	transient.promise.resolve(nil, nil)
	c.mu.Unlock()
	return nil
}

func newTransientTask(f *Factory) *JoinableTask {
	return &JoinableTask{
		id:                    newID(),
		ctx:                   f.ctx,
		factory:               f,
		ownerGoroutineID:      goroutineID(),
		pendingMainThreadWork: newWorkQueue(),
		pendingThreadPoolWork: newWorkQueue(),
		childTasks:            make(map[*JoinableTask]struct{}),
		joins:                 make(map[*JoinableTask]int),
		joinedBy:              make(map[*JoinableTask]int),
		collectionMemberships: make(map[*Collection]struct{}),
		promise:               newCompletionPromise(),
	}
}

// ThreadPoolSwitch is the symmetric awaitable for deliberately moving a
// JoinableTask's execution off the main thread and onto the thread pool,
// used by bodies that alternate (the S1/S5-style "await thread_pool" step).
type ThreadPoolSwitch struct {
	f *Factory
	t *JoinableTask
}

// SwitchToThreadPoolAsync returns an awaitable that suspends the calling
// JoinableTask and resumes it on the thread pool.
func (f *Factory) SwitchToThreadPoolAsync(ctx context.Context) *ThreadPoolSwitch {
	t, _ := TaskFromContext(ctx)
	return &ThreadPoolSwitch{f: f, t: t}
}

// Await suspends until resumed on a pool worker goroutine.
func (s *ThreadPoolSwitch) Await() error {
	if s.t == nil {
		return nil
	}

	t := s.t
	c := t.ctx
	c.mu.Lock()
	if t.isCompleteLocked() {
		c.mu.Unlock()
		return ErrCancelled
	}
	t.pendingThreadPoolWork.push(func() { t.resumeOnce() })
	c.mu.Unlock()
	c.cond.Broadcast()

	t.factory.pool.Schedule(func() {
		c.mu.Lock()
		fn, ok := t.pendingThreadPoolWork.tryPopFront()
		c.mu.Unlock()
		if ok {
			fn()
		}
	})

	t.suspendSegment()
	return nil
}
