package vsthreading

import "context"

// Factory is the JoinableTaskFactory (C5): the entry points that construct
// JoinableTasks and implement the re-entrant blocking loop described in
// §4.2. Tasks created through a Factory attach by default to the
// Collection it was built with.
type Factory struct {
	noCopy noCopy

	ctx        *Context
	collection *Collection
	pool       ThreadPoolScheduler
	mainLoop   MainThreadScheduler
	hooksReg   hookRegistry
}

// FactoryOption configures a [Factory] built by [Context.CreateFactory].
type FactoryOption func(*Factory)

// WithThreadPool overrides the default [WorkerPool] with the host's own
// ThreadPoolScheduler.
func WithThreadPool(p ThreadPoolScheduler) FactoryOption {
	return func(f *Factory) { f.pool = p }
}

// WithMainThreadScheduler attaches the host's MainThreadScheduler. The
// factory only stores it and returns it from MainThreadSchedulerHandle; it
// does not post work to it or call its PushFrame itself.
func WithMainThreadScheduler(m MainThreadScheduler) FactoryOption {
	return func(f *Factory) { f.mainLoop = m }
}

// MainThreadSchedulerHandle exposes the factory's configured main-thread
// scheduler, or nil if none was supplied (§6, Factory.MainThreadScheduler).
func (f *Factory) MainThreadSchedulerHandle() MainThreadScheduler { return f.mainLoop }

// ThreadPoolSchedulerHandle exposes the factory's configured thread pool (§6,
// Factory.ThreadPoolScheduler).
func (f *Factory) ThreadPoolSchedulerHandle() ThreadPoolScheduler { return f.pool }

// Collection returns the factory's default collection — every task it
// creates is a member of it.
func (f *Factory) Collection() *Collection { return f.collection }

// RunAsync creates a JoinableTask, makes it ambient for body's synchronous
// prefix, and runs body up to its first suspension (§4.1). It returns
// immediately with a handle; it does not wait for body to finish.
func (f *Factory) RunAsync(ctx context.Context, body func(ctx context.Context) (any, error)) *JoinableHandle {
	t, _ := newJoinableTask(f, ctx, body)
	f.collection.addMember(t)

	// The synchronous prefix runs as part of whatever called RunAsync. If
	// that caller is itself executing on the main thread — either plain Go
	// code on the bound goroutine, or another JoinableTask's body with its
	// own onMainThread already true — t.onMainThread must read true for the
	// duration, otherwise a SwitchToMainThreadAsync.IsReady() check made
	// from within this very prefix (property 2) would wrongly report
	// not-ready, since pump hasn't been entered yet to set it itself.
	onMain := f.ctx.isMainThreadFor(ctx)
	if onMain {
		f.ctx.mu.Lock()
		t.onMainThread = true
		f.ctx.mu.Unlock()

		t.resumeOnce()

		f.ctx.mu.Lock()
		t.onMainThread = false
		f.ctx.mu.Unlock()
	} else {
		t.resumeOnce()
	}

	return &JoinableHandle{task: t}
}

// Run creates a JoinableTask exactly as RunAsync does, then synchronously
// blocks until it completes, returning its result or propagating its
// failure (§4.1).
func (f *Factory) Run(ctx context.Context, body func(ctx context.Context) (any, error)) (any, error) {
	h := f.RunAsync(ctx, body)
	return f.joinTask(ctx, h.task)
}

// CompleteSynchronously is equivalent to Run(async () => await future), but
// with coll already acting as the join-set: any main-thread work the
// future's producer registered to coll is admitted while this call blocks
// (§4.1).
func (f *Factory) CompleteSynchronously(ctx context.Context, coll *Collection, future *completionPromise) (any, error) {
	return f.Run(ctx, func(taskCtx context.Context) (any, error) {
		scope := coll.Join(taskCtx)
		defer scope.Dispose()
		return awaitPromise(taskCtx, future)
	})
}

// awaitPromise suspends the calling JoinableTask's own coroutine until
// future resolves, instead of blocking on a bare channel receive the way
// completionPromise.Wait does. A bare receive here would never give the
// coroutine's suspend point a chance to run, so RunAsync's synchronous
// prefix (which only returns once the body suspends or returns) would never
// return, and Run's own pump/blockWorker would never be entered to admit
// the collection's main-thread work future is waiting on in the first
// place. Once future resolves, the resume is dispatched onto the factory's
// thread pool exactly as SwitchToThreadPoolAsync does, so it completes
// regardless of whether the caller is pumping the main thread or blocked in
// blockWorker.
func awaitPromise(ctx context.Context, future *completionPromise) (any, error) {
	t, ok := TaskFromContext(ctx)
	if !ok {
		return future.Wait()
	}

	c := t.ctx
	c.mu.Lock()
	if result, err, done := future.TryGet(); done {
		c.mu.Unlock()
		return result, err
	}
	c.mu.Unlock()

	go func() {
		<-future.Done()
		t.factory.pool.Schedule(func() { t.resumeOnce() })
	}()

	t.suspendSegment()
	return future.Wait()
}

func (f *Factory) joinTask(ctx context.Context, t *JoinableTask) (any, error) {
	f.ctx.mu.Lock()
	t.joinRequested = true
	f.ctx.mu.Unlock()

	if f.ctx.isMainThreadFor(ctx) {
		return f.pump(t)
	}
	return f.blockWorker(t)
}

// pump is the re-entrant message loop of §4.2, run by the main thread while
// synchronously blocked inside Run/Join on blocker. It is reentrant:
// blocker is pushed onto the Context's main-thread blocker stack so that a
// nested Run on the main thread (triggered from inside a dispatched
// continuation) admits everything the outer pump already admits, per
// §4.2's "Nested Run".
func (f *Factory) pump(blocker *JoinableTask) (any, error) {
	c := f.ctx

	c.mu.Lock()
	blocker.synchronouslyBlocking = true
	c.mainThreadBlockerStack = append(c.mainThreadBlockerStack, blocker)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		blocker.synchronouslyBlocking = false
		c.mainThreadBlockerStack = c.mainThreadBlockerStack[:len(c.mainThreadBlockerStack)-1]
		c.cond.Broadcast()
		c.mu.Unlock()
	}()

	for {
		c.mu.Lock()
		if result, err, done := blocker.promise.TryGet(); done {
			c.mu.Unlock()
			return result, err
		}

		owner := c.pickAdmissibleLocked(blocker)
		if owner == nil {
			c.cond.Wait()
			c.mu.Unlock()
			continue
		}
		fn, ok := owner.pendingMainThreadWork.tryPopFront()
		if ok {
			owner.onMainThread = true
		}
		c.mu.Unlock()
		if !ok {
			continue
		}

		f.fireTransitioning(owner)
		fn()
		f.fireTransitioned(owner, false)

		c.mu.Lock()
		owner.onMainThread = false
		c.mu.Unlock()
	}
}

// pickAdmissibleLocked chooses the next task whose main-thread queue the
// pump may drain: blocker's own queue first (starvation-freedom for the
// blocker itself, §4.2 step 2), then any task in the admission set formed
// by every blocker currently on the main-thread stack — the cooperation
// nested Run frames need (§4.2, "Nested Run"). Callers must hold ctx.mu.
func (c *Context) pickAdmissibleLocked(blocker *JoinableTask) *JoinableTask {
	if blocker.pendingMainThreadWork.len() > 0 {
		return blocker
	}

	for _, b := range c.mainThreadBlockerStack {
		for u := range b.dependencyClosureLocked() {
			if u != blocker && u.pendingMainThreadWork.len() > 0 {
				return u
			}
		}
	}
	return nil
}

// blockWorker is the worker-thread path of §4.1: wait on the graph's
// condition variable for blocker's future to resolve, but keep draining
// blocker's own thread-pool queue inline so a worker that holds blocker
// never refuses to run blocker's own non-main-thread continuations.
func (f *Factory) blockWorker(blocker *JoinableTask) (any, error) {
	c := f.ctx
	for {
		c.mu.Lock()
		if result, err, done := blocker.promise.TryGet(); done {
			c.mu.Unlock()
			return result, err
		}
		if fn, ok := blocker.pendingThreadPoolWork.tryPopFront(); ok {
			c.mu.Unlock()
			fn()
			continue
		}
		c.cond.Wait()
		c.mu.Unlock()
	}
}
