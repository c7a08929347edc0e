package vsthreading

import "context"

// syncContext is the per-task SynchronizationContext adapter (C6). The
// factory conceptually installs one on the thread just before invoking user
// code and before resuming any continuation; in this Go rendering there is
// nothing to literally "install" on a goroutine, so syncContext is instead
// captured explicitly via [CurrentSyncContext] from a context.Context that
// carries the ambient task — the same capture-and-use-later contract §4.4
// describes, just realized through an explicit value instead of a
// thread-static.
type syncContext struct {
	task           *JoinableTask
	mainThreadOnly bool
}

// CurrentSyncContext captures the sync context implied by ctx's ambient
// task, snapshotting whether that task is on the main thread right now —
// exactly as .NET's SynchronizationContext.Current reflects the calling
// thread at the moment it's read. Posting or Sending through the result
// later — even after the Run call that produced ctx has returned — still
// routes through the same task and the affinity captured here, which is
// what lets a captured context survive a Run boundary (property 8). It
// returns nil if ctx carries no ambient task.
func CurrentSyncContext(ctx context.Context) *syncContext {
	t, ok := TaskFromContext(ctx)
	if !ok {
		return nil
	}
	t.ctx.mu.Lock()
	affinity := t.onMainThread
	t.ctx.mu.Unlock()
	return &syncContext{task: t, mainThreadOnly: affinity}
}

// Post schedules fn to run under this sync context's task identity: onto
// the main thread if this context is main-thread-affinitized, otherwise
// directly on the thread pool (§4.5).
func (s *syncContext) Post(fn func()) {
	t := s.task
	wrapped := func() { fn() }

	t.ctx.mu.Lock()
	if t.isCompleteLocked() {
		t.ctx.mu.Unlock()
		return
	}
	if s.mainThreadOnly {
		t.pendingMainThreadWork.push(wrapped)
		t.ctx.mu.Unlock()
		t.ctx.wakeAll()
		return
	}
	t.ctx.mu.Unlock()
	t.factory.pool.Schedule(wrapped)
}

// Send delivers fn synchronously: inline if this sync context's task is
// currently on the main thread; otherwise it enqueues fn as main-thread
// work and blocks the caller on a per-call completion handle until some
// pump dispatches it (§4.5). If nobody is positioned to pump the relevant
// collection this blocks forever — the documented deadlock hazard of §7 —
// and the registered no-available-pump detector, if any, is invoked first
// as a warning.
func (s *syncContext) Send(fn func()) {
	t := s.task

	// t.onMainThread, not raw goroutine identity: Send may be called from
	// deep inside a resumed coroutine body, which is not guaranteed to run
	// on the literal goroutine bound as the main thread (see
	// Context.isMainThreadFor).
	t.ctx.mu.Lock()
	onMain := t.onMainThread
	t.ctx.mu.Unlock()
	if onMain {
		fn()
		return
	}

	done := make(chan struct{})

	t.ctx.mu.Lock()
	if t.isCompleteLocked() {
		t.ctx.mu.Unlock()
		return
	}
	if t.ctx.onNoAvailablePump != nil && !t.hasPumperLocked() {
		t.ctx.onNoAvailablePump(t)
	}
	t.pendingMainThreadWork.push(func() {
		fn()
		close(done)
	})
	t.ctx.mu.Unlock()
	t.ctx.wakeAll()

	<-done
}

// hasPumperLocked reports whether some synchronously-blocking task's
// dependency closure currently includes t, i.e. whether anyone is
// positioned to drain t's main-thread queue at all. This is a heuristic
// diagnostic, not a guarantee: a pumper can join after this check runs.
func (t *JoinableTask) hasPumperLocked() bool {
	for _, blocker := range t.ctx.mainThreadBlockerStack {
		if _, ok := blocker.dependencyClosureLocked()[t]; ok {
			return true
		}
	}
	return false
}
