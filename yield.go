package vsthreading

import "context"

// Yield suspends the calling JoinableTask and reschedules it onto its own
// pendingMainThreadWork queue unconditionally — unlike SwitchToMainThreadAsync
// it never takes the immediate-ready fast path, even if already on the main
// thread, so it always round-trips through whatever pump is admitting this
// task's work. It has no ambient-task-less fallback: Yield outside any
// RunAsync/Run body is a programmer error.
func (f *Factory) Yield(ctx context.Context) error {
	t, ok := TaskFromContext(ctx)
	if !ok {
		panic("vsthreading: Yield requires an ambient JoinableTask in ctx")
	}

	c := t.ctx
	c.mu.Lock()
	if t.isCompleteLocked() {
		c.mu.Unlock()
		return ErrCancelled
	}
	t.pendingMainThreadWork.push(func() { t.resumeOnce() })
	c.mu.Unlock()
	c.wakeAll()

	t.suspendSegment()
	return nil
}
