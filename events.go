package vsthreading

import "sync"

// TransitionHooks are the extensible notifications fired around main-thread
// (re)acquisition (C7). OnTransitioningToMainThread fires immediately
// before a continuation that needed the main thread is dispatched onto it;
// OnTransitionedToMainThread fires immediately after, exactly once per
// OnTransitioningToMainThread (property 6). Neither fires when code stays
// on, or moves off, the main thread — only when a suspended continuation is
// delivered onto it.
type TransitionHooks struct {
	OnTransitioningToMainThread func(t *JoinableTask)
	OnTransitionedToMainThread  func(t *JoinableTask, cancelled bool)
}

type hookRegistry struct {
	mu    sync.Mutex
	hooks []TransitionHooks
}

// AddTransitionHooks registers h and returns a function that unregisters
// it. Multiple subscribers compose: every registered hook fires for every
// transition.
func (f *Factory) AddTransitionHooks(h TransitionHooks) (unregister func()) {
	f.hooksReg.mu.Lock()
	defer f.hooksReg.mu.Unlock()

	f.hooksReg.hooks = append(f.hooksReg.hooks, h)
	idx := len(f.hooksReg.hooks) - 1

	return func() {
		f.hooksReg.mu.Lock()
		defer f.hooksReg.mu.Unlock()
		f.hooksReg.hooks[idx] = TransitionHooks{}
	}
}

// fireTransitioning runs every registered OnTransitioningToMainThread hook.
// A hook that panics propagates to the caller triggering the transition
// (§7: "hooks' failures propagate to the caller ... they run on the main
// thread during dispatch"), so it is not recovered here.
func (f *Factory) fireTransitioning(t *JoinableTask) {
	f.hooksReg.mu.Lock()
	hooks := append([]TransitionHooks(nil), f.hooksReg.hooks...)
	f.hooksReg.mu.Unlock()

	for _, h := range hooks {
		if h.OnTransitioningToMainThread != nil {
			f.runHook(t, func() { h.OnTransitioningToMainThread(t) })
		}
	}
}

func (f *Factory) fireTransitioned(t *JoinableTask, cancelled bool) {
	f.hooksReg.mu.Lock()
	hooks := append([]TransitionHooks(nil), f.hooksReg.hooks...)
	f.hooksReg.mu.Unlock()

	for _, h := range hooks {
		if h.OnTransitionedToMainThread != nil {
			f.runHook(t, func() { h.OnTransitionedToMainThread(t, cancelled) })
		}
	}
}

// runHook reports a panicking hook to the diagnostic sink before letting it
// propagate to the caller driving the transition, per §7: assertion
// violations inside hooks are surfaced to diagnostics, not swallowed, but
// still propagate rather than being recovered away.
func (f *Factory) runHook(t *JoinableTask, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			f.ctx.diagnostics.Reportf("transition hook for task %s panicked: %v", t.id, r)
			panic(r)
		}
	}()
	fn()
}
