package vsthreading

import (
	"context"
	"sync"
)

// taskContextKey stores the ambient JoinableTask in a context.Context, the
// flow-local slot described in DESIGN NOTES §9: propagated by the caller
// passing ctx along, not by any thread-local.
type taskContextKey struct{}

// suppressContextKey marks a context.Context as having relevance suppressed
// (see [Context.SuppressRelevance]): tasks created under it do not attach as
// children of whatever task was ambient when the scope opened.
type suppressContextKey struct{}

func withTask(ctx context.Context, t *JoinableTask) context.Context {
	return context.WithValue(ctx, taskContextKey{}, t)
}

// TaskFromContext retrieves the ambient JoinableTask, if any. It returns
// (nil, false) for a context.Context that was never derived from a call into
// [Factory.Run] or [Factory.RunAsync].
func TaskFromContext(ctx context.Context) (*JoinableTask, bool) {
	t, ok := ctx.Value(taskContextKey{}).(*JoinableTask)
	return t, ok
}

func withSuppressed(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressContextKey{}, true)
}

func isSuppressed(ctx context.Context) bool {
	v, _ := ctx.Value(suppressContextKey{}).(bool)
	return v
}

// Context is the process- (or application-domain-) wide anchor: it
// identifies the main thread, the sink used to post work onto it, and owns
// the single lock that serializes every mutation of the join graph. One
// Context is normally created per application; every [Collection] and
// [Factory] it creates shares its lock and its notion of "the main thread".
type Context struct {
	noCopy noCopy

	mu   sync.Mutex
	cond *sync.Cond

	mainGoroutineID int64
	hasMainThread   bool

	// mainThreadBlockerStack holds the chain of synchronous blockers
	// currently active on the main thread's own goroutine, outermost
	// first. It only ever grows/shrinks from that one goroutine (nested
	// Run calls are ordinary nested Go calls there), so no additional
	// synchronization beyond mu is needed.
	mainThreadBlockerStack []*JoinableTask

	underlyingMainPost func(func())
	diagnostics        DiagnosticSink
	onNoAvailablePump  func(*JoinableTask)
}

// ContextOption configures a [Context] built by [NewContext].
type ContextOption func(*Context)

// WithMainThreadPost supplies the host's sink for scheduling a callback to
// run on the main thread. It is used only to post no-op wake-up closures so
// an idle host loop turns over when new main-thread work is queued. Whether
// a main thread exists at all is decided by [Context.BindMainThread], not by
// this option: without BindMainThread every SwitchToMainThreadAsync is a
// no-op, per §4.1's no-sync-context-host behavior.
func WithMainThreadPost(post func(func())) ContextOption {
	return func(c *Context) { c.underlyingMainPost = post }
}

// WithDiagnosticSink overrides the default trace/stderr [DiagnosticSink].
func WithDiagnosticSink(sink DiagnosticSink) ContextOption {
	return func(c *Context) { c.diagnostics = sink }
}

// WithNoAvailablePumpDetector registers a callback invoked when a
// synchronous Send is about to block with no synchronous blocker positioned
// to pump the owning task's collection. This is a warning, not a recovery:
// the Send still blocks (and may deadlock) exactly as §7 documents.
func WithNoAvailablePumpDetector(fn func(*JoinableTask)) ContextOption {
	return func(c *Context) { c.onNoAvailablePump = fn }
}

// NewContext constructs a Context. Call [Context.BindMainThread] from
// whichever goroutine is to be treated as the main thread before any
// [Factory.Run] is invoked from it.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		mainGoroutineID: -1,
		diagnostics:     traceDiagnosticSink{},
	}
	c.cond = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BindMainThread records the calling goroutine as the main thread. It must
// be called at most once, from the goroutine that will host the main-thread
// event loop (directly, never from inside a JoinableTask body).
func (c *Context) BindMainThread() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mainGoroutineID = goroutineID()
	c.hasMainThread = true
}

// IsMainThread reports whether the calling goroutine is the one bound by
// BindMainThread. This is one of the few places in the package that asks
// the runtime for goroutine identity directly; everywhere a JoinableTask is
// involved, "is this executing as the main thread" is answered instead by
// that task's own onMainThread flag, because code resumed through a
// coroutine does not necessarily run on the goroutine that originally
// suspended it.
func (c *Context) IsMainThread() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMainThread && goroutineID() == c.mainGoroutineID
}

// isMainThreadFor reports whether code running under ctx should be treated
// as running on the main thread. A coroutine body resumed through
// JoinableTask.resumeOnce is not guaranteed to execute on the same raw
// goroutine that called resumeOnce, so whenever ctx carries an ambient
// task, its own onMainThread flag (set by whichever code actually drove
// that resumeOnce call) is authoritative. Only a ctx with no ambient task —
// meaning the caller is plain Go code, not a JoinableTask body — falls back
// to comparing raw goroutine identity.
func (c *Context) isMainThreadFor(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasMainThread {
		return false
	}
	if t, ok := TaskFromContext(ctx); ok {
		return t.onMainThread
	}
	return goroutineID() == c.mainGoroutineID
}

// HasMainThread reports whether a main thread has been bound at all.
func (c *Context) HasMainThread() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMainThread
}

func (c *Context) wakeAll() {
	if c.underlyingMainPost != nil {
		// Wake up an idle host loop in case nobody is blocked in a pump
		// right now; the closure itself is a no-op, its only job is to
		// make the host's loop turn over and notice new work.
		c.underlyingMainPost(func() {})
	}
	c.cond.Broadcast()
}

// CreateCollection constructs a new, empty [Collection] anchored to this
// Context.
func (c *Context) CreateCollection(name string) *Collection {
	return &Collection{
		ctx:         c,
		name:        name,
		id:          newID(),
		members:     make(map[*JoinableTask]struct{}),
		activeJoins: make(map[*JoinableTask]int),
	}
}

// CreateFactory constructs a [Factory] whose tasks attach to coll by
// default.
func (c *Context) CreateFactory(coll *Collection, opts ...FactoryOption) *Factory {
	f := &Factory{
		ctx:        c,
		collection: coll,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.pool == nil {
		f.pool = NewWorkerPool(4)
	}
	return f
}

// SuppressScope is returned by [Context.SuppressRelevance]; Dispose ends the
// scope. It has no effect of its own — all the behavior lives in the
// context.Context value it decorated — but gives callers an explicit,
// disposable handle matching the rest of the package's scope idiom.
type SuppressScope struct {
	disposed bool
}

// Dispose ends the suppression scope. It is idempotent.
func (s *SuppressScope) Dispose() {
	s.disposed = true
}

// SuppressRelevance returns a derived context.Context under which newly
// created JoinableTasks do not attach as children of whatever task is
// ambient in ctx. This is the escape hatch (§4.4/C8) for starting work that
// should be treated as unrelated to the caller, so that a synchronous
// blocker's filtering is meaningful: without it, everything a program does
// would eventually become reachable from any Run.
func (c *Context) SuppressRelevance(ctx context.Context) (context.Context, *SuppressScope) {
	return withSuppressed(ctx), &SuppressScope{}
}
