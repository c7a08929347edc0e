package vsthreading

import (
	"context"
	"fmt"
	"runtime/trace"
	"strings"

	"github.com/google/uuid"
	"github.com/webriots/coro"
)

const (
	taskTraceTaskType   = "vsthreading-task"
	taskTraceRegionType = "vsthreading-region"
	taskTraceCategory   = "vsthreading"
)

// State is a JoinableTask's lifecycle state. It is monotonic toward
// completion: Running never follows either completed state.
type State int32

const (
	StateRunning State = iota
	StateCompletedSynchronously
	StateCompletedAsynchronously
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateCompletedSynchronously:
		return "CompletedSynchronously"
	case StateCompletedAsynchronously:
		return "CompletedAsynchronously"
	default:
		return "Unknown"
	}
}

// JoinableTask is a running, or completed, asynchronous operation tracked
// by this package (C2). Every JoinableTask owns a FIFO of continuations
// that must run on the main thread (pendingMainThreadWork), a FIFO of
// continuations that may run on any worker (pendingThreadPoolWork, kept for
// accounting — in practice those are handed straight to the pool), and the
// two halves of the join graph it participates in.
type JoinableTask struct {
	noCopy noCopy

	id      uuid.UUID
	ctx     *Context
	factory *Factory
	parent  *JoinableTask

	ownerGoroutineID int64

	state State

	pendingMainThreadWork *workQueue
	pendingThreadPoolWork *workQueue

	childTasks map[*JoinableTask]struct{}

	// joins is the outgoing half of the join graph: tasks this one has
	// joined, directly (Collection.Join) or implicitly (its own parent
	// attachment is recorded the other way, through childTasks). joinedBy
	// is the incoming half, kept so invariant 2 can be checked locally on
	// the joinee without a reverse graph walk.
	joins    map[*JoinableTask]int
	joinedBy map[*JoinableTask]int

	collectionMemberships map[*Collection]struct{}

	synchronouslyBlocking bool
	joinRequested         bool

	// onMainThread is true exactly while this task's coroutine is
	// synchronously executing as part of a resumeOnce call made from the
	// actual main goroutine (either RunAsync's initial synchronous prefix,
	// or a continuation dispatched by Factory.pump). It is per-task, not a
	// single Context-wide flag, because at any moment one task's
	// continuation may be running on the main goroutine while another's
	// runs concurrently on a pool worker.
	onMainThread bool

	promise *completionPromise

	closure           dependencyClosureCache
	closureComputedAt int

	resume    func(struct{}) (struct{}, bool)
	cancel    func()
	suspendFn func() struct{}

	fnCancel context.CancelFunc
}

// JoinableHandle wraps a JoinableTask and the future produced by its body,
// the pair [Factory.RunAsync] returns (§6, JoinableHandle.Join /
// JoinAsync).
type JoinableHandle struct {
	task *JoinableTask
}

// Task exposes the underlying JoinableTask, for callers that need to Join
// a collection on its behalf or inspect its state.
func (h *JoinableHandle) Task() *JoinableTask { return h.task }

// Join blocks the calling thread until the task completes and returns its
// body's result, exactly as [Factory.Run] would for an equivalent body.
// Call it the same way Run is called: from the main thread it pumps; from a
// worker thread it waits while still servicing the task's own pool work.
func (h *JoinableHandle) Join(ctx context.Context) (any, error) {
	return h.task.factory.joinTask(ctx, h.task)
}

// JoinAsync returns the task's completion promise without blocking.
func (h *JoinableHandle) JoinAsync() *completionPromise {
	return h.task.promise
}

func newJoinableTask(f *Factory, parentCtx context.Context, body func(ctx context.Context) (any, error)) (*JoinableTask, context.Context) {
	t := &JoinableTask{
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

	if !isSuppressed(parentCtx) {
		if parent, ok := TaskFromContext(parentCtx); ok {
			t.parent = parent
			f.ctx.mu.Lock()
			parent.addChildLocked(t)
			f.ctx.mu.Unlock()
		}
	}

	taskCtx, cancel := context.WithCancel(parentCtx)
	t.fnCancel = cancel
	taskCtx = withTask(taskCtx, t)

	resume, cancelCoro := coro.New(
		func(yield func(struct{}) struct{}, suspend func() struct{}) (z struct{}) {
			region := trace.StartRegion(taskCtx, taskTraceRegionType)
			defer region.End()

			t.suspendFn = suspend
			_ = yield // unused: this task never produces an intermediate value, only suspends/resumes.

			result, err := func() (result any, err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("vsthreading: task panicked: %v", r)
					}
				}()
				return body(taskCtx)
			}()

			t.ctx.mu.Lock()
			t.finishLocked(result, err)
			t.ctx.mu.Unlock()

			return
		},
	)
	t.resume = resume
	t.cancel = cancelCoro

	return t, taskCtx
}

func (t *JoinableTask) finishLocked(result any, err error) {
	if t.synchronouslyBlocking {
		t.state = StateCompletedSynchronously
	} else {
		t.state = StateCompletedAsynchronously
	}
	t.pendingMainThreadWork.close()
	t.pendingThreadPoolWork.close()
	for k := range t.collectionMemberships {
		// removeMember would take k.ctx.mu, which is t.ctx.mu and already
		// held here (sync.Mutex is not reentrant), so its body is inlined.
		delete(k.members, t)
		k.notifyIfEmptyLocked()
	}
	t.collectionMemberships = nil
	if t.parent != nil {
		delete(t.parent.childTasks, t)
		t.parent.invalidateClosureLocked()
	}
	t.promise.resolve(result, err)
	t.ctx.cond.Broadcast()

	if err != nil && !t.joinRequested {
		// Fire-and-forget fault: nobody has asked to Join this task yet, so
		// without this it would simply vanish. Reported, not recovered.
		t.ctx.diagnostics.Reportf("joinable task %s faulted without being joined: %v", t.id, err)
	}
}

// resumeOnce resumes the task's coroutine and reports whether it is still
// alive (true) or has returned (false). Callers are responsible for
// everything around it: setting onMainThread, firing transition hooks,
// and holding/releasing ctx.mu at the right times (resumeOnce itself must
// be called without ctx.mu held, since the resumed body may re-enter the
// package and need the lock itself).
func (t *JoinableTask) resumeOnce() bool {
	_, alive := t.resume(struct{}{})
	return alive
}

// suspendSegment suspends the running coroutine until the next resumeOnce.
// It must only be called from inside the coroutine body (i.e. from code
// running as part of this task), and must be called without ctx.mu held.
func (t *JoinableTask) suspendSegment() {
	t.suspendFn()
}

func (t *JoinableTask) addChildLocked(child *JoinableTask) {
	t.childTasks[child] = struct{}{}
	t.invalidateClosureLocked()
}

func (t *JoinableTask) addJoinLocked(target *JoinableTask) {
	t.joins[target]++
	target.joinedBy[t]++
	t.invalidateClosureLocked()
	target.invalidateClosureLocked()
}

func (t *JoinableTask) removeJoinLocked(target *JoinableTask) {
	if t.joins[target] > 0 {
		t.joins[target]--
		if t.joins[target] == 0 {
			delete(t.joins, target)
		}
	}
	if target.joinedBy[t] > 0 {
		target.joinedBy[t]--
		if target.joinedBy[t] == 0 {
			delete(target.joinedBy, t)
		}
	}
	t.invalidateClosureLocked()
	target.invalidateClosureLocked()
}

func (t *JoinableTask) isCompleteLocked() bool {
	return t.state != StateRunning
}

func (t *JoinableTask) Log(msg string) {
	if trace.IsEnabled() {
		var sb strings.Builder
		taskpath(&sb, t)
		sb.WriteRune(' ')
		sb.WriteString(msg)
		trace.Log(context.Background(), taskTraceCategory, sb.String())
	}
}

func (t *JoinableTask) Logf(format string, args ...any) {
	if trace.IsEnabled() {
		var sb strings.Builder
		taskpath(&sb, t)
		sb.WriteRune(' ')
		fmt.Fprintf(&sb, format, args...)
		trace.Log(context.Background(), taskTraceCategory, sb.String())
	}
}

func taskpath(sb *strings.Builder, t *JoinableTask) {
	if t == nil {
		return
	}
	taskpath(sb, t.parent)
	fmt.Fprintf(sb, "%s|", t.id)
}
