package vsthreading

import (
	"context"

	"github.com/google/uuid"
)

// Collection is a JoinableTaskCollection (C3): a named set of JoinableTasks
// over which callers establish joins. Joining a collection is how a
// synchronously-blocking task admits the main-thread work of tasks it did
// not itself create.
type Collection struct {
	noCopy noCopy

	ctx  *Context
	name string
	id   uuid.UUID

	members     map[*JoinableTask]struct{}
	activeJoins map[*JoinableTask]int // joiner -> count of currently open JoinScopes from that joiner

	emptyWaiters []*completionPromise
}

// JoinScope is returned by [Collection.Join]. Disposing it removes the
// edges it introduced; until then, the joiner's effective dependency set
// (§3 invariant 3) includes every member of the collection.
type JoinScope struct {
	k        *Collection
	joiner   *JoinableTask
	disposed bool
}

// Join opens a join: for every current and future member m of k, an edge
// (joiner, m) is added to the join graph for as long as the returned scope
// stays open. ctx must carry the ambient task that is joining (normally the
// one synchronously blocked inside a [Factory.Run]); Join panics if ctx has
// no ambient task, since a join with no joiner has nothing to attach to.
func (k *Collection) Join(ctx context.Context) *JoinScope {
	joiner, ok := TaskFromContext(ctx)
	if !ok {
		panic("vsthreading: Join requires an ambient JoinableTask in ctx")
	}

	k.ctx.mu.Lock()
	defer k.ctx.mu.Unlock()

	k.activeJoins[joiner]++
	for m := range k.members {
		joiner.addJoinLocked(m)
	}
	joiner.invalidateClosureLocked()
	k.ctx.cond.Broadcast()

	return &JoinScope{k: k, joiner: joiner}
}

// Dispose closes the scope: edges this scope introduced are removed. A
// continuation that already began executing runs to its next suspension
// regardless (§4.2, "Admission changes while blocked"); only continuations
// not yet started are affected by the revert.
func (s *JoinScope) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true

	k := s.k
	k.ctx.mu.Lock()
	defer k.ctx.mu.Unlock()

	k.activeJoins[s.joiner]--
	if k.activeJoins[s.joiner] <= 0 {
		delete(k.activeJoins, s.joiner)
	}
	for m := range k.members {
		s.joiner.removeJoinLocked(m)
	}
	s.joiner.invalidateClosureLocked()
	k.ctx.cond.Broadcast()
}

// addMember adds t to k. If any joiner currently holds an open scope on k,
// the new member immediately becomes admissible to that joiner too (§4.3,
// "Adding a new task to K while a scope is open must propagate").
func (k *Collection) addMember(t *JoinableTask) {
	k.ctx.mu.Lock()
	defer k.ctx.mu.Unlock()

	if _, ok := k.members[t]; ok {
		return
	}
	if t.isCompleteLocked() {
		// Already finished: finishLocked nilled out collectionMemberships
		// and there is no pending work left for a join to ever admit, so
		// membership would be a no-op at best and a nil-map write at worst.
		return
	}
	k.members[t] = struct{}{}
	t.collectionMemberships[k] = struct{}{}

	for joiner, count := range k.activeJoins {
		// One edge per currently open scope, matching Join's per-call
		// increment, so that closing any single one of a joiner's several
		// nested scopes on k only removes one edge instead of the member's
		// only edge (Dispose decrements by exactly one per scope closed).
		for i := 0; i < count; i++ {
			joiner.addJoinLocked(t)
		}
	}
	k.ctx.cond.Broadcast()
}

// removeMember removes t from k. Existing join edges onto t are left alone
// here; callers remove membership only once t has completed, at which
// point its queues are already closed and its presence in anyone's closure
// is harmless.
func (k *Collection) removeMember(t *JoinableTask) {
	k.ctx.mu.Lock()
	defer k.ctx.mu.Unlock()

	delete(k.members, t)
	delete(t.collectionMemberships, k)
	k.notifyIfEmptyLocked()
}

func (k *Collection) notifyIfEmptyLocked() {
	if len(k.members) != 0 {
		return
	}
	waiters := k.emptyWaiters
	k.emptyWaiters = nil
	for _, p := range waiters {
		p.resolve(nil, nil)
	}
}

// JoinUntilEmptyAsync returns a promise that resolves once the collection
// has no members, a supplement useful for shutdown sequencing: a factory
// can wait for every task it spawned into a scratch collection to drain
// before tearing down.
func (k *Collection) JoinUntilEmptyAsync() *completionPromise {
	k.ctx.mu.Lock()
	defer k.ctx.mu.Unlock()

	p := newCompletionPromise()
	if len(k.members) == 0 {
		p.resolve(nil, nil)
		return p
	}
	k.emptyWaiters = append(k.emptyWaiters, p)
	return p
}
