package vsthreading

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newBareTask(ctx *Context) *JoinableTask {
	return &JoinableTask{
		id:                    newID(),
		ctx:                   ctx,
		pendingMainThreadWork: newWorkQueue(),
		pendingThreadPoolWork: newWorkQueue(),
		childTasks:            make(map[*JoinableTask]struct{}),
		joins:                 make(map[*JoinableTask]int),
		joinedBy:              make(map[*JoinableTask]int),
		collectionMemberships: make(map[*Collection]struct{}),
		promise:               newCompletionPromise(),
	}
}

func TestDependencyClosureIncludesJoinsAndChildren(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	a := newBareTask(c)
	b := newBareTask(c)
	child := newBareTask(c)

	c.mu.Lock()
	a.addJoinLocked(b)
	a.addChildLocked(child)
	closure := a.dependencyClosureLocked()
	c.mu.Unlock()

	r.Contains(closure, a)
	r.Contains(closure, b)
	r.Contains(closure, child)
	r.Len(closure, 3)
}

func TestDependencyClosureTerminatesOnCycle(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	a := newBareTask(c)
	b := newBareTask(c)

	c.mu.Lock()
	a.addJoinLocked(b)
	b.addJoinLocked(a)
	closure := a.dependencyClosureLocked()
	c.mu.Unlock()

	r.Len(closure, 2)
	r.Contains(closure, a)
	r.Contains(closure, b)
}

func TestDependencyClosureMemoizedUntilInvalidated(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	a := newBareTask(c)
	b := newBareTask(c)
	other := newBareTask(c)

	c.mu.Lock()
	a.addJoinLocked(b)
	first := a.dependencyClosureLocked()
	r.Len(first, 2)

	// Without a graph mutation, the same map (by generation) comes back.
	second := a.dependencyClosureLocked()
	r.Equal(len(first), len(second))

	a.addJoinLocked(other)
	third := a.dependencyClosureLocked()
	c.mu.Unlock()

	r.Len(third, 3)
	r.Contains(third, other)
}

func TestDependencyClosureShrinksAfterRemoveJoin(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	a := newBareTask(c)
	b := newBareTask(c)

	c.mu.Lock()
	a.addJoinLocked(b)
	r.Len(a.dependencyClosureLocked(), 2)

	a.removeJoinLocked(b)
	closure := a.dependencyClosureLocked()
	c.mu.Unlock()

	r.Len(closure, 1)
	r.Contains(closure, a)
}
