package vsthreading

// dependencyClosureCache memoizes the transitive dependency closure (§3
// invariant 3) of a single JoinableTask acting as a synchronous blocker. It
// is invalidated lazily: every graph mutation that could affect any
// blocker's closure bumps that blocker's generation counter rather than
// eagerly recomputing, and the cache is rebuilt the next time the pump asks
// for it and finds the stored generation stale.
//
// The teacher deduplicates concurrent identical work with a singleflight
// map (singleflight.go); here every access already happens under the
// Context's single graph lock, so the dedup singleflight exists for is
// already free — two pump goroutines can never race to recompute the same
// blocker's closure, because only one can hold the lock at a time. What's
// kept from the pattern is the memoize-by-key-with-invalidation shape, not
// the extra synchronization machinery, which would be redundant here.
type dependencyClosureCache struct {
	generation int
	set        map[*JoinableTask]struct{}
}

// invalidateClosureLocked bumps the generation on t, the task whose role
// as a joiner or parent just changed, and on every task whose closure can
// reach t (its joiners and its parent, transitively). Callers must hold
// ctx.mu.
func (t *JoinableTask) invalidateClosureLocked() {
	seen := map[*JoinableTask]struct{}{}
	queue := []*JoinableTask{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := seen[cur]; ok || cur == nil {
			continue
		}
		seen[cur] = struct{}{}
		cur.closure.generation++
		queue = append(queue, cur.parent)
		for u := range cur.joinedBy {
			queue = append(queue, u)
		}
	}
}

// dependencyClosureLocked returns D(t): the transitive closure of t's
// outgoing join edges (t.joins, populated by [Collection.Join]) union
// childTasks (implicit parent/child attachment), rooted at t. childTasks is
// folded in at every level, not just the root, so grandchildren are
// reachable too. BFS is deduplicated by task identity so cycles (§3
// invariant 4, property 5) terminate. Callers must hold ctx.mu.
func (t *JoinableTask) dependencyClosureLocked() map[*JoinableTask]struct{} {
	if t.closure.set != nil && t.closureComputedAt == t.closure.generation {
		return t.closure.set
	}

	visited := map[*JoinableTask]struct{}{t: {}}
	queue := []*JoinableTask{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for u := range cur.joins {
			if _, seen := visited[u]; !seen {
				visited[u] = struct{}{}
				queue = append(queue, u)
			}
		}
		for c := range cur.childTasks {
			if _, seen := visited[c]; !seen {
				visited[c] = struct{}{}
				queue = append(queue, c)
			}
		}
	}

	t.closure.set = visited
	t.closureComputedAt = t.closure.generation
	return visited
}
