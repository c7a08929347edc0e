package vsthreading

import "github.com/google/uuid"

// newID produces a stable display identifier for a JoinableTask or
// Collection, used only in trace output and diagnostic reports — it plays
// no role in graph identity, which is always the pointer itself.
func newID() uuid.UUID {
	return uuid.New()
}
