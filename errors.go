package vsthreading

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned by an awaiter (notably [MainThreadSwitch.Await])
// whose cancellation signal fired before the awaited transition completed.
var ErrCancelled = errors.New("vsthreading: operation cancelled")

// FaultError wraps the error returned by a JoinableTask's body, carrying the
// task that raised it, and unwraps to that error via errors.Unwrap. The
// package itself does not construct it: Run and Join return the body's error
// as is, and the unjoined-fault diagnostic report formats the task id and
// error directly.
type FaultError struct {
	Task *JoinableTask
	Err  error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("vsthreading: task %s faulted: %v", e.Task.id, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}
