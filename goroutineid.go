package vsthreading

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns a stable identifier for the calling goroutine.
//
// Go deliberately exposes no supported goroutine-local-storage primitive,
// and [Context] has exactly one place that genuinely needs one: deciding,
// at the top of [Factory.Run], whether the calling goroutine is the one
// goroutine bound as the main thread (the pump-loop branch of §4.1) or some
// other goroutine (the worker condition-variable branch). Everywhere else
// in this package, "is this running on the main thread" is answered by
// explicit bookkeeping on the task whose segment is currently executing
// (see [Factory] pump loop), not by asking the runtime.
//
// This parses the "goroutine NNN [running]:" header that
// runtime.Stack always emits first; it is a well-known, if inelegant,
// idiom for goroutine identity in the absence of a supported API.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return -1
	}
	b = b[len(prefix):]

	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		return -1
	}

	id, err := strconv.ParseInt(string(b[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
