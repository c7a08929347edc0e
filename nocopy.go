package vsthreading

// noCopy prevents copying of values that embed it by implementing
// sync.Locker, the same convention sync.Mutex itself uses to let
// `go vet -copylocks` catch accidental copies.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
