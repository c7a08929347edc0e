package vsthreading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSwitchToMainThreadAwaitWithoutAmbientTaskBlocksUntilMainThreadRuns(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	loop := NewMainThreadLoop()
	loopDone := make(chan struct{})
	go func() {
		loop.Run()
		close(loopDone)
	}()
	defer func() {
		loop.Stop()
		<-loopDone
	}()

	c.BindMainThread()
	f := c.CreateFactory(c.CreateCollection("k"), WithThreadPool(inlineScheduler{}), WithMainThreadScheduler(loop))

	// Called directly, outside any RunAsync/Run body: there is no ambient
	// JoinableTask, so this exercises awaitWithoutAmbientTask rather than
	// the coroutine-suspend path.
	unblocked := make(chan error, 1)
	awaited := newCompletionPromise()
	go func() {
		err := f.SwitchToMainThreadAsync(context.Background()).Await()
		unblocked <- err
		awaited.resolve(nil, err)
	}()

	select {
	case <-unblocked:
		t.Fatal("Await returned before the main thread ever pumped the factory's collection")
	case <-time.After(50 * time.Millisecond):
	}

	// The transient task's gate closure is only dispatched by a main-thread
	// pump whose closure reaches it: here, a CompleteSynchronously that
	// joins the factory's collection from the bound main goroutine.
	_, err := f.CompleteSynchronously(context.Background(), f.Collection(), awaited)
	r.NoError(err)

	select {
	case err := <-unblocked:
		r.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("Await never unblocked once the main thread pumped the factory's collection")
	}
}

func TestSwitchToMainThreadIsNoOpWhenCancelFiresAfterReady(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	c.BindMainThread()
	f := c.CreateFactory(c.CreateCollection("k"), WithThreadPool(inlineScheduler{}))

	cancel := make(chan struct{})
	close(cancel)

	_, err := f.Run(context.Background(), func(taskCtx context.Context) (any, error) {
		// Already on the main thread: IsReady is true regardless of cancel.
		return nil, f.SwitchToMainThreadAsync(taskCtx, cancel).Await()
	})
	r.NoError(err)
}

func TestSwitchToMainThreadDeliversCancellationOffMainThread(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	c.BindMainThread()
	f := c.CreateFactory(c.CreateCollection("k"), WithThreadPool(inlineScheduler{}))

	cancel := make(chan struct{})
	close(cancel)

	_, err := f.Run(context.Background(), func(taskCtx context.Context) (any, error) {
		r.NoError(f.SwitchToThreadPoolAsync(taskCtx).Await())
		return nil, f.SwitchToMainThreadAsync(taskCtx, cancel).Await()
	})
	r.ErrorIs(err, ErrCancelled)
}

func TestSwitchToThreadPoolAwaitNoOpOutsideTask(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	f := c.CreateFactory(c.CreateCollection("k"), WithThreadPool(inlineScheduler{}))

	r.NoError(f.SwitchToThreadPoolAsync(context.Background()).Await())
}
