package vsthreading

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCurrentSyncContextNilWithoutAmbientTask(t *testing.T) {
	r := require.New(t)
	r.Nil(CurrentSyncContext(context.Background()))
}

func TestSyncContextPostRoutesByAffinity(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	c.BindMainThread()
	f := c.CreateFactory(c.CreateCollection("k"), WithThreadPool(inlineScheduler{}))

	var capturedOnMain, capturedOffMain *syncContext

	_, err := f.Run(context.Background(), func(taskCtx context.Context) (any, error) {
		// Captured while the body's synchronous prefix is on the main
		// thread: mainThreadOnly must be true.
		capturedOnMain = CurrentSyncContext(taskCtx)

		r.NoError(f.SwitchToThreadPoolAsync(taskCtx).Await())
		// Now off the main thread: mainThreadOnly must be false.
		capturedOffMain = CurrentSyncContext(taskCtx)

		r.NoError(f.SwitchToMainThreadAsync(taskCtx).Await())
		return nil, nil
	})
	r.NoError(err)

	r.NotNil(capturedOnMain)
	r.True(capturedOnMain.mainThreadOnly)

	r.NotNil(capturedOffMain)
	r.False(capturedOffMain.mainThreadOnly)

	// Post on an already-completed task's captured sync context is a silent
	// no-op: both queues were closed and the task detached when it finished.
	var ran bool
	capturedOnMain.Post(func() { ran = true })
	r.False(ran)
}

func TestSyncContextPostRunsOnPoolWhileTaskStillRunning(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	c.BindMainThread()
	f := c.CreateFactory(c.CreateCollection("k"), WithThreadPool(inlineScheduler{}))

	ran := make(chan struct{})
	h := f.RunAsync(context.Background(), func(taskCtx context.Context) (any, error) {
		r.NoError(f.SwitchToThreadPoolAsync(taskCtx).Await())

		sc := CurrentSyncContext(taskCtx)
		r.False(sc.mainThreadOnly)
		sc.Post(func() { close(ran) })

		r.NoError(f.SwitchToMainThreadAsync(taskCtx).Await())
		return nil, nil
	})

	_, err := h.Join(context.Background())
	r.NoError(err)
	<-ran
}

func TestSyncContextSendInlineWhenOnMainThread(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	c.BindMainThread()
	f := c.CreateFactory(c.CreateCollection("k"), WithThreadPool(inlineScheduler{}))

	var ran bool
	_, err := f.Run(context.Background(), func(taskCtx context.Context) (any, error) {
		sc := CurrentSyncContext(taskCtx)
		sc.Send(func() { ran = true })
		return nil, nil
	})
	r.NoError(err)
	r.True(ran)
}
