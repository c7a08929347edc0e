package vsthreading

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuppressRelevanceDetachesChildFromParent(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	c.BindMainThread()
	f := c.CreateFactory(c.CreateCollection("k"), WithThreadPool(inlineScheduler{}))

	var parentTask, childTask *JoinableTask
	_, err := f.Run(context.Background(), func(taskCtx context.Context) (any, error) {
		parentTask, _ = TaskFromContext(taskCtx)

		suppressed, scope := c.SuppressRelevance(taskCtx)
		defer scope.Dispose()

		child := f.RunAsync(suppressed, func(childCtx context.Context) (any, error) {
			childTask, _ = TaskFromContext(childCtx)
			return nil, nil
		})
		_, err := child.Join(taskCtx)
		return nil, err
	})
	r.NoError(err)
	r.NotNil(parentTask)
	r.NotNil(childTask)

	c.mu.Lock()
	defer c.mu.Unlock()
	r.Nil(childTask.parent)
	_, attached := parentTask.childTasks[childTask]
	r.False(attached)
}

func TestRunAsyncAttachesChildWithoutSuppression(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	c.BindMainThread()
	f := c.CreateFactory(c.CreateCollection("k"), WithThreadPool(inlineScheduler{}))

	var parentTask, childTask *JoinableTask
	_, err := f.Run(context.Background(), func(taskCtx context.Context) (any, error) {
		parentTask, _ = TaskFromContext(taskCtx)

		child := f.RunAsync(taskCtx, func(childCtx context.Context) (any, error) {
			childTask, _ = TaskFromContext(childCtx)
			return nil, nil
		})
		_, err := child.Join(taskCtx)
		return nil, err
	})
	r.NoError(err)

	c.mu.Lock()
	defer c.mu.Unlock()
	r.Equal(parentTask, childTask.parent)
	_, attached := parentTask.childTasks[childTask]
	r.False(attached) // child already finished: finishLocked removes itself from its parent's childTasks
}

func TestWithNoAvailablePumpDetectorFiresOnBlockingSendWithNoPumper(t *testing.T) {
	r := require.New(t)

	var warned *JoinableTask
	warnedCh := make(chan struct{})
	c := NewContext(WithNoAvailablePumpDetector(func(t *JoinableTask) {
		warned = t
		close(warnedCh)
	}))
	c.BindMainThread()
	f := c.CreateFactory(c.CreateCollection("k"), WithThreadPool(inlineScheduler{}))

	h := f.RunAsync(context.Background(), func(taskCtx context.Context) (any, error) {
		r.NoError(f.SwitchToThreadPoolAsync(taskCtx).Await())
		sc := CurrentSyncContext(taskCtx)
		sc.Send(func() {})
		return nil, nil
	})

	<-warnedCh
	r.NotNil(warned)

	_, err := h.Join(context.Background())
	r.NoError(err)
}

func TestHasMainThreadReflectsBindMainThread(t *testing.T) {
	r := require.New(t)

	c := NewContext()
	r.False(c.HasMainThread())
	c.BindMainThread()
	r.True(c.HasMainThread())
}
