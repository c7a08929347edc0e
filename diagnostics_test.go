package vsthreading

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *captureSink) Reportf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, format)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func TestUnjoinedFaultedTaskReportsToDiagnosticSink(t *testing.T) {
	r := require.New(t)

	sink := &captureSink{}
	c := NewContext(WithDiagnosticSink(sink))
	c.BindMainThread()
	f := c.CreateFactory(c.CreateCollection("k"), WithThreadPool(inlineScheduler{}))

	f.RunAsync(context.Background(), func(taskCtx context.Context) (any, error) {
		return nil, errors.New("boom")
	})

	require.Eventually(t, func() bool { return sink.count() > 0 }, time.Second, time.Millisecond)
	r.Equal(1, sink.count())
}

func TestJoinedFaultedTaskDoesNotReportToDiagnosticSink(t *testing.T) {
	r := require.New(t)

	sink := &captureSink{}
	c := NewContext(WithDiagnosticSink(sink))
	c.BindMainThread()
	f := c.CreateFactory(c.CreateCollection("k"), WithThreadPool(inlineScheduler{}))

	h := f.RunAsync(context.Background(), func(taskCtx context.Context) (any, error) {
		// Yield first so the body is still suspended, not yet finished, when
		// RunAsync returns below — otherwise it would race to complete
		// (joinRequested still false) before Join ever sets that flag.
		r.NoError(f.Yield(taskCtx))
		return nil, errors.New("boom")
	})
	_, err := h.Join(context.Background())
	r.Error(err)
	r.Equal(0, sink.count())
}
