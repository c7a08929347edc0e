package vsthreading

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompletionPromiseResolveThenWait(t *testing.T) {
	r := require.New(t)

	p := newCompletionPromise()
	r.False(p.isDone())

	_, _, ok := p.TryGet()
	r.False(ok)

	p.resolve(42, nil)

	result, err := p.Wait()
	r.NoError(err)
	r.Equal(42, result)
	r.True(p.isDone())
}

func TestCompletionPromiseResolveWithError(t *testing.T) {
	r := require.New(t)

	wantErr := errors.New("boom")
	p := newCompletionPromise()
	p.resolve(nil, wantErr)

	result, err, ok := p.TryGet()
	r.True(ok)
	r.Nil(result)
	r.ErrorIs(err, wantErr)
}
