package errs

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesChain(t *testing.T) {
	root := errors.New("boom")
	err := Wrapf(Wrap(root, "query case"), "case %s", "c-1")

	require.ErrorIs(t, err, root)
	assert.Equal(t, "case c-1: query case: boom", err.Error())
	assert.Equal(t, []string{"case c-1: query case: boom", "query case: boom", "boom"}, ErrorChainStrings(err))
	assert.Nil(t, Wrap(nil, "noop"))
}

func TestKindOfSentinel(t *testing.T) {
	sentinel := New(KindStaleState, "stale")
	wrapped := fmt.Errorf("accept case: %w", sentinel)

	assert.ErrorIs(t, wrapped, sentinel)
	assert.Equal(t, KindStaleState, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindStaleState))
	assert.False(t, IsKind(wrapped, KindInvalidTransition))
}

func TestMarkUsesOutermostKind(t *testing.T) {
	inner := New(KindNotFound, "missing")
	err := Mark(Wrap(inner, "load"), KindStoreUnavailable)

	assert.Equal(t, KindStoreUnavailable, KindOf(err))
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestIsKindInsideJoin(t *testing.T) {
	err := errors.Join(errors.New("other"), Unavailable(errors.New("dial tcp"), "query"))
	assert.True(t, IsKind(err, KindStoreUnavailable))
}

func TestLoggableIncludesKind(t *testing.T) {
	value := Loggable(Mark(errors.New("x"), KindUploadFailure)).LogValue()
	require.Equal(t, slog.KindGroup, value.Kind())

	found := false
	for _, attr := range value.Group() {
		if attr.Key == "kind" {
			found = true
			assert.Equal(t, string(KindUploadFailure), attr.Value.String())
		}
	}
	assert.True(t, found)
}

func TestUnavailableCapturesStackOnce(t *testing.T) {
	err := Unavailable(errors.New("connection refused"), "read case")
	require.True(t, IsKind(err, KindStoreUnavailable))

	var se *StackError
	require.True(t, errors.As(err, &se))
	require.NotEmpty(t, se.Stack())
	require.Same(t, se, mustStack(t, WithStack(se)))
}

func mustStack(t *testing.T, err error) *StackError {
	t.Helper()
	se, ok := err.(*StackError)
	require.True(t, ok)
	return se
}
