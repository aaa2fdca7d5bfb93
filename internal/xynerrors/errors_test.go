package xynerrors

import (
	"errors"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundSatisfiesErrdefsIsNotFound(t *testing.T) {
	err := NotFound("run %s not found", "run-123")
	assert.True(t, errdefs.IsNotFound(err))
	assert.True(t, IsNotFound(err))
}

func TestConflictCarriesItsKind(t *testing.T) {
	err := Conflict(KindPackAlreadyInstalled, "pack %s already installed", "demo@1.0.0")
	assert.Equal(t, KindPackAlreadyInstalled, KindOf(err))
	assert.True(t, IsConflict(err))
}

func TestWrapPreservesUnderlyingChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindMigrationApplyFailed, errdefs.ErrUnknown, cause)

	assert.True(t, errors.Is(err, cause), "Wrap() should preserve the wrapped error in the Unwrap chain")
	assert.Equal(t, KindMigrationApplyFailed, KindOf(err))
}

func TestAsExtractsTaggedError(t *testing.T) {
	err := InvalidArgument(KindStepHandlerError, "bad input")
	tagged, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindStepHandlerError, tagged.Kind)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestKindOfReturnsEmptyForUntaggedError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
