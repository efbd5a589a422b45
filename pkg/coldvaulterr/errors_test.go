package coldvaulterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeTransientIO, "uploading object", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, CodeTransientIO, CodeOf(err))
}

func TestIsTransient(t *testing.T) {
	require.True(t, IsTransient(New(CodeTransientIO, "retry me")))
	require.True(t, IsTransient(New(CodeFilesystemTransient, "entry vanished")))
	require.False(t, IsTransient(New(CodeCorruption, "bad hash")))
	require.False(t, IsTransient(errors.New("plain error")))
}

func TestIsCorruption(t *testing.T) {
	require.True(t, IsCorruption(ErrCorruptedRepository))
	require.False(t, IsCorruption(New(CodeNotFound, "no such object")))
}

func TestCodeString(t *testing.T) {
	require.Equal(t, "TransientIO", CodeTransientIO.String())
	require.Equal(t, "Corruption", CodeCorruption.String())
	require.Contains(t, Code(99).String(), "Unknown")
}
