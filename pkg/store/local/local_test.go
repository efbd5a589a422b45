package local

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/pkg/store"
)

func TestUploadDownloadRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	meta, err := s.Upload(ctx, "objects/ab/ab3456", strings.NewReader("payload"))
	require.NoError(t, err)
	require.EqualValues(t, len("payload"), meta.Size)
	require.NotEmpty(t, meta.SHA1)

	r, dlMeta, err := s.Download(ctx, "objects/ab/ab3456")
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, meta.Size, dlMeta.Size)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestDownloadMissingReturnsNotFound(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Download(context.Background(), "objects/zz/missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	err = s.Delete(context.Background(), "objects/zz/missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUploadOverwritesExisting(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Upload(ctx, "objects/ab/ab3456", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = s.Upload(ctx, "objects/ab/ab3456", strings.NewReader("second"))
	require.NoError(t, err)

	r, _, err := s.Download(ctx, "objects/ab/ab3456")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "second", string(data))
}

func TestListByPrefix(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Upload(ctx, "objects/ab/ab1111", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = s.Upload(ctx, "objects/ab/ab2222", strings.NewReader("b"))
	require.NoError(t, err)
	_, err = s.Upload(ctx, "objects/cd/cd3333", strings.NewReader("c"))
	require.NoError(t, err)

	names, err := s.List(ctx, "objects/ab")
	require.NoError(t, err)
	sort.Strings(names)
	require.Equal(t, []string{"objects/ab/ab1111", "objects/ab/ab2222"}, names)
}

func TestDeleteThenListExcludesObject(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Upload(ctx, "objects/ab/ab1111", strings.NewReader("a"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "objects/ab/ab1111"))

	names, err := s.List(ctx, "objects")
	require.NoError(t, err)
	require.Empty(t, names)
}

var _ store.Store = (*Store)(nil)
