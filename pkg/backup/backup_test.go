package backup

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/pkg/cache"
	"github.com/coldvault/coldvault/pkg/cryptoframe"
	"github.com/coldvault/coldvault/pkg/repository"
	"github.com/coldvault/coldvault/pkg/scanner"
	"github.com/coldvault/coldvault/pkg/store/local"
)

type fixture struct {
	cache    *cache.Cache
	repo     *repository.Repository
	scanner  *scanner.Scanner
	pipeline *Pipeline
	root     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	c, err := cache.Open(ctx, cache.Config{Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	s, err := local.New(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)

	repo := repository.New(c, s, nil, cryptoframe.Options{Compress: true})
	sc := scanner.New(c)
	p := New(c, repo)

	return &fixture{cache: c, repo: repo, scanner: sc, pipeline: p, root: t.TempDir()}
}

func (f *fixture) scanAndBackup(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.scanner.Scan(ctx, false, nil))
	require.NoError(t, f.pipeline.Run(ctx, nil))
}

func TestRunRequiresScanFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.scanner.AddRoot(ctx, f.root)
	require.NoError(t, err)

	err = f.pipeline.Run(ctx, nil)
	require.ErrorIs(t, err, ErrNeedsScan)
}

func TestBackupSmallInlineFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(f.root, "small.txt"), []byte("hello world"), 0o644))

	_, err := f.scanner.AddRoot(ctx, f.root)
	require.NoError(t, err)
	f.scanAndBackup(t)

	n, err := f.cache.CountDirtyFSEntries(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	snaps, err := f.cache.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, []byte(f.root), snaps[0].Path)
}

func TestBackupLargeChunkedFileDedupesIdenticalChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chunk := bytes.Repeat([]byte{0xAB}, 1<<20)
	data := append(append([]byte{}, chunk...), chunk...)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "big.bin"), data, 0o644))

	_, err := f.scanner.AddRoot(ctx, f.root)
	require.NoError(t, err)
	f.scanAndBackup(t)

	entry, err := f.cache.GetFSEntryByPath(ctx, []byte(filepath.Join(f.root, "big.bin")))
	require.NoError(t, err)
	require.NotNil(t, entry.ObjID)

	payload, err := f.repo.GetObject(ctx, entry.ObjID)
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	n, err := f.cache.CountObjects(ctx)
	require.NoError(t, err)
	// Both 1MiB chunks are identical, so content addressing collapses them
	// to one blob object plus the inode and the directory tree: 3 total.
	require.EqualValues(t, 3, n)
}

func TestBackupDirectoryTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, os.Mkdir(filepath.Join(f.root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "sub", "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "sub", "b.txt"), []byte("b"), 0o644))

	_, err := f.scanner.AddRoot(ctx, f.root)
	require.NoError(t, err)
	f.scanAndBackup(t)

	root, err := f.cache.GetFSEntryByPath(ctx, []byte(f.root))
	require.NoError(t, err)
	require.NotNil(t, root.ObjID)

	sub, err := f.cache.GetFSEntryByPath(ctx, []byte(filepath.Join(f.root, "sub")))
	require.NoError(t, err)
	require.NotNil(t, sub.ObjID)

	rels, err := f.cache.ChildrenOfObject(ctx, sub.ObjID)
	require.NoError(t, err)
	require.Len(t, rels, 2)
}

func TestBackupUnsupportedFileTypeIsSkippedAndRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fifoPath := filepath.Join(f.root, "fifo")
	if err := mkfifo(fifoPath); err != nil {
		t.Skipf("mkfifo unsupported on this platform: %v", err)
	}

	_, err := f.scanner.AddRoot(ctx, f.root)
	require.NoError(t, err)
	f.scanAndBackup(t)

	_, err = f.cache.GetFSEntryByPath(ctx, []byte(fifoPath))
	require.Error(t, err)
}

func TestBackupEntryDisappearedMidRunIsDeletedNotFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := filepath.Join(f.root, "ghost.txt")
	require.NoError(t, os.WriteFile(path, []byte("temporary"), 0o644))

	_, err := f.scanner.AddRoot(ctx, f.root)
	require.NoError(t, err)
	require.NoError(t, f.scanner.Scan(ctx, false, nil))

	entry, err := f.cache.GetFSEntryByPath(ctx, []byte(path))
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	require.NoError(t, f.pipeline.backupEntry(ctx, entry.ID))

	_, err = f.cache.GetFSEntryByPath(ctx, []byte(path))
	require.Error(t, err)
}
