package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/pkg/cache"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := cache.Open(context.Background(), cache.Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestAddRootRejectsNonDirectory(t *testing.T) {
	c := newTestCache(t)
	s := New(c)
	ctx := context.Background()

	file := filepath.Join(t.TempDir(), "notadir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := s.AddRoot(ctx, file)
	require.Error(t, err)
}

func TestAddRootRejectsDuplicate(t *testing.T) {
	c := newTestCache(t)
	s := New(c)
	ctx := context.Background()

	dir := t.TempDir()
	_, err := s.AddRoot(ctx, dir)
	require.NoError(t, err)

	_, err = s.AddRoot(ctx, dir)
	require.Error(t, err)
}

func TestDelRootRejectsUntrackedPath(t *testing.T) {
	c := newTestCache(t)
	s := New(c)
	ctx := context.Background()

	err := s.DelRoot(ctx, t.TempDir())
	require.Error(t, err)
}

func TestDelRootRejectsNonRoot(t *testing.T) {
	c := newTestCache(t)
	s := New(c)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "child.txt"), []byte("a"), 0o644))

	root, err := s.AddRoot(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Scan(ctx, false, nil))

	children, err := c.ChildrenOf(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)

	err = s.DelRoot(ctx, filepath.Join(dir, "child.txt"))
	require.Error(t, err)
}

func TestScanDiscoversNestedTree(t *testing.T) {
	c := newTestCache(t)
	s := New(c)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), []byte("nested"), 0o644))

	root, err := s.AddRoot(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Scan(ctx, false, nil))

	children, err := c.ChildrenOf(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)

	var subID int64
	for _, child := range children {
		if filepath.Base(string(child.Path)) == "sub" {
			subID = child.ID
		}
	}
	require.NotZero(t, subID)

	grandchildren, err := c.ChildrenOf(ctx, subID)
	require.NoError(t, err)
	require.Len(t, grandchildren, 1)
	require.Equal(t, "nested.txt", filepath.Base(string(grandchildren[0].Path)))
}

func TestScanSecondPassIsNoOpWhenUnchanged(t *testing.T) {
	c := newTestCache(t)
	s := New(c)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	root, err := s.AddRoot(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Scan(ctx, false, nil))

	require.NoError(t, c.SetObject(ctx, root.ID, []byte{0x01}))
	children, err := c.ChildrenOf(ctx, root.ID)
	require.NoError(t, err)
	require.NoError(t, c.SetObject(ctx, children[0].ID, []byte{0x02}))

	require.NoError(t, s.Scan(ctx, false, nil))

	refetchedRoot, err := c.GetFSEntry(ctx, root.ID)
	require.NoError(t, err)
	require.NotNil(t, refetchedRoot.ObjID)

	refetchedChild, err := c.GetFSEntry(ctx, children[0].ID)
	require.NoError(t, err)
	require.NotNil(t, refetchedChild.ObjID)
}

func TestScanDetectsModifiedFileAndInvalidatesAncestors(t *testing.T) {
	c := newTestCache(t)
	s := New(c)
	ctx := context.Background()

	dir := t.TempDir()
	filePath := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("a"), 0o644))

	root, err := s.AddRoot(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Scan(ctx, false, nil))

	children, err := c.ChildrenOf(ctx, root.ID)
	require.NoError(t, err)
	require.NoError(t, c.SetObject(ctx, root.ID, []byte{0x01}))
	require.NoError(t, c.SetObject(ctx, children[0].ID, []byte{0x02}))

	require.NoError(t, os.WriteFile(filePath, []byte("a much longer replacement body"), 0o644))

	require.NoError(t, s.Scan(ctx, false, nil))

	refetchedChild, err := c.GetFSEntry(ctx, children[0].ID)
	require.NoError(t, err)
	require.Nil(t, refetchedChild.ObjID)

	refetchedRoot, err := c.GetFSEntry(ctx, root.ID)
	require.NoError(t, err)
	require.Nil(t, refetchedRoot.ObjID)
}

func TestScanDeletesVanishedEntry(t *testing.T) {
	c := newTestCache(t)
	s := New(c)
	ctx := context.Background()

	dir := t.TempDir()
	filePath := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))

	root, err := s.AddRoot(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Scan(ctx, false, nil))

	children, err := c.ChildrenOf(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)

	require.NoError(t, os.Remove(filePath))
	require.NoError(t, s.Scan(ctx, false, nil))

	children, err = c.ChildrenOf(ctx, root.ID)
	require.NoError(t, err)
	require.Empty(t, children)
}

func TestScanReparentsNestedRoot(t *testing.T) {
	c := newTestCache(t)
	s := New(c)
	ctx := context.Background()

	parent := t.TempDir()
	nestedRoot := filepath.Join(parent, "nested")
	require.NoError(t, os.Mkdir(nestedRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nestedRoot, "f.txt"), []byte("x"), 0o644))

	nestedEntry, err := s.AddRoot(ctx, nestedRoot)
	require.NoError(t, err)
	require.NoError(t, s.Scan(ctx, false, nil))

	_, err = s.AddRoot(ctx, parent)
	require.NoError(t, err)
	require.NoError(t, s.Scan(ctx, false, nil))

	refetched, err := c.GetFSEntry(ctx, nestedEntry.ID)
	require.NoError(t, err)
	require.NotNil(t, refetched.ParentID)
}

func TestScanOnlyNewSkipsReStatOfExisting(t *testing.T) {
	c := newTestCache(t)
	s := New(c)
	ctx := context.Background()

	dir := t.TempDir()
	filePath := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("a"), 0o644))

	root, err := s.AddRoot(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Scan(ctx, false, nil))

	children, err := c.ChildrenOf(ctx, root.ID)
	require.NoError(t, err)
	require.NoError(t, c.SetObject(ctx, children[0].ID, []byte{0x02}))

	require.NoError(t, os.WriteFile(filePath, []byte("changed"), 0o644))
	require.NoError(t, s.Scan(ctx, true, nil))

	refetched, err := c.GetFSEntry(ctx, children[0].ID)
	require.NoError(t, err)
	require.NotNil(t, refetched.ObjID)
}
