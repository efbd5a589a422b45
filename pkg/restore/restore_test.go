package restore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/pkg/cache"
	"github.com/coldvault/coldvault/pkg/codec"
	"github.com/coldvault/coldvault/pkg/cryptoframe"
	"github.com/coldvault/coldvault/pkg/repository"
	"github.com/coldvault/coldvault/pkg/store/local"
)

func newTestRepo(t *testing.T) *repository.Repository {
	t.Helper()
	ctx := context.Background()

	c, err := cache.Open(ctx, cache.Config{Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	s, err := local.New(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)

	return repository.New(c, s, nil, cryptoframe.Options{Compress: true})
}

func TestRestoreInlineFile(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	payload, err := codec.EncodeInode(codec.InodeInfo{Mode: 0o644, Size: 5}, []byte("hello"), nil)
	require.NoError(t, err)
	obj, err := repo.PushObject(ctx, codec.TypeInode, payload, nil)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out.txt")
	r := New(repo)
	require.NoError(t, r.Restore(ctx, obj.ObjID, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestRestoreChunkedFile(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	blobA, err := codec.EncodeBlob([]byte("AAAA"))
	require.NoError(t, err)
	objA, err := repo.PushObject(ctx, codec.TypeBlob, blobA, nil)
	require.NoError(t, err)

	blobB, err := codec.EncodeBlob([]byte("BBBB"))
	require.NoError(t, err)
	objB, err := repo.PushObject(ctx, codec.TypeBlob, blobB, nil)
	require.NoError(t, err)

	inodePayload, err := codec.EncodeInode(codec.InodeInfo{Mode: 0o644, Size: 8}, nil, []codec.ChunkRef{
		{Offset: 0, ObjID: objA.ObjID},
		{Offset: 4, ObjID: objB.ObjID},
	})
	require.NoError(t, err)
	obj, err := repo.PushObject(ctx, codec.TypeInode, inodePayload, []repository.ChildRef{
		{ObjID: objA.ObjID}, {ObjID: objB.ObjID},
	})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "chunked.bin")
	r := New(repo)
	require.NoError(t, r.Restore(ctx, obj.ObjID, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "AAAABBBB", string(data))
}

func TestRestoreDirectoryTree(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	filePayload, err := codec.EncodeInode(codec.InodeInfo{Mode: 0o644, Size: 3}, []byte("hi!"), nil)
	require.NoError(t, err)
	fileObj, err := repo.PushObject(ctx, codec.TypeInode, filePayload, nil)
	require.NoError(t, err)

	treePayload, err := codec.EncodeTree(codec.TreeInfo{Mode: 0o755}, []codec.TreeEntry{
		{Name: []byte("greeting.txt"), ChildObjID: fileObj.ObjID},
	})
	require.NoError(t, err)
	treeObj, err := repo.PushObject(ctx, codec.TypeTree, treePayload, []repository.ChildRef{
		{ObjID: fileObj.ObjID, Name: []byte("greeting.txt")},
	})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "restored")
	r := New(repo)
	require.NoError(t, r.Restore(ctx, treeObj.ObjID, dest))

	data, err := os.ReadFile(filepath.Join(dest, "greeting.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi!", string(data))
}

func TestRestoreSymlink(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	payload, err := codec.EncodeSymlink(codec.TreeInfo{Mode: 0o777}, []byte("/etc/hosts"))
	require.NoError(t, err)
	obj, err := repo.PushObject(ctx, codec.TypeSymlink, payload, nil)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "link")
	r := New(repo)
	require.NoError(t, r.Restore(ctx, obj.ObjID, dest))

	target, err := os.Readlink(dest)
	require.NoError(t, err)
	require.Equal(t, "/etc/hosts", target)
}

func TestRestoreCorruptedObjectIsSkippedNotFatal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	dest := filepath.Join(t.TempDir(), "missing.txt")
	r := New(repo)
	// No object exists at this address: restore logs and returns nil
	// rather than failing the whole operation.
	err := r.Restore(ctx, []byte{0x01, 0x02, 0x03, 0x04}, dest)
	require.NoError(t, err)

	_, statErr := os.Stat(dest)
	require.True(t, os.IsNotExist(statErr))
}

func TestRestoreSkipsUnbackedUpChildButContinuesSiblings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	filePayload, err := codec.EncodeInode(codec.InodeInfo{Mode: 0o644, Size: 2}, []byte("ok"), nil)
	require.NoError(t, err)
	fileObj, err := repo.PushObject(ctx, codec.TypeInode, filePayload, nil)
	require.NoError(t, err)

	missingChild := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	treePayload, err := codec.EncodeTree(codec.TreeInfo{Mode: 0o755}, []codec.TreeEntry{
		{Name: []byte("missing"), ChildObjID: missingChild},
		{Name: []byte("present.txt"), ChildObjID: fileObj.ObjID},
	})
	require.NoError(t, err)
	treeObj, err := repo.PushObject(ctx, codec.TypeTree, treePayload, nil)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "restored")
	r := New(repo)
	require.NoError(t, r.Restore(ctx, treeObj.ObjID, dest))

	data, err := os.ReadFile(filepath.Join(dest, "present.txt"))
	require.NoError(t, err)
	require.Equal(t, "ok", string(data))

	_, statErr := os.Stat(filepath.Join(dest, "missing"))
	require.True(t, os.IsNotExist(statErr))
}
