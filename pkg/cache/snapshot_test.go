package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotLifecycle(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	root := []byte{0xAA}
	require.NoError(t, c.PutObject(ctx, &Object{ObjID: root, Type: "tree"}))

	snap, err := c.CreateSnapshot(ctx, []byte("/data"), root, 1700000000)
	require.NoError(t, err)

	fetched, err := c.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	require.Equal(t, root, fetched.RootID)

	list, err := c.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, c.DeleteSnapshot(ctx, snap.ID))

	list, err = c.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestChildrenOfObject(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	parent := []byte{0x01}
	child := []byte{0x02}
	require.NoError(t, c.PutObject(ctx, &Object{ObjID: parent, Type: "tree"}))
	require.NoError(t, c.PutObject(ctx, &Object{ObjID: child, Type: "inode"}))
	require.NoError(t, c.AddRelation(ctx, parent, child, []byte("notes.txt")))

	rels, err := c.ChildrenOfObject(ctx, parent)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.Equal(t, []byte("notes.txt"), rels[0].Name)
}
