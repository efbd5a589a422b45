package gc

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/pkg/cache"
	"github.com/coldvault/coldvault/pkg/codec"
	"github.com/coldvault/coldvault/pkg/cryptoframe"
	"github.com/coldvault/coldvault/pkg/repository"
	"github.com/coldvault/coldvault/pkg/store/local"
)

type testEnv struct {
	cache *cache.Cache
	repo  *repository.Repository
	gc    *Collector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	c, err := cache.Open(ctx, cache.Config{Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	s, err := local.New(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)

	repo := repository.New(c, s, nil, cryptoframe.Options{Compress: true})
	return &testEnv{cache: c, repo: repo, gc: New(c, s)}
}

func pushBlob(t *testing.T, env *testEnv, content string) []byte {
	t.Helper()
	payload, err := codec.EncodeBlob([]byte(content))
	require.NoError(t, err)
	obj, err := env.repo.PushObject(context.Background(), codec.TypeBlob, payload, nil)
	require.NoError(t, err)
	return obj.ObjID
}

func pushTree(t *testing.T, env *testEnv, entries map[string][]byte) []byte {
	t.Helper()
	var treeEntries []codec.TreeEntry
	var refs []repository.ChildRef
	for name, childID := range entries {
		treeEntries = append(treeEntries, codec.TreeEntry{Name: []byte(name), ChildObjID: childID})
		refs = append(refs, repository.ChildRef{ObjID: childID, Name: []byte(name)})
	}
	payload, err := codec.EncodeTree(codec.TreeInfo{}, treeEntries)
	require.NoError(t, err)
	obj, err := env.repo.PushObject(context.Background(), codec.TypeTree, payload, refs)
	require.NoError(t, err)
	return obj.ObjID
}

// runUntilCount runs GC sweeps until the object count drops to want or a
// bound on attempts is reached, reflecting spec.md §4.8's "not all garbage
// is collected in one run" guarantee: each sweep only needs to catch
// garbage with high, not total, probability.
func runUntilCount(t *testing.T, env *testEnv, want int64, maxAttempts int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < maxAttempts; i++ {
		_, err := env.gc.Run(ctx, nil)
		require.NoError(t, err)

		n, err := env.cache.CountObjects(ctx)
		require.NoError(t, err)
		if n == want {
			return
		}
	}
	n, err := env.cache.CountObjects(ctx)
	require.NoError(t, err)
	require.Equal(t, want, n, "did not converge to expected object count within %d sweeps", maxAttempts)
}

func TestRunDoesNotCollectReachableObjects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root := pushBlob(t, env, "reachable")
	_, err := env.repo.PutSnapshot(ctx, []byte("/data"), root, 1700000000, "snap-1")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := env.gc.Run(ctx, nil)
		require.NoError(t, err)
	}

	n, err := env.cache.CountObjects(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestRunEventuallyCollectsUnreferencedObject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root := pushBlob(t, env, "reachable")
	_, err := env.repo.PutSnapshot(ctx, []byte("/data"), root, 1700000000, "snap-1")
	require.NoError(t, err)

	pushBlob(t, env, "orphan, never referenced by any snapshot")

	runUntilCount(t, env, 1, 50)
}

// TestGCPreservesSharedSubtreeAfterOneSnapshotDeleted mirrors spec.md §8's
// S5 scenario: two trees sharing sub-objects, one snapshot deleted. Only
// the deleted snapshot's exclusive descendants may ever be collected; the
// shared and still-reachable subtrees must survive every sweep.
func TestGCPreservesSharedSubtreeAfterOneSnapshotDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d := pushBlob(t, env, "D")
	e := pushBlob(t, env, "E")
	b := pushTree(t, env, map[string][]byte{"d": d, "e": e})

	f := pushBlob(t, env, "F")
	c := pushTree(t, env, map[string][]byte{"f": f})

	a := pushTree(t, env, map[string][]byte{"b": b, "c": c})

	i := pushBlob(t, env, "I")
	j := pushBlob(t, env, "J")
	h := pushTree(t, env, map[string][]byte{"i": i, "j": j})

	g := pushTree(t, env, map[string][]byte{"b": b, "h": h})

	snapA, err := env.repo.PutSnapshot(ctx, []byte("/a"), a, 1700000000, "snap-a")
	require.NoError(t, err)
	_, err = env.repo.PutSnapshot(ctx, []byte("/g"), g, 1700000001, "snap-g")
	require.NoError(t, err)

	totalBefore, err := env.cache.CountObjects(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 10, totalBefore) // a,b,c,d,e,f,g,h,i,j

	require.NoError(t, env.cache.DeleteSnapshot(ctx, snapA.ID))

	// a, c, and f (only reachable via c) are now unreachable. Only those
	// three should ever be removed; everything reachable from g's surviving
	// snapshot must always survive.
	survivors := [][]byte{b, d, e, g, h, i, j}

	for attempt := 0; attempt < 50; attempt++ {
		_, err := env.gc.Run(ctx, nil)
		require.NoError(t, err)

		for _, objID := range survivors {
			obj, err := env.cache.GetObject(ctx, objID)
			require.NoError(t, err, "a reachable object was collected")
			require.NotNil(t, obj)
		}

		n, err := env.cache.CountObjects(ctx)
		require.NoError(t, err)
		if n == int64(len(survivors)) {
			return
		}
	}

	n, err := env.cache.CountObjects(ctx)
	require.NoError(t, err)
	require.EqualValues(t, len(survivors), n, "a and c (and f, only reachable via c) were not fully collected")
}

func TestRunOnEmptyRepositoryIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	stats, err := env.gc.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, stats.ObjectsRemoved)
}
