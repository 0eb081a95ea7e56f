package store

import (
	"context"
	"testing"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/Harshitk-cp/cogserver/internal/truthvalue"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// sampleTable builds cat -> mammal -> animal plus a set link.
func sampleTable(t *testing.T) (*atomspace.Table, []atomspace.Handle) {
	t.Helper()
	table := atomspace.NewTable(zap.NewNop())
	var hs []atomspace.Handle
	for _, name := range []string{"cat", "mammal", "animal"} {
		h, _, err := table.AddNode(atomspace.TypeConceptNode, name, truthvalue.NewSimple(0.2, 10))
		require.NoError(t, err)
		hs = append(hs, h)
	}
	l1, _, err := table.AddLink(atomspace.TypeInheritanceLink, []atomspace.Handle{hs[0], hs[1]}, truthvalue.NewSimple(0.9, 40))
	require.NoError(t, err)
	l2, _, err := table.AddLink(atomspace.TypeInheritanceLink, []atomspace.Handle{hs[1], hs[2]}, truthvalue.NewIndefinite(0.7, 0.9, 0.9))
	require.NoError(t, err)
	set, _, err := table.AddLink(atomspace.TypeSetLink, []atomspace.Handle{l2, l1}, nil)
	require.NoError(t, err)
	return table, append(hs, l1, l2, set)
}

func openMemCache(t *testing.T) *CacheStorage {
	t.Helper()
	c, err := OpenCache(CacheConfig{Path: InMemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := openMemCache(t)
	src, _ := sampleTable(t)
	require.NoError(t, c.Store(ctx, src))

	dst := atomspace.NewTable(zap.NewNop())
	require.NoError(t, c.Load(ctx, dst))
	if diff := cmp.Diff(src.Snapshot(), dst.Snapshot()); diff != "" {
		t.Errorf("loaded table differs (-stored +loaded):\n%s", diff)
	}

	// Loading the same data again merges into identical atoms.
	require.NoError(t, c.Load(ctx, dst))
	assert.Equal(t, src.Size(), dst.Size())
}

func TestCacheStoreDropsRemovedAtoms(t *testing.T) {
	ctx := context.Background()
	c := openMemCache(t)
	src, hs := sampleTable(t)
	require.NoError(t, c.Store(ctx, src))

	require.NoError(t, src.Remove(hs[5], false))
	require.NoError(t, c.Store(ctx, src))

	dst := atomspace.NewTable(zap.NewNop())
	require.NoError(t, c.Load(ctx, dst))
	assert.Equal(t, 5, dst.Size())
	assert.False(t, dst.IsValid(hs[5]))
}

func TestCacheLoadConflict(t *testing.T) {
	ctx := context.Background()
	c := openMemCache(t)
	src, _ := sampleTable(t)
	require.NoError(t, c.Store(ctx, src))

	dst := atomspace.NewTable(zap.NewNop())
	_, _, err := dst.AddNode(atomspace.TypeConceptNode, "dog", nil)
	require.NoError(t, err)

	err = c.Load(ctx, dst)
	assert.True(t, errors.Is(err, atomspace.ErrConcurrentAccess))
	assert.Equal(t, 1, dst.Size(), "a failed load leaves the table untouched")
}

func TestCachePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src, _ := sampleTable(t)

	c, err := OpenCache(CacheConfig{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, c.Store(ctx, src))
	require.NoError(t, c.Close())

	c, err = OpenCache(CacheConfig{Path: dir})
	require.NoError(t, err)
	defer c.Close()

	dst := atomspace.NewTable(zap.NewNop())
	require.NoError(t, c.Load(ctx, dst))
	assert.Empty(t, cmp.Diff(src.Snapshot(), dst.Snapshot()))
}

func TestCacheClosed(t *testing.T) {
	c, err := OpenCache(CacheConfig{Path: InMemoryPath})
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	table := atomspace.NewTable(zap.NewNop())
	assert.ErrorIs(t, c.Load(context.Background(), table), ErrClosed)
	assert.ErrorIs(t, c.Store(context.Background(), table), ErrClosed)
}

func TestOpenCacheRequiresPath(t *testing.T) {
	_, err := OpenCache(CacheConfig{})
	assert.Error(t, err)
}

func TestAtomKeyOrdersByHandle(t *testing.T) {
	a := atomKey(atomspace.RealHandleOffset)
	b := atomKey(atomspace.RealHandleOffset + 256)
	assert.Less(t, string(a), string(b))
	assert.Len(t, a, len(atomPrefix)+8)
}
