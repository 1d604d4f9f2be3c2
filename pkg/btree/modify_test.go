package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modifyOpts() ModifyOptions {
	return ModifyOptions{
		KVChunkThreshold: 200,
		KPChunkThreshold: 200,
		Reduce:           countReduce,
		Rereduce:         countRereduce,
	}
}

// TestModifyRoundTrip pins property 1: inserting a sorted batch into an
// empty tree and folding it back returns exactly what was inserted, in
// order.
func TestModifyRoundTrip(t *testing.T) {
	tf := newMemTreeFile()
	root, err := Modify(tf, nil, insertBatch(0, 100), modifyOpts())
	require.NoError(t, err)
	require.NotNil(t, root)

	entries, err := collectEntries(tf, root)
	require.NoError(t, err)
	require.Len(t, entries, 100)
	for i, e := range entries {
		assert.Equal(t, testKey(i), e.Key)
		assert.Equal(t, testValue(i), e.Value)
	}
}

// TestModifyEmptyActionsIsNoop pins property 2.
func TestModifyEmptyActionsIsNoop(t *testing.T) {
	tf := newMemTreeFile()
	root, err := Modify(tf, nil, insertBatch(0, 100), modifyOpts())
	require.NoError(t, err)

	sizeBefore := tf.size()
	root2, err := Modify(tf, root, nil, modifyOpts())
	require.NoError(t, err)

	assert.Same(t, root, root2)
	assert.Equal(t, sizeBefore, tf.size())
}

// TestModifySplitThreshold pins property 6: no persisted node exceeds its
// level's threshold once it holds more than one entry.
func TestModifySplitThreshold(t *testing.T) {
	tf := newMemTreeFile()
	opts := modifyOpts()
	root, err := Modify(tf, nil, insertBatch(0, 100), opts)
	require.NoError(t, err)

	var walk func(ptr Pointer) error
	walk = func(ptr Pointer) error {
		raw, err := tf.ReadChunk(ptr.Offset)
		if err != nil {
			return err
		}
		node, err := Decode(raw)
		if err != nil {
			return err
		}
		switch node.Kind {
		case KindKV:
			if len(node.Entries) > 1 {
				assert.LessOrEqual(t, len(raw), opts.KVChunkThreshold)
			}
		case KindKP:
			if len(node.Children) > 1 {
				assert.LessOrEqual(t, len(raw), opts.KPChunkThreshold)
			}
			for _, c := range node.Children {
				if err := walk(c.Ptr); err != nil {
					return err
				}
			}
		}
		return nil
	}
	require.NoError(t, walk(*root))
}

// TestModifyRemovePreservesUnaffectedLeaves pins property 3 / scenario E2:
// removing one key rewrites only the spine to its leaf; every other node
// offset is shared between the old and new root.
func TestModifyRemovePreservesUnaffectedLeaves(t *testing.T) {
	tf := newMemTreeFile()
	opts := modifyOpts()
	root1, err := Modify(tf, nil, insertBatch(0, 100), opts)
	require.NoError(t, err)

	offsetsBefore, err := collectOffsets(tf, root1)
	require.NoError(t, err)
	beforeSet := make(map[int64]bool, len(offsetsBefore))
	for _, o := range offsetsBefore {
		beforeSet[o] = true
	}

	root2, err := Modify(tf, root1, []Action{{Type: ActionRemove, Key: testKey(42)}}, opts)
	require.NoError(t, err)

	offsetsAfter, err := collectOffsets(tf, root2)
	require.NoError(t, err)

	// The 100-key fixture is one root over seven leaves. Only the spine
	// down to K42's leaf is rewritten: the new root and that one leaf are
	// freshly appended, and every other offset reachable from root2 was
	// already reachable from root1.
	shared := 0
	for _, o := range offsetsAfter {
		if beforeSet[o] {
			shared++
		}
	}
	assert.Equal(t, len(offsetsAfter)-2, shared, "removing one key should rewrite only the root and the leaf that held it")

	entries, err := collectEntries(tf, root2)
	require.NoError(t, err)
	require.Len(t, entries, 99)
	for _, e := range entries {
		assert.NotEqual(t, testKey(42), e.Key)
	}
}

// TestModifyEqualKeyInputOrderWins pins scenario E5.
func TestModifyEqualKeyInputOrderWins(t *testing.T) {
	tf := newMemTreeFile()
	opts := modifyOpts()
	root, err := Modify(tf, nil, insertBatch(0, 100), opts)
	require.NoError(t, err)

	batch := []Action{
		{Type: ActionInsert, Key: testKey(50), Value: []byte("V50'")},
		{Type: ActionRemove, Key: testKey(50)},
		{Type: ActionInsert, Key: testKey(50), Value: []byte("V50''")},
	}
	root2, err := Modify(tf, root, batch, opts)
	require.NoError(t, err)

	var got []byte
	found := false
	err = Lookup(tf, root2, [][]byte{testKey(50)}, LookupOptions{
		Fetch: func(key, value []byte) error {
			found = true
			got = append([]byte(nil), value...)
			return nil
		},
	})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("V50''"), got)
}

// TestModifyFetchObservesInterimState exercises the fetch-during-modify
// contract directly: a FETCH interleaved between an INSERT and a REMOVE of
// the same key observes the value as of that point in the batch.
func TestModifyFetchObservesInterimState(t *testing.T) {
	tf := newMemTreeFile()
	opts := modifyOpts()

	var seenValue []byte
	var seenFound bool
	opts.Fetch = func(key, value []byte, found bool, arg any) error {
		seenValue = append([]byte(nil), value...)
		seenFound = found
		return nil
	}

	batch := []Action{
		{Type: ActionInsert, Key: testKey(1), Value: []byte("first")},
		{Type: ActionFetch, Key: testKey(1)},
		{Type: ActionRemove, Key: testKey(1)},
	}
	_, err := Modify(tf, nil, batch, opts)
	require.NoError(t, err)
	assert.True(t, seenFound)
	assert.Equal(t, []byte("first"), seenValue)
}

// TestModifyReduceConsistency pins property 4 for the count reduce: the
// root's reduce value (computed bottom-up) equals the number of live
// entries.
func TestModifyReduceConsistency(t *testing.T) {
	tf := newMemTreeFile()
	opts := modifyOpts()
	root, err := Modify(tf, nil, insertBatch(0, 100), opts)
	require.NoError(t, err)

	require.NotEmpty(t, root.Reduce)
	assert.Equal(t, uint32(100), countOf(root.Reduce))

	root2, err := Modify(tf, root, []Action{{Type: ActionRemove, Key: testKey(42)}}, opts)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), countOf(root2.Reduce))
}

// TestModifyOnFlushReportsEveryAppendedNode confirms the OnFlush hook fires
// once per node actually written, with each node's serialized size.
func TestModifyOnFlushReportsEveryAppendedNode(t *testing.T) {
	tf := newMemTreeFile()
	opts := modifyOpts()

	var flushedBytes []int
	opts.OnFlush = func(n int) { flushedBytes = append(flushedBytes, n) }

	root, err := Modify(tf, nil, insertBatch(0, 100), opts)
	require.NoError(t, err)
	require.NotEmpty(t, flushedBytes)

	var total int64
	for _, n := range flushedBytes {
		total += int64(n)
	}
	assert.Equal(t, root.SubtreeSize, total, "every appended node's bytes should sum to the root's reported subtree size")
}

// TestModifyEmptyTreeAllRemoved exercises the "whole subtree deleted"
// output-zero-pointers path collapsing the root to nil.
func TestModifyEmptyTreeAllRemoved(t *testing.T) {
	tf := newMemTreeFile()
	opts := modifyOpts()
	root, err := Modify(tf, nil, insertBatch(0, 5), opts)
	require.NoError(t, err)

	removeAll := make([]Action, 0, 5)
	for i := 0; i < 5; i++ {
		removeAll = append(removeAll, Action{Type: ActionRemove, Key: testKey(i)})
	}
	root2, err := Modify(tf, root, removeAll, opts)
	require.NoError(t, err)
	assert.Nil(t, root2)
}
