package btree

import (
	"encoding/binary"
	"fmt"
)

// testKey and testValue match the fixture shape used throughout the test
// suite: a 3-byte key "K%02d" and a 4-byte value "V%03d".
func testKey(i int) []byte   { return []byte(fmt.Sprintf("K%02d", i)) }
func testValue(i int) []byte { return []byte(fmt.Sprintf("V%03d", i)) }

// countReduce folds a leaf into a 4-byte big-endian entry count.
func countReduce(dst []byte, entries []KVEntry) (int, error) {
	binary.BigEndian.PutUint32(dst[:4], uint32(len(entries)))
	return 4, nil
}

// countRereduce sums child entry counts into a 4-byte big-endian total.
func countRereduce(dst []byte, values [][]byte) (int, error) {
	var sum uint32
	for _, v := range values {
		sum += binary.BigEndian.Uint32(v)
	}
	binary.BigEndian.PutUint32(dst[:4], sum)
	return 4, nil
}

func countOf(reduce []byte) uint32 { return binary.BigEndian.Uint32(reduce) }

// insertBatch builds a sorted run of ActionInsert entries for keys [from, to).
func insertBatch(from, to int) []Action {
	actions := make([]Action, 0, to-from)
	for i := from; i < to; i++ {
		actions = append(actions, Action{Type: ActionInsert, Key: testKey(i), Value: testValue(i)})
	}
	return actions
}

// collectOffsets walks every reachable node pointer from root via a full
// fold, in ascending tree order, recording the offset of every node a
// NodeCallback fires for plus the root itself.
func collectOffsets(tf TreeFile, root *Pointer) ([]int64, error) {
	if root == nil {
		return nil, nil
	}
	offsets := []int64{root.Offset}
	err := Lookup(tf, root, [][]byte{{}}, LookupOptions{
		Fold: true,
		Node: func(ptr Pointer) error {
			offsets = append(offsets, ptr.Offset)
			return nil
		},
	})
	return offsets, err
}

// collectEntries folds the full key range and returns every (key, value)
// pair in ascending tree order.
func collectEntries(tf TreeFile, root *Pointer) ([]KVEntry, error) {
	if root == nil {
		return nil, nil
	}
	var out []KVEntry
	err := Lookup(tf, root, [][]byte{{}}, LookupOptions{
		Fold: true,
		Fetch: func(key, value []byte) error {
			out = append(out, KVEntry{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
			return nil
		},
	})
	return out, err
}
