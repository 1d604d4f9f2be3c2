package btree

import "bytes"

// Default chunk-size thresholds, in serialized bytes, matching couchstore's
// DB_KV_CHUNK_THRESHOLD / DB_KP_CHUNK_THRESHOLD.
const (
	DefaultKVChunkThreshold = 1279
	DefaultKPChunkThreshold = 1279

	// MaxReduceSize bounds a reduce value, matching MAX_REDUCTION_SIZE.
	MaxReduceSize = (1 << 16) - 1

	maxKeyLen   = (1 << 12) - 1 // 12-bit key_len field
	maxValueLen = (1 << 28) - 1 // 28-bit value_len field
	maxOffset   = (1 << 48) - 1
	maxSubtree  = (1 << 48) - 1
)

// Kind distinguishes a KP (interior) node from a KV (leaf) node.
type Kind uint8

const (
	KindKP Kind = 0 // interior: (last_key_in_subtree, pointer) entries
	KindKV Kind = 1 // leaf: (key, value) entries
)

const (
	tagKP byte = 0x00
	tagKV byte = 0x01
)

// Pointer is a persistent descriptor of a subtree: its offset in the
// tree_file, the total live byte size of everything reachable through it,
// and an opaque reduce value summarizing its contents. Pointers are the
// entries of interior nodes and are also returned as the root of any tree.
type Pointer struct {
	Offset      int64
	SubtreeSize int64
	Reduce      []byte
}

// KVEntry is a single (key, value) pair held by a leaf node.
type KVEntry struct {
	Key   []byte
	Value []byte
}

// KPEntry is a single (last_key_in_subtree, pointer) pair held by an
// interior node.
type KPEntry struct {
	Key []byte
	Ptr Pointer
}

// Node is the decoded, in-memory form of one on-disk node. Entries/Children
// borrow slices from the buffer Decode was given; callers that need them to
// outlive that buffer must copy (see Arena.Dup).
type Node struct {
	Kind     Kind
	Entries  []KVEntry // valid when Kind == KindKV
	Children []KPEntry // valid when Kind == KindKP
}

// CompareFunc orders two opaque keys the same way bytes.Compare does:
// negative if a < b, zero if equal, positive if a > b. Must be pure and
// reentrant; the engine never mutates the slices it passes in.
type CompareFunc func(a, b []byte) int

// ReduceFunc folds a leaf's entries into a reduce value written to dst,
// returning the number of bytes written. dst has capacity MaxReduceSize;
// the returned length must not exceed it.
type ReduceFunc func(dst []byte, entries []KVEntry) (int, error)

// RereduceFunc folds a set of child reduce values into a parent reduce
// value written to dst, returning the number of bytes written.
type RereduceFunc func(dst []byte, values [][]byte) (int, error)

func defaultCompare(cmp CompareFunc) CompareFunc {
	if cmp != nil {
		return cmp
	}
	return bytes.Compare
}
