// Package rootstore provides the atomic root-pointer catalog the engine's
// single-writer/many-reader concurrency model depends on: a pebble-backed
// mapping from {tree name, generation} to the btree.Pointer published at
// that generation, so a reader holding an old generation keeps seeing a
// consistent tree while a writer publishes a new one.
package rootstore

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/freyjadb/btreeengine/pkg/btree"
)

// Store persists root pointers keyed by tree name and generation.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if necessary) the pebble database backing the
// catalog at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Generation is an opaque, monotonically-sortable publication id. Using a
// KSUID (instead of a plain counter) lets independent writers generate IDs
// without coordinating, while still sorting chronologically.
type Generation = ksuid.KSUID

// NewGeneration returns a fresh generation id for a call about to publish a
// new root.
func NewGeneration() Generation { return ksuid.New() }

// key builds the pebble key for a (tree, generation) pair: the tree name,
// a zero separator byte, then the generation's 20-byte binary
// representation, whose byte order follows the KSUID's leading timestamp so
// a prefix iteration over one tree yields generations in timestamp order.
func key(tree string, gen Generation) []byte {
	b := make([]byte, 0, len(tree)+1+len(gen.Bytes()))
	b = append(b, tree...)
	b = append(b, 0)
	b = append(b, gen.Bytes()...)
	return b
}

// Publish atomically records root as the new current pointer for tree at
// gen. Callers are responsible for serializing concurrent publishes to the
// same tree, per the engine's single-writer contract.
func (s *Store) Publish(tree string, gen Generation, root *btree.Pointer) error {
	return s.db.Set(key(tree, gen), encodeRoot(root), pebble.Sync)
}

// Latest returns the most recently published root for tree, or (nil, nil)
// if the tree has never been published.
func (s *Store) Latest(tree string) (*btree.Pointer, Generation, error) {
	prefix := append([]byte(tree), 0)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: append(append([]byte{}, prefix...), 0xFF),
	})
	if err != nil {
		return nil, Generation{}, err
	}
	defer iter.Close()

	if !iter.Last() {
		return nil, Generation{}, nil
	}
	gen, err := ksuid.FromBytes(iter.Key()[len(prefix):])
	if err != nil {
		return nil, Generation{}, fmt.Errorf("rootstore: corrupt generation key: %w", err)
	}
	root, err := decodeRoot(iter.Value())
	if err != nil {
		return nil, Generation{}, err
	}
	return root, gen, nil
}

// At returns the root published for tree at exactly gen.
func (s *Store) At(tree string, gen Generation) (*btree.Pointer, error) {
	v, closer, err := s.db.Get(key(tree, gen))
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return decodeRoot(v)
}

// Close closes the underlying pebble database.
func (s *Store) Close() error { return s.db.Close() }

// encodeRoot serializes a root pointer as a presence byte (0 for a nil
// root, 1 otherwise) followed by the same offset(48) subtree_size(48)
// reduce_len(16) reduce layout a KP entry's pointer payload uses on disk,
// written with this package's own uint48 helpers.
func encodeRoot(root *btree.Pointer) []byte {
	if root == nil {
		return []byte{0}
	}
	buf := make([]byte, 0, 15+len(root.Reduce))
	buf = append(buf, 1)
	var offset [6]byte
	var size [6]byte
	putUint48(offset[:], uint64(root.Offset))
	putUint48(size[:], uint64(root.SubtreeSize))
	buf = append(buf, offset[:]...)
	buf = append(buf, size[:]...)
	var rl [2]byte
	binary.BigEndian.PutUint16(rl[:], uint16(len(root.Reduce)))
	buf = append(buf, rl[:]...)
	buf = append(buf, root.Reduce...)
	return buf
}

func decodeRoot(buf []byte) (*btree.Pointer, error) {
	if len(buf) == 0 || buf[0] == 0 {
		return nil, nil
	}
	if len(buf) < 15 {
		return nil, fmt.Errorf("rootstore: truncated root record")
	}
	buf = buf[1:]
	offset := getUint48(buf[0:6])
	size := getUint48(buf[6:12])
	reduceLen := binary.BigEndian.Uint16(buf[12:14])
	if int(reduceLen) > len(buf)-14 {
		return nil, fmt.Errorf("rootstore: truncated reduce value")
	}
	return &btree.Pointer{
		Offset:      int64(offset),
		SubtreeSize: int64(size),
		Reduce:      append([]byte(nil), buf[14:14+int(reduceLen)]...),
	}, nil
}

func putUint48(buf []byte, v uint64) {
	buf[0] = byte(v >> 40)
	buf[1] = byte(v >> 32)
	buf[2] = byte(v >> 24)
	buf[3] = byte(v >> 16)
	buf[4] = byte(v >> 8)
	buf[5] = byte(v)
}

func getUint48(buf []byte) uint64 {
	return uint64(buf[0])<<40 | uint64(buf[1])<<32 | uint64(buf[2])<<24 |
		uint64(buf[3])<<16 | uint64(buf[4])<<8 | uint64(buf[5])
}
