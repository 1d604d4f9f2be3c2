package btree

import "encoding/binary"

// packHeader packs a (key_len, value_len) pair into the combined 5-byte,
// big-endian header: the top 12 bits hold key_len, the bottom 28 bits hold
// value_len. This is bit-exact with the on-disk layout; downstream readers
// depend on it.
func packHeader(keyLen, valueLen int) ([5]byte, error) {
	var hdr [5]byte
	if keyLen < 0 || keyLen > maxKeyLen {
		return hdr, errKeyTooLong
	}
	if valueLen < 0 || valueLen > maxValueLen {
		return hdr, errValueTooLong
	}
	h := uint64(keyLen)<<28 | uint64(valueLen)
	hdr[0] = byte(h >> 32)
	hdr[1] = byte(h >> 24)
	hdr[2] = byte(h >> 16)
	hdr[3] = byte(h >> 8)
	hdr[4] = byte(h)
	return hdr, nil
}

func unpackHeader(buf []byte) (keyLen, valueLen int) {
	h := uint64(buf[0])<<32 | uint64(buf[1])<<24 | uint64(buf[2])<<16 | uint64(buf[3])<<8 | uint64(buf[4])
	keyLen = int(h >> 28)
	valueLen = int(h & maxValueLen)
	return
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

// encodePointer serializes a pointer payload: offset(48) subtree_size(48)
// reduce_len(16) reduce.
func encodePointer(p Pointer) ([]byte, error) {
	if p.Offset < 0 || p.Offset > maxOffset {
		return nil, errOffsetTooLarge
	}
	if p.SubtreeSize < 0 || p.SubtreeSize > maxSubtree {
		return nil, errSizeTooLarge
	}
	if len(p.Reduce) > MaxReduceSize {
		return nil, errReduceTooLarge
	}
	buf := make([]byte, 14+len(p.Reduce))
	putUint48(buf[0:6], uint64(p.Offset))
	putUint48(buf[6:12], uint64(p.SubtreeSize))
	binary.BigEndian.PutUint16(buf[12:14], uint16(len(p.Reduce)))
	copy(buf[14:], p.Reduce)
	return buf, nil
}

// DecodePointer decodes a standalone pointer payload, as found inside the
// value portion of a KP entry.
func DecodePointer(buf []byte) (Pointer, error) {
	if len(buf) < 14 {
		return Pointer{}, errPointerTooShort
	}
	offset := getUint48(buf[0:6])
	size := getUint48(buf[6:12])
	reduceLen := int(binary.BigEndian.Uint16(buf[12:14]))
	if reduceLen > len(buf)-14 {
		return Pointer{}, errBufferTooShort
	}
	return Pointer{
		Offset:      int64(offset),
		SubtreeSize: int64(size),
		Reduce:      buf[14 : 14+reduceLen],
	}, nil
}

// entrySize is the serialized size of one KV entry: 5-byte header + key + value.
func entrySize(keyLen, valueLen int) int { return 5 + keyLen + valueLen }

// kpEntrySize is the serialized size of one KP entry: 5-byte header + key +
// the pointer payload (14 bytes fixed + reduce value).
func kpEntrySize(keyLen int, ptr Pointer) int { return 5 + keyLen + 14 + len(ptr.Reduce) }

// EncodeLeaf serializes a KV (leaf) node: tag 0x01 followed by packed
// (key_len, value_len, key, value) entries in order.
func EncodeLeaf(entries []KVEntry) ([]byte, error) {
	size := 1
	for _, e := range entries {
		size += entrySize(len(e.Key), len(e.Value))
	}
	buf := make([]byte, 1, size)
	buf[0] = tagKV
	for _, e := range entries {
		hdr, err := packHeader(len(e.Key), len(e.Value))
		if err != nil {
			return nil, err
		}
		buf = append(buf, hdr[:]...)
		buf = append(buf, e.Key...)
		buf = append(buf, e.Value...)
	}
	return buf, nil
}

// EncodeInterior serializes a KP (interior) node: tag 0x00 followed by
// packed (key_len, pointer_len, key, pointer_bytes) entries in order.
func EncodeInterior(children []KPEntry) ([]byte, error) {
	buf := make([]byte, 1, 1+len(children)*32)
	buf[0] = tagKP
	for _, c := range children {
		ptrBytes, err := encodePointer(c.Ptr)
		if err != nil {
			return nil, err
		}
		hdr, err := packHeader(len(c.Key), len(ptrBytes))
		if err != nil {
			return nil, err
		}
		buf = append(buf, hdr[:]...)
		buf = append(buf, c.Key...)
		buf = append(buf, ptrBytes...)
	}
	return buf, nil
}

// decodeEntries walks a packed (key_len, value_len, key, value) sequence,
// returning the raw (key, value) pairs without interpreting the value.
func decodeEntries(buf []byte) ([]KVEntry, error) {
	var out []KVEntry
	for len(buf) > 0 {
		if len(buf) < 5 {
			return nil, errBufferTooShort
		}
		keyLen, valueLen := unpackHeader(buf[:5])
		buf = buf[5:]
		if keyLen > len(buf) {
			return nil, errBufferTooShort
		}
		key := buf[:keyLen]
		buf = buf[keyLen:]
		if valueLen > len(buf) {
			return nil, errBufferTooShort
		}
		value := buf[:valueLen]
		buf = buf[valueLen:]
		out = append(out, KVEntry{Key: key, Value: value})
	}
	return out, nil
}

// Decode parses a single on-disk node (either tag) from buf. Returned
// slices borrow from buf; callers needing them to outlive buf must copy.
func Decode(buf []byte) (*Node, error) {
	if len(buf) < 1 {
		return nil, &CorruptionError{Err: errBufferTooShort}
	}
	switch buf[0] {
	case tagKV:
		entries, err := decodeEntries(buf[1:])
		if err != nil {
			return nil, &CorruptionError{Err: err}
		}
		return &Node{Kind: KindKV, Entries: entries}, nil
	case tagKP:
		raw, err := decodeEntries(buf[1:])
		if err != nil {
			return nil, &CorruptionError{Err: err}
		}
		children := make([]KPEntry, len(raw))
		for i, e := range raw {
			ptr, err := DecodePointer(e.Value)
			if err != nil {
				return nil, &CorruptionError{Err: err}
			}
			if len(ptr.Reduce) > MaxReduceSize {
				return nil, &CorruptionError{Err: errReduceTooLarge}
			}
			children[i] = KPEntry{Key: e.Key, Ptr: ptr}
		}
		return &Node{Kind: KindKP, Children: children}, nil
	default:
		return nil, &CorruptionError{Err: errUnknownTag}
	}
}
