package btree

import (
	"encoding/binary"
	"fmt"
)

// memTreeFile is an in-memory TreeFile used across the package's tests: a
// length-prefixed append-only buffer, just enough to exercise the engine
// without depending on pkg/treefile.
type memTreeFile struct {
	buf []byte
}

func newMemTreeFile() *memTreeFile { return &memTreeFile{} }

func (m *memTreeFile) AppendChunk(data []byte) (int64, error) {
	offset := int64(len(m.buf))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	m.buf = append(m.buf, lenBuf[:]...)
	m.buf = append(m.buf, data...)
	return offset, nil
}

func (m *memTreeFile) ReadChunk(offset int64) ([]byte, error) {
	if offset < 0 || offset+4 > int64(len(m.buf)) {
		return nil, fmt.Errorf("memTreeFile: offset %d out of range", offset)
	}
	n := binary.BigEndian.Uint32(m.buf[offset : offset+4])
	start := offset + 4
	end := start + int64(n)
	if end > int64(len(m.buf)) {
		return nil, fmt.Errorf("memTreeFile: truncated chunk at offset %d", offset)
	}
	return m.buf[start:end], nil
}

// size reports the number of bytes appended so far, for property tests that
// need to confirm a call wrote nothing.
func (m *memTreeFile) size() int64 { return int64(len(m.buf)) }
