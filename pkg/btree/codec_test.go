package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackHeaderRoundTrip(t *testing.T) {
	hdr, err := packHeader(12, 4000)
	require.NoError(t, err)

	keyLen, valueLen := unpackHeader(hdr[:])
	assert.Equal(t, 12, keyLen)
	assert.Equal(t, 4000, valueLen)
}

func TestPackHeaderRejectsOversizeFields(t *testing.T) {
	_, err := packHeader(maxKeyLen+1, 0)
	assert.ErrorIs(t, err, errKeyTooLong)

	_, err = packHeader(0, maxValueLen+1)
	assert.ErrorIs(t, err, errValueTooLong)
}

func TestEncodeDecodePointerRoundTrip(t *testing.T) {
	p := Pointer{Offset: 1 << 40, SubtreeSize: 2048, Reduce: []byte("reduce-bytes")}
	buf, err := encodePointer(p)
	require.NoError(t, err)

	got, err := DecodePointer(buf)
	require.NoError(t, err)
	assert.Equal(t, p.Offset, got.Offset)
	assert.Equal(t, p.SubtreeSize, got.SubtreeSize)
	assert.Equal(t, p.Reduce, got.Reduce)
}

func TestDecodePointerTooShort(t *testing.T) {
	_, err := DecodePointer(make([]byte, 10))
	assert.ErrorIs(t, err, errPointerTooShort)
}

func TestEncodeDecodeLeafRoundTrip(t *testing.T) {
	entries := []KVEntry{
		{Key: []byte("K00"), Value: []byte("V000")},
		{Key: []byte("K01"), Value: []byte("V001")},
		{Key: []byte("K02"), Value: []byte("V002")},
	}
	buf, err := EncodeLeaf(entries)
	require.NoError(t, err)
	assert.Equal(t, tagKV, buf[0])

	node, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, KindKV, node.Kind)
	require.Len(t, node.Entries, len(entries))
	for i, e := range entries {
		assert.Equal(t, e.Key, node.Entries[i].Key)
		assert.Equal(t, e.Value, node.Entries[i].Value)
	}
}

func TestEncodeDecodeInteriorRoundTrip(t *testing.T) {
	children := []KPEntry{
		{Key: []byte("K10"), Ptr: Pointer{Offset: 10, SubtreeSize: 100, Reduce: []byte("r1")}},
		{Key: []byte("K20"), Ptr: Pointer{Offset: 200, SubtreeSize: 300, Reduce: []byte("r2")}},
	}
	buf, err := EncodeInterior(children)
	require.NoError(t, err)
	assert.Equal(t, tagKP, buf[0])

	node, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, KindKP, node.Kind)
	require.Len(t, node.Children, len(children))
	for i, c := range children {
		assert.Equal(t, c.Key, node.Children[i].Key)
		assert.Equal(t, c.Ptr.Offset, node.Children[i].Ptr.Offset)
		assert.Equal(t, c.Ptr.SubtreeSize, node.Children[i].Ptr.SubtreeSize)
		assert.Equal(t, c.Ptr.Reduce, node.Children[i].Ptr.Reduce)
	}
}

func TestDecodeUnknownTagIsCorruption(t *testing.T) {
	_, err := Decode([]byte{0x42})
	require.Error(t, err)
	assert.True(t, isCorruption(err))
}

func TestDecodeTruncatedBufferIsCorruption(t *testing.T) {
	buf, err := EncodeLeaf([]KVEntry{{Key: []byte("K00"), Value: []byte("V000")}})
	require.NoError(t, err)

	_, err = Decode(buf[:len(buf)-2])
	require.Error(t, err)
	assert.True(t, isCorruption(err))
}
