// Package treefile implements the append-only, length-prefixed,
// CRC32-checked block file the btree engine is built on: an
// io.ReaderAt-backed TreeFile that never rewrites a byte once it has been
// returned from AppendChunk.
package treefile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// frameHeaderSize is the on-disk prefix before every chunk's payload:
// a 4-byte big-endian length followed by a 4-byte IEEE CRC32 of the
// payload.
const frameHeaderSize = 8

// ErrCorruption is returned when a chunk's stored CRC32 does not match its
// payload, or the frame header is truncated.
var ErrCorruption = fmt.Errorf("treefile: corrupt chunk")

// Config configures a File.
type Config struct {
	FilePath      string        // path to the backing file
	FsyncInterval time.Duration // 0 means fsync after every AppendChunk
	BufferSize    int           // write buffer size
}

// File is a concrete, append-only TreeFile: AppendChunk writes through a
// buffered writer under a mutex (mirroring the single-writer log file this
// engine assumes), while ReadChunk opens its own *os.File handle per call
// and uses ReadAt so concurrent readers never share a cursor.
type File struct {
	config     Config
	writeFile  *os.File
	writer     *bufio.Writer
	fsyncTimer *time.Timer
	mutex      sync.Mutex
	offset     int64
}

// Open creates the backing directory if needed and opens path for
// append-only writes, positioning the write offset at the current end of
// file (so reopening an existing tree_file resumes appends correctly).
func Open(config Config) (*File, error) {
	if config.BufferSize <= 0 {
		config.BufferSize = 4096
	}
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}

	tf := &File{
		config:    config,
		writeFile: f,
		writer:    bufio.NewWriterSize(f, config.BufferSize),
		offset:    stat.Size(),
	}
	if config.FsyncInterval > 0 {
		tf.fsyncTimer = time.AfterFunc(config.FsyncInterval, func() {
			tf.mutex.Lock()
			defer tf.mutex.Unlock()
			tf.sync()
		})
	}
	return tf, nil
}

// AppendChunk writes data framed as <length:4><crc32:4><data> and returns
// the offset of the payload (not the frame header), matching what
// ReadChunk expects.
func (tf *File) AppendChunk(data []byte) (int64, error) {
	tf.mutex.Lock()
	defer tf.mutex.Unlock()

	var hdr [frameHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(data)))
	binary.BigEndian.PutUint32(hdr[4:8], crc32.ChecksumIEEE(data))

	if _, err := tf.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := tf.writer.Write(data); err != nil {
		return 0, err
	}

	payloadOffset := tf.offset + frameHeaderSize
	tf.offset += int64(frameHeaderSize + len(data))

	if tf.config.FsyncInterval == 0 {
		if err := tf.sync(); err != nil {
			return 0, err
		}
	} else if tf.fsyncTimer != nil {
		tf.fsyncTimer.Reset(tf.config.FsyncInterval)
	}

	return payloadOffset, nil
}

// ReadChunk reads the frame whose payload starts at offset (as returned by
// AppendChunk), validating its CRC32. It opens its own file handle so
// concurrent reads never contend over a shared cursor.
func (tf *File) ReadChunk(offset int64) ([]byte, error) {
	// Push any appends still held in the write buffer to the file so the
	// separate read handle below can see them.
	tf.mutex.Lock()
	err := tf.writer.Flush()
	tf.mutex.Unlock()
	if err != nil {
		return nil, err
	}

	r, err := os.Open(tf.config.FilePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	frameStart := offset - frameHeaderSize
	var hdr [frameHeaderSize]byte
	if _, err := r.ReadAt(hdr[:], frameStart); err != nil {
		return nil, ErrCorruption
	}
	length := binary.BigEndian.Uint32(hdr[0:4])
	wantCRC := binary.BigEndian.Uint32(hdr[4:8])

	data := make([]byte, length)
	if _, err := r.ReadAt(data, offset); err != nil {
		return nil, ErrCorruption
	}
	if crc32.ChecksumIEEE(data) != wantCRC {
		return nil, ErrCorruption
	}
	return data, nil
}

// Sync forces a flush and fsync to disk.
func (tf *File) Sync() error {
	tf.mutex.Lock()
	defer tf.mutex.Unlock()
	return tf.sync()
}

func (tf *File) sync() error {
	if err := tf.writer.Flush(); err != nil {
		return err
	}
	return tf.writeFile.Sync()
}

// Size returns the current write offset (total bytes appended, including
// frame headers).
func (tf *File) Size() int64 {
	tf.mutex.Lock()
	defer tf.mutex.Unlock()
	return tf.offset
}

// Close flushes and closes the backing file.
func (tf *File) Close() error {
	tf.mutex.Lock()
	defer tf.mutex.Unlock()
	if tf.fsyncTimer != nil {
		tf.fsyncTimer.Stop()
	}
	if err := tf.sync(); err != nil {
		tf.writeFile.Close()
		return err
	}
	return tf.writeFile.Close()
}
