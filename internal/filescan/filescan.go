// Package filescan reads files yielded by internal/discovery in
// fixed-size chunks.
package filescan

import (
	"fmt"
	"io"
	"os"

	"github.com/autocomp/autocomp/internal/apperr"
	"github.com/autocomp/autocomp/internal/buffer"
	"github.com/autocomp/autocomp/internal/discovery"
)

// Reader drives a discovery.Iterator, opening each yielded path in
// turn and serving its bytes in chunkSizeBytes pieces. It keeps a
// one-path lookahead so callers can tell, while a file is open,
// whether it is the last one the iterator will yield.
type Reader struct {
	it            *discovery.Iterator
	chunkSizeBytes int

	file        *os.File
	currentPath string
	currentSize int64
	bytesRead   int64

	peeked      bool
	peekedPath  string
	peekedHas   bool
}

// New wraps it, reading chunkSizeBytes at a time from each file.
func New(it *discovery.Iterator, chunkSizeBytes int) *Reader {
	return &Reader{it: it, chunkSizeBytes: chunkSizeBytes}
}

// OpenNext advances to the next file from the discovery iterator,
// closing the previously open one. Returns ok=false once the
// underlying iterator is exhausted.
func (r *Reader) OpenNext() (path string, size int64, ok bool, err error) {
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
	if !r.peeked {
		r.peekedPath, r.peekedHas = r.it.Next()
		r.peeked = true
	}
	if !r.peekedHas {
		return "", 0, false, nil
	}
	p := r.peekedPath
	r.peekedPath, r.peekedHas = r.it.Next()

	f, err := os.Open(p)
	if err != nil {
		return "", 0, true, &apperr.IOError{Msg: fmt.Sprintf("open %s", p), Underlying: err}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return "", 0, true, &apperr.IOError{Msg: fmt.Sprintf("stat %s", p), Underlying: err}
	}
	r.file = f
	r.currentPath = p
	r.currentSize = info.Size()
	r.bytesRead = 0
	return p, r.currentSize, true, nil
}

// IsLastFile reports whether the currently open file is the last one
// the underlying iterator will yield.
func (r *Reader) IsLastFile() bool {
	return r.peeked && !r.peekedHas
}

// HasNextChunk reports whether another chunk remains in the currently
// open file.
func (r *Reader) HasNextChunk() bool {
	return r.file != nil && r.bytesRead < r.currentSize
}

// ReadChunk reads up to chunkSizeBytes into buf, which must have
// capacity at least chunkSizeBytes. Fails with IOError if no file is
// open or no chunk remains.
func (r *Reader) ReadChunk(buf *buffer.Buffer) error {
	if r.file == nil {
		return &apperr.IOError{Msg: "read_chunk: no file open"}
	}
	if !r.HasNextChunk() {
		return &apperr.IOError{Msg: "read_chunk: no chunk remains"}
	}
	want := r.chunkSizeBytes
	if buf.Capacity() < want {
		want = buf.Capacity()
	}
	n, err := io.ReadFull(r.file, buf.Raw()[:want])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return &apperr.IOError{Msg: fmt.Sprintf("read %s", r.currentPath), Underlying: err}
	}
	if err := buf.SetSize(n); err != nil {
		return &apperr.IOError{Msg: "read_chunk: set_size", Underlying: err}
	}
	r.bytesRead += int64(n)
	return nil
}

// CurrentPath returns the path of the file currently open, or "" if none.
func (r *Reader) CurrentPath() string { return r.currentPath }

// Close closes any currently open file.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
