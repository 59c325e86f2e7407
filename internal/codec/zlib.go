package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// zlibCompress drives klauspost/compress/zlib, which implements the
// same DEFLATE-based format as the standard library's compress/flate
// but with a faster encoder. Levels 0-9 map directly onto zlib's.
func zlibCompress(in, outCap []byte, level int) (int, error) {
	sink := &sliceWriter{buf: outCap}
	w, err := zlib.NewWriterLevel(sink, level)
	if err != nil {
		return 0, fmt.Errorf("zlib: new writer: %w", err)
	}
	if _, err := w.Write(in); err != nil {
		return 0, fmt.Errorf("zlib: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("zlib: close: %w", err)
	}
	return sink.n, nil
}

func zlibDecompress(in, outCap []byte) (int, error) {
	r, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return 0, fmt.Errorf("zlib: new reader: %w", err)
	}
	defer r.Close()
	n, err := io.ReadFull(r, outCap)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, fmt.Errorf("zlib: read: %w", err)
	}
	// Confirm the stream is fully drained (no trailing data we dropped).
	var probe [1]byte
	if extra, _ := r.Read(probe[:]); extra > 0 {
		return 0, fmt.Errorf("zlib: output capacity %d insufficient for decompressed data", len(outCap))
	}
	return n, nil
}
