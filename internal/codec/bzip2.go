package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
)

func bzip2Compress(in, outCap []byte, level int) (int, error) {
	sink := &sliceWriter{buf: outCap}
	w, err := bzip2.NewWriter(sink, &bzip2.WriterConfig{Level: level})
	if err != nil {
		return 0, fmt.Errorf("bzip2: new writer: %w", err)
	}
	if _, err := w.Write(in); err != nil {
		return 0, fmt.Errorf("bzip2: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("bzip2: close: %w", err)
	}
	return sink.n, nil
}

func bzip2Decompress(in, outCap []byte) (int, error) {
	r, err := bzip2.NewReader(bytes.NewReader(in), nil)
	if err != nil {
		return 0, fmt.Errorf("bzip2: new reader: %w", err)
	}
	defer r.Close()
	n, err := io.ReadFull(r, outCap)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, fmt.Errorf("bzip2: read: %w", err)
	}
	var probe [1]byte
	if extra, _ := r.Read(probe[:]); extra > 0 {
		return 0, fmt.Errorf("bzip2: output capacity %d insufficient for decompressed data", len(outCap))
	}
	return n, nil
}
