package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// lzmaChunkBytes is the stream chunk size §4.A calls out for LZMA:
// input is pushed through the writer in fixed 4 KiB pieces rather
// than in one call, bounding peak internal buffering.
const lzmaChunkBytes = 4 * 1024

// lzmaDictBits maps level 0-9 onto a dictionary size 64 KiB .. 32 MiB;
// higher levels trade memory for ratio, mirroring zlib/bzip2's scale.
func lzmaDictBits(level int) uint {
	return uint(16 + level)
}

func lzmaCompress(in, outCap []byte, level int) (int, error) {
	sink := &sliceWriter{buf: outCap}
	cfg := lzma.WriterConfig{DictCap: 1 << lzmaDictBits(level)}
	w, err := cfg.NewWriter(sink)
	if err != nil {
		return 0, fmt.Errorf("lzma: new writer: %w", err)
	}
	for off := 0; off < len(in); off += lzmaChunkBytes {
		end := off + lzmaChunkBytes
		if end > len(in) {
			end = len(in)
		}
		if _, err := w.Write(in[off:end]); err != nil {
			return 0, fmt.Errorf("lzma: write: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("lzma: close: %w", err)
	}
	return sink.n, nil
}

func lzmaDecompress(in, outCap []byte) (int, error) {
	r, err := lzma.NewReader(bytes.NewReader(in))
	if err != nil {
		return 0, fmt.Errorf("lzma: new reader: %w", err)
	}
	n, err := io.ReadFull(r, outCap)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, fmt.Errorf("lzma: read: %w", err)
	}
	var probe [1]byte
	if extra, _ := r.Read(probe[:]); extra > 0 {
		return 0, fmt.Errorf("lzma: output capacity %d insufficient for decompressed data", len(outCap))
	}
	return n, nil
}
