package codec

import (
	"fmt"

	"github.com/golang/snappy"
)

// snappyCompress uses golang/snappy's block format directly against
// the caller's output buffer; Encode never allocates beyond dst when
// dst has sufficient capacity.
func snappyCompress(in, outCap []byte) (int, error) {
	maxLen := snappy.MaxEncodedLen(len(in))
	if maxLen < 0 || maxLen > len(outCap) {
		return 0, fmt.Errorf("snappy: output capacity %d insufficient (need up to %d)", len(outCap), maxLen)
	}
	out := snappy.Encode(outCap[:0:len(outCap)], in)
	return len(out), nil
}

func snappyDecompress(in, outCap []byte) (int, error) {
	dlen, err := snappy.DecodedLen(in)
	if err != nil {
		return 0, fmt.Errorf("snappy: decoded length: %w", err)
	}
	if dlen > len(outCap) {
		return 0, fmt.Errorf("snappy: output capacity %d insufficient (need %d)", len(outCap), dlen)
	}
	out, err := snappy.Decode(outCap[:0:len(outCap)], in)
	if err != nil {
		return 0, fmt.Errorf("snappy: decode: %w", err)
	}
	return len(out), nil
}
