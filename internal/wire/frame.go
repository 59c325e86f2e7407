// Package wire implements the §4.M framing and control-message
// encoding, and the §4.G send-buffer-derived bandwidth estimator.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/autocomp/autocomp/internal/apperr"
)

// MaxFrameBytes bounds a single frame's length prefix to guard against
// a corrupt or adversarial peer claiming an unbounded allocation.
const MaxFrameBytes = 256 * 1024 * 1024

// WriteFrame writes a 32-bit big-endian length prefix followed by
// payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return &apperr.NetworkError{Msg: "write frame length", Underlying: err}
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return &apperr.NetworkError{Msg: "write frame body", Underlying: err}
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r: 4 bytes big-endian
// length, then exactly that many bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, &apperr.NetworkError{Msg: "read frame length", Underlying: err}
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameBytes {
		return nil, &apperr.NetworkError{Msg: fmt.Sprintf("frame length %d exceeds maximum %d", n, MaxFrameBytes)}
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, &apperr.NetworkError{Msg: "read frame body", Underlying: err}
		}
	}
	return buf, nil
}
