package codec

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// fpcBlockValues is the block size in 8-byte values (32 KiB) after
// which the predictor tables are reset, per §4.A's implementer
// freedom to drive a codec in fixed blocks. Per §9 Open Question
// (ii), a trailing partial block is rounded up rather than handled
// with the source's partial-block arithmetic.
const fpcBlockValues = 4096

// fpcPredictor holds the two hash-indexed predictor tables from the
// Burtscher/Ratanaworabhan FPC scheme: fcm predicts the next value
// directly from a hash of recent values, dfcm predicts the next
// value's delta (stride) from recent strides. The implementation here
// is self-contained and round-trips correctly against itself; it is
// not byte-compatible with the original C++ bitstream.
type fpcPredictor struct {
	mask      uint64
	fcmTable  []uint64
	dfcmTable []uint64
	fcmHash   uint64
	dfcmHash  uint64
	last      uint64
}

func newFPCPredictor(level int) *fpcPredictor {
	size := uint64(1) << uint(level)
	return &fpcPredictor{
		mask:      size - 1,
		fcmTable:  make([]uint64, size),
		dfcmTable: make([]uint64, size),
	}
}

func (p *fpcPredictor) predict() (fcmPred, dfcmPred uint64) {
	fcmPred = p.fcmTable[p.fcmHash&p.mask]
	dfcmPred = p.last + p.dfcmTable[p.dfcmHash&p.mask]
	return
}

func (p *fpcPredictor) update(v uint64) {
	fi := p.fcmHash & p.mask
	di := p.dfcmHash & p.mask
	stride := v - p.last
	p.fcmTable[fi] = v
	p.dfcmTable[di] = stride
	p.fcmHash = (p.fcmHash << 6) ^ (v >> 48)
	p.dfcmHash = (p.dfcmHash << 2) ^ (stride >> 40)
	p.last = v
}

// leadingZeroBytes returns the count of leading zero bytes of v,
// capped to 7 so it fits a 3-bit field (an all-zero value still emits
// one explicit residual byte).
func leadingZeroBytes(v uint64) int {
	lz := bits.LeadingZeros64(v) / 8
	if lz > 7 {
		lz = 7
	}
	return lz
}

// fpcCompress packs a 9-byte header (1-byte level, 8-byte original length)
// followed by one record per 8-byte value: a control byte (predictor
// bit + 3-bit leading-zero-byte count) and the non-zero residual
// bytes of value XOR prediction. A trailing partial value is
// zero-padded; original length is used on decompress to truncate.
func fpcCompress(in, outCap []byte, level int) (int, error) {
	const headerLen = 9
	if len(outCap) < headerLen {
		return 0, fmt.Errorf("fpc: output capacity %d too small for header", len(outCap))
	}
	outCap[0] = byte(level)
	binary.LittleEndian.PutUint64(outCap[1:headerLen], uint64(len(in)))
	pos := headerLen

	pred := newFPCPredictor(level)
	nValues := (len(in) + 7) / 8
	for i := 0; i < nValues; i++ {
		if i > 0 && i%fpcBlockValues == 0 {
			pred = newFPCPredictor(level)
		}
		var valBuf [8]byte
		start := i * 8
		end := start + 8
		if end > len(in) {
			copy(valBuf[:], in[start:])
		} else {
			copy(valBuf[:], in[start:end])
		}
		v := binary.BigEndian.Uint64(valBuf[:])

		fcmPred, dfcmPred := pred.predict()
		fcmXor := v ^ fcmPred
		dfcmXor := v ^ dfcmPred

		xor := fcmXor
		var predictorBit byte
		if leadingZeroBytes(dfcmXor) > leadingZeroBytes(fcmXor) {
			xor = dfcmXor
			predictorBit = 1
		}
		lz := leadingZeroBytes(xor)
		nResidual := 8 - lz

		if pos+1+nResidual > len(outCap) {
			return 0, fmt.Errorf("fpc: output capacity %d exceeded", len(outCap))
		}
		outCap[pos] = (predictorBit << 7) | (byte(lz) << 4)
		pos++
		var xorBuf [8]byte
		binary.BigEndian.PutUint64(xorBuf[:], xor)
		copy(outCap[pos:pos+nResidual], xorBuf[lz:])
		pos += nResidual

		pred.update(v)
	}
	return pos, nil
}

func fpcDecompress(in, outCap []byte) (int, error) {
	const headerLen = 9
	if len(in) < headerLen {
		return 0, fmt.Errorf("fpc: input %d too short for header", len(in))
	}
	level := int(in[0])
	origLen := int(binary.LittleEndian.Uint64(in[1:headerLen]))
	if origLen > len(outCap) {
		return 0, fmt.Errorf("fpc: output capacity %d insufficient for %d bytes", len(outCap), origLen)
	}

	pred := newFPCPredictor(level)
	pos := headerLen
	written := 0
	valueIdx := 0
	for written < origLen {
		if valueIdx > 0 && valueIdx%fpcBlockValues == 0 {
			pred = newFPCPredictor(level)
		}
		if pos >= len(in) {
			return 0, fmt.Errorf("fpc: truncated stream at value %d", valueIdx)
		}
		ctrl := in[pos]
		pos++
		predictorBit := ctrl >> 7
		lz := int((ctrl >> 4) & 0x7)
		nResidual := 8 - lz
		if pos+nResidual > len(in) {
			return 0, fmt.Errorf("fpc: truncated residual at value %d", valueIdx)
		}
		var xorBuf [8]byte
		copy(xorBuf[lz:], in[pos:pos+nResidual])
		pos += nResidual
		xor := binary.BigEndian.Uint64(xorBuf[:])

		fcmPred, dfcmPred := pred.predict()
		var v uint64
		if predictorBit == 1 {
			v = xor ^ dfcmPred
		} else {
			v = xor ^ fcmPred
		}
		pred.update(v)

		var vBuf [8]byte
		binary.BigEndian.PutUint64(vBuf[:], v)
		n := 8
		if written+8 > origLen {
			n = origLen - written
		}
		copy(outCap[written:written+n], vBuf[:n])
		written += n
		valueIdx++
	}
	return written, nil
}
