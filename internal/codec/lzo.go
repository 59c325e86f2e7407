package codec

import (
	"encoding/binary"
	"fmt"
)

// LZO here is a from-scratch LZSS-style codec (hash-chain match
// finder, literal/match token stream), not the real LZO1X wire
// format — see DESIGN.md for why no pack library pairs both directions
// of that format. Level 1-9 controls hash-chain search depth.

const (
	lzoMinMatch    = 4
	lzoMaxMatch    = 130
	lzoMaxDistance = 1<<16 - 1
	lzoHashBits    = 15
	lzoHashSize    = 1 << lzoHashBits
)

func lzoSearchDepth(level int) int {
	return level * 8
}

func lzoHash(in []byte, i int) uint32 {
	v := binary.LittleEndian.Uint32(in[i:])
	return (v * 2654435761) >> (32 - lzoHashBits)
}

func lzoCompress(in, outCap []byte, level int) (int, error) {
	const headerLen = 4
	if len(outCap) < headerLen {
		return 0, fmt.Errorf("lzo: output capacity %d too small for header", len(outCap))
	}
	binary.BigEndian.PutUint32(outCap[:headerLen], uint32(len(in)))
	pos := headerLen

	depth := lzoSearchDepth(level)
	head := make([]int32, lzoHashSize)
	for i := range head {
		head[i] = -1
	}
	prev := make([]int32, len(in))

	litStart := 0
	flushLiterals := func(end int) error {
		for litStart < end {
			run := end - litStart
			if run > 127 {
				run = 127
			}
			if pos+1+run > len(outCap) {
				return fmt.Errorf("lzo: output capacity %d exceeded", len(outCap))
			}
			outCap[pos] = byte(run)
			pos++
			copy(outCap[pos:pos+run], in[litStart:litStart+run])
			pos += run
			litStart += run
		}
		return nil
	}

	insert := func(i int) {
		if i+lzoMinMatch <= len(in) {
			h := lzoHash(in, i)
			prev[i] = head[h]
			head[h] = int32(i)
		}
	}

	i := 0
	for i < len(in) {
		bestLen, bestDist := 0, 0
		if i+lzoMinMatch <= len(in) {
			h := lzoHash(in, i)
			cand := head[h]
			tries := depth
			maxL := len(in) - i
			if maxL > lzoMaxMatch {
				maxL = lzoMaxMatch
			}
			for cand >= 0 && tries > 0 {
				dist := i - int(cand)
				if dist > lzoMaxDistance {
					break
				}
				l := 0
				for l < maxL && in[int(cand)+l] == in[i+l] {
					l++
				}
				if l >= lzoMinMatch && l > bestLen {
					bestLen, bestDist = l, dist
				}
				cand = prev[cand]
				tries--
			}
		}

		if bestLen >= lzoMinMatch {
			if err := flushLiterals(i); err != nil {
				return 0, err
			}
			if pos+3 > len(outCap) {
				return 0, fmt.Errorf("lzo: output capacity %d exceeded", len(outCap))
			}
			outCap[pos] = 0x80 | byte(bestLen-3)
			pos++
			binary.BigEndian.PutUint16(outCap[pos:pos+2], uint16(bestDist))
			pos += 2
			end := i + bestLen
			for ; i < end; i++ {
				insert(i)
			}
			litStart = i
		} else {
			insert(i)
			i++
		}
	}
	if err := flushLiterals(len(in)); err != nil {
		return 0, err
	}
	return pos, nil
}

func lzoDecompress(in, outCap []byte) (int, error) {
	const headerLen = 4
	if len(in) < headerLen {
		return 0, fmt.Errorf("lzo: input %d too short for header", len(in))
	}
	origLen := int(binary.BigEndian.Uint32(in[:headerLen]))
	if origLen > len(outCap) {
		return 0, fmt.Errorf("lzo: output capacity %d insufficient for %d bytes", len(outCap), origLen)
	}
	pos := headerLen
	written := 0
	for written < origLen {
		if pos >= len(in) {
			return 0, fmt.Errorf("lzo: truncated stream at %d", written)
		}
		ctrl := in[pos]
		pos++
		if ctrl&0x80 == 0 {
			run := int(ctrl)
			if pos+run > len(in) {
				return 0, fmt.Errorf("lzo: truncated literal run at %d", written)
			}
			copy(outCap[written:written+run], in[pos:pos+run])
			pos += run
			written += run
		} else {
			matchLen := int(ctrl&0x7f) + 3
			if pos+2 > len(in) {
				return 0, fmt.Errorf("lzo: truncated match at %d", written)
			}
			dist := int(binary.BigEndian.Uint16(in[pos : pos+2]))
			pos += 2
			if dist <= 0 || dist > written {
				return 0, fmt.Errorf("lzo: invalid match distance %d at %d", dist, written)
			}
			src := written - dist
			for k := 0; k < matchLen; k++ {
				outCap[written+k] = outCap[src+k]
			}
			written += matchLen
		}
	}
	return written, nil
}
