package wire

import "github.com/autocomp/autocomp/internal/apperr"

// Control messages use a protobuf-equivalent tag/varint encoding: each
// field is a (field_number<<3 | wire_type) tag followed by either a
// base-128 varint (wire_type 0) or a length-prefixed byte string
// (wire_type 2). No generated code; the schemas in §4.M are small and
// fixed enough to hand-encode directly.

const (
	wireVarint = 0
	wireBytes  = 2
)

func putTag(buf []byte, field int, wireType uint64) []byte {
	return putUvarint(buf, uint64(field)<<3|wireType)
}

func putUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func putString(buf []byte, field int, s string) []byte {
	buf = putTag(buf, field, wireBytes)
	buf = putUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func putVarintField(buf []byte, field int, v uint64) []byte {
	buf = putTag(buf, field, wireVarint)
	return putUvarint(buf, v)
}

// zigzag encodes a signed integer so small magnitudes (in either
// direction) stay small on the wire; used for the optional level
// field, which carries -1 as "absent".
func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) uvarint() (uint64, error) {
	var x uint64
	var s uint
	for {
		if r.pos >= len(r.buf) {
			return 0, &apperr.IOError{Msg: "wire: truncated varint"}
		}
		b := r.buf[r.pos]
		r.pos++
		if b < 0x80 {
			if s >= 63 && b > 1 {
				return 0, &apperr.IOError{Msg: "wire: varint overflow"}
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
		if s >= 64 {
			return 0, &apperr.IOError{Msg: "wire: varint overflow"}
		}
	}
}

func (r *byteReader) bytes(n uint64) ([]byte, error) {
	if n > uint64(len(r.buf)-r.pos) {
		return nil, &apperr.IOError{Msg: "wire: length-delimited field exceeds message bounds"}
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *byteReader) atEnd() bool { return r.pos >= len(r.buf) }

// field reads one (field_number, wire_type) tag plus its value,
// returning the wire type so the caller can dispatch.
func (r *byteReader) field() (fieldNum int, wireType uint64, raw uint64, bts []byte, err error) {
	tag, err := r.uvarint()
	if err != nil {
		return 0, 0, 0, nil, err
	}
	fieldNum = int(tag >> 3)
	wireType = tag & 0x7
	switch wireType {
	case wireVarint:
		raw, err = r.uvarint()
	case wireBytes:
		var n uint64
		n, err = r.uvarint()
		if err == nil {
			bts, err = r.bytes(n)
		}
	default:
		return 0, 0, 0, nil, &apperr.IOError{Msg: "wire: unsupported wire type"}
	}
	return fieldNum, wireType, raw, bts, err
}
