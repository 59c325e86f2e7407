package codec

import (
	"github.com/autocomp/autocomp/internal/buffer"
)

// Codec is a tagged (algorithm, level) pair. Level is -1 for codecs
// without a level (SNAPPY, COPY). This replaces the source's virtual
// base class with a single value type and a flat dispatch switch.
type Codec struct {
	Kind  Kind
	Level int
}

// NoLevel is the sentinel used for codecs that take no level.
const NoLevel = -1

// levelRange returns the valid [min,max] and default level for kind,
// and whether kind takes a level at all.
func levelRange(kind Kind) (min, max, def int, hasLevel bool) {
	switch kind {
	case ZLIB:
		return 0, 9, 6, true
	case LZO:
		return 1, 9, 3, true
	case BZIP2:
		return 1, 9, 9, true
	case LZMA:
		return 0, 9, 6, true
	case FPC:
		return 1, 28, 20, true
	case SNAPPY, COPY:
		return 0, 0, NoLevel, false
	default:
		return 0, 0, NoLevel, false
	}
}

// New constructs a Codec, validating level against kind's range.
// Passing NoLevel for a leveled codec selects its default. A kind
// outside the enum fails with InvalidCompressor.
func New(kind Kind, level int) (Codec, error) {
	if kind < ZLIB || kind > COPY {
		return Codec{}, &InvalidCompressor{Value: int(kind)}
	}
	min, max, def, hasLevel := levelRange(kind)
	if !hasLevel {
		return Codec{Kind: kind, Level: NoLevel}, nil
	}
	if level == NoLevel {
		level = def
	}
	if level < min || level > max {
		return Codec{}, &InvalidCompressionLevel{Codec: kind, Level: level, Min: min, Max: max}
	}
	return Codec{Kind: kind, Level: level}, nil
}

// DefaultLevel returns kind's default level, or NoLevel if it takes none.
func DefaultLevel(kind Kind) int {
	_, _, def, _ := levelRange(kind)
	return def
}

// Compress writes the compressed form of in into out, setting out's
// size. COPY has no compress operation here; callers reuse the input
// buffer directly instead of calling this with COPY.
func (c Codec) Compress(in, out *buffer.Buffer) error {
	if c.Kind == COPY {
		return &CompressionError{Codec: c.Kind, InSize: in.Size(), OutCap: out.Capacity(), Msg: "COPY has no compress operation"}
	}
	n, err := c.compressBytes(in.Data(), out.Raw())
	if err != nil {
		return &CompressionError{Codec: c.Kind, InSize: in.Size(), OutCap: out.Capacity(), Msg: err.Error(), Underlying: err}
	}
	if err := out.SetSize(n); err != nil {
		return &CompressionError{Codec: c.Kind, InSize: in.Size(), OutCap: out.Capacity(), Msg: err.Error(), Underlying: err}
	}
	return nil
}

// Decompress writes the decompressed form of in into out, setting
// out's size.
func (c Codec) Decompress(in, out *buffer.Buffer) error {
	if c.Kind == COPY {
		return &DecompressionError{Codec: c.Kind, InSize: in.Size(), OutCap: out.Capacity(), Msg: "COPY has no decompress operation"}
	}
	n, err := c.decompressBytes(in.Data(), out.Raw())
	if err != nil {
		return &DecompressionError{Codec: c.Kind, InSize: in.Size(), OutCap: out.Capacity(), Msg: err.Error(), Underlying: err}
	}
	if err := out.SetSize(n); err != nil {
		return &DecompressionError{Codec: c.Kind, InSize: in.Size(), OutCap: out.Capacity(), Msg: err.Error(), Underlying: err}
	}
	return nil
}

// compressBytes and decompressBytes dispatch on Kind. Each backing
// implementation owns its own scratch memory for the duration of the
// call; none retain state between calls, so a Codec value is safe to
// reuse or share across goroutines so long as each call completes
// before the next begins on the same buffers.
func (c Codec) compressBytes(in, outCap []byte) (int, error) {
	switch c.Kind {
	case ZLIB:
		return zlibCompress(in, outCap, c.Level)
	case SNAPPY:
		return snappyCompress(in, outCap)
	case LZO:
		return lzoCompress(in, outCap, c.Level)
	case BZIP2:
		return bzip2Compress(in, outCap, c.Level)
	case LZMA:
		return lzmaCompress(in, outCap, c.Level)
	case FPC:
		return fpcCompress(in, outCap, c.Level)
	default:
		return 0, &InvalidCompressor{Value: int(c.Kind)}
	}
}

func (c Codec) decompressBytes(in, outCap []byte) (int, error) {
	switch c.Kind {
	case ZLIB:
		return zlibDecompress(in, outCap)
	case SNAPPY:
		return snappyDecompress(in, outCap)
	case LZO:
		return lzoDecompress(in, outCap)
	case BZIP2:
		return bzip2Decompress(in, outCap)
	case LZMA:
		return lzmaDecompress(in, outCap)
	case FPC:
		return fpcDecompress(in, outCap)
	default:
		return 0, &InvalidCompressor{Value: int(c.Kind)}
	}
}

// ParseLabel parses a decision-tree class label of the form
// "<codec>_<level>" (e.g. "zlib_6") or a bare codec name with no
// level (e.g. "copy", "snappy"). Codec name is matched
// case-insensitively by uppercasing before lookup.
func ParseLabel(label string) (Codec, error) {
	name := label
	level := NoLevel
	for i := 0; i < len(label); i++ {
		if label[i] == '_' {
			name = label[:i]
			rest := label[i+1:]
			parsed, err := parseInt(rest)
			if err != nil {
				return Codec{}, err
			}
			level = parsed
			break
		}
	}
	kind, ok := ParseKind(upper(name))
	if !ok {
		return Codec{}, &InvalidCompressor{Value: -1}
	}
	return New(kind, level)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func parseInt(s string) (int, error) {
	neg := false
	i := 0
	if len(s) > 0 && s[0] == '-' {
		neg = true
		i = 1
	}
	if i >= len(s) {
		return 0, &InvalidCompressor{Value: -1}
	}
	n := 0
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, &InvalidCompressor{Value: -1}
		}
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}
