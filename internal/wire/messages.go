package wire

import (
	"github.com/autocomp/autocomp/internal/apperr"
	"github.com/autocomp/autocomp/internal/codec"
)

// Mode selects a pipeline's per-chunk compression strategy (§4.K).
type Mode int

const (
	NoCompression Mode = iota
	AutoComp
	Compress
	PreCompress
	Train
)

var modeNames = [...]string{"NO_COMPRESSION", "AUTOCOMP", "COMPRESS", "PRE_COMPRESS", "TRAIN"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "UNKNOWN"
	}
	return modeNames[m]
}

// ParseMode matches name case-insensitively against the mode enum.
func ParseMode(name string) (Mode, bool) {
	up := upperASCII(name)
	for i, n := range modeNames {
		if n == up {
			return Mode(i), true
		}
	}
	return 0, false
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// noLevelField is the wire sentinel for "no level supplied"; it
// mirrors the spec's convention that level -1 means absent.
const noLevelField = -1

// FileTransmissionRequest is the first control message on a
// connection: { filename, mode, codec?, level? }.
type FileTransmissionRequest struct {
	Filename string
	Mode     Mode
	Codec    codec.Kind
	HasCodec bool
	Level    int
	HasLevel bool
}

// Marshal encodes r in the tag/varint control-message format.
func (r *FileTransmissionRequest) Marshal() []byte {
	buf := putString(nil, 1, r.Filename)
	buf = putVarintField(buf, 2, uint64(r.Mode))
	if r.HasCodec {
		buf = putVarintField(buf, 3, uint64(r.Codec))
	}
	if r.HasLevel {
		buf = putVarintField(buf, 4, zigzagEncode(int64(r.Level)))
	}
	return buf
}

// UnmarshalFileTransmissionRequest decodes a FileTransmissionRequest.
func UnmarshalFileTransmissionRequest(data []byte) (*FileTransmissionRequest, error) {
	r := &FileTransmissionRequest{Level: noLevelField}
	br := &byteReader{buf: data}
	for !br.atEnd() {
		fieldNum, wireType, raw, bts, err := br.field()
		if err != nil {
			return nil, err
		}
		switch fieldNum {
		case 1:
			if wireType != wireBytes {
				return nil, badWireType("FileTransmissionRequest.filename")
			}
			r.Filename = string(bts)
		case 2:
			if wireType != wireVarint {
				return nil, badWireType("FileTransmissionRequest.mode")
			}
			r.Mode = Mode(raw)
		case 3:
			if wireType != wireVarint {
				return nil, badWireType("FileTransmissionRequest.codec")
			}
			r.Codec = codec.Kind(raw)
			r.HasCodec = true
		case 4:
			if wireType != wireVarint {
				return nil, badWireType("FileTransmissionRequest.level")
			}
			r.Level = int(zigzagDecode(raw))
			r.HasLevel = true
		}
	}
	return r, nil
}

// FileInitialMessage precedes a file's chunk stream: { filename,
// filesize, chunksize_kb, last_file? }.
type FileInitialMessage struct {
	Filename    string
	FileSize    uint64
	ChunkSizeKB uint32
	LastFile    bool
}

func (m *FileInitialMessage) Marshal() []byte {
	buf := putString(nil, 1, m.Filename)
	buf = putVarintField(buf, 2, m.FileSize)
	buf = putVarintField(buf, 3, uint64(m.ChunkSizeKB))
	if m.LastFile {
		buf = putVarintField(buf, 4, 1)
	}
	return buf
}

// UnmarshalFileInitialMessage decodes a FileInitialMessage. filename,
// filesize and chunksize_kb are required fields: a frame missing any
// of them is not a FileInitialMessage (it is almost certainly an
// ErrorMessage sent in its place), so this returns an error rather
// than a zero-valued message, letting the client fall back to
// UnmarshalErrorMessage the way the original client's
// deserializeAndCheckMessage does.
func UnmarshalFileInitialMessage(data []byte) (*FileInitialMessage, error) {
	m := &FileInitialMessage{}
	var sawFilename, sawFileSize, sawChunkSize bool
	br := &byteReader{buf: data}
	for !br.atEnd() {
		fieldNum, wireType, raw, bts, err := br.field()
		if err != nil {
			return nil, err
		}
		switch fieldNum {
		case 1:
			if wireType != wireBytes {
				return nil, badWireType("FileInitialMessage.filename")
			}
			m.Filename = string(bts)
			sawFilename = true
		case 2:
			if wireType != wireVarint {
				return nil, badWireType("FileInitialMessage.filesize")
			}
			m.FileSize = raw
			sawFileSize = true
		case 3:
			if wireType != wireVarint {
				return nil, badWireType("FileInitialMessage.chunksize_kb")
			}
			m.ChunkSizeKB = uint32(raw)
			sawChunkSize = true
		case 4:
			if wireType != wireVarint {
				return nil, badWireType("FileInitialMessage.last_file")
			}
			m.LastFile = raw != 0
		}
	}
	if !sawFilename || !sawFileSize || !sawChunkSize {
		return nil, &apperr.IOError{Msg: "wire: FileInitialMessage missing a required field"}
	}
	return m, nil
}

// ChunkHeader precedes one payload frame: { compressor, chunk_position,
// last_chunk? }.
type ChunkHeader struct {
	Compressor    codec.Kind
	ChunkPosition uint64
	LastChunk     bool
}

func (h *ChunkHeader) Marshal() []byte {
	buf := putVarintField(nil, 1, uint64(h.Compressor))
	buf = putVarintField(buf, 2, h.ChunkPosition)
	if h.LastChunk {
		buf = putVarintField(buf, 3, 1)
	}
	return buf
}

// UnmarshalChunkHeader decodes a ChunkHeader. compressor and
// chunk_position are required; see UnmarshalFileInitialMessage for
// why a missing required field is reported as an error instead of a
// zero value.
func UnmarshalChunkHeader(data []byte) (*ChunkHeader, error) {
	h := &ChunkHeader{}
	var sawCompressor, sawPosition bool
	br := &byteReader{buf: data}
	for !br.atEnd() {
		fieldNum, wireType, raw, _, err := br.field()
		if err != nil {
			return nil, err
		}
		switch fieldNum {
		case 1:
			if wireType != wireVarint {
				return nil, badWireType("ChunkHeader.compressor")
			}
			h.Compressor = codec.Kind(raw)
			sawCompressor = true
		case 2:
			if wireType != wireVarint {
				return nil, badWireType("ChunkHeader.chunk_position")
			}
			h.ChunkPosition = raw
			sawPosition = true
		case 3:
			if wireType != wireVarint {
				return nil, badWireType("ChunkHeader.last_chunk")
			}
			h.LastChunk = raw != 0
		}
	}
	if !sawCompressor || !sawPosition {
		return nil, &apperr.IOError{Msg: "wire: ChunkHeader missing a required field"}
	}
	return h, nil
}

// ErrorMessage may appear in place of any expected control message.
type ErrorMessage struct {
	Message string
}

func (e *ErrorMessage) Marshal() []byte {
	return putString(nil, 1, e.Message)
}

func UnmarshalErrorMessage(data []byte) (*ErrorMessage, error) {
	e := &ErrorMessage{}
	br := &byteReader{buf: data}
	for !br.atEnd() {
		fieldNum, wireType, _, bts, err := br.field()
		if err != nil {
			return nil, err
		}
		if fieldNum == 1 {
			if wireType != wireBytes {
				return nil, badWireType("ErrorMessage.message")
			}
			e.Message = string(bts)
		}
	}
	return e, nil
}

func badWireType(field string) error {
	return &apperr.IOError{Msg: "wire: unexpected wire type for " + field}
}
