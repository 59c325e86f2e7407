package wire

import (
	"bytes"
	"testing"
	"time"

	"github.com/autocomp/autocomp/internal/codec"
	"github.com/autocomp/autocomp/internal/resource"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello, autocomp")
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadFrame() = %q, want %q", got, payload)
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadFrame() = %v, want empty", got)
	}
}

func TestFrameRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	hdr[0] = 0xFF // absurdly large length prefix
	hdr[1] = 0xFF
	hdr[2] = 0xFF
	hdr[3] = 0xFF
	buf.Write(hdr[:])
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected error for oversized frame")
	}
}

func TestFileTransmissionRequestRoundTrip(t *testing.T) {
	req := &FileTransmissionRequest{
		Filename: "alice29.txt",
		Mode:     Compress,
		Codec:    codec.BZIP2,
		HasCodec: true,
		Level:    9,
		HasLevel: true,
	}
	got, err := UnmarshalFileTransmissionRequest(req.Marshal())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Filename != req.Filename || got.Mode != req.Mode || got.Codec != req.Codec || !got.HasCodec || got.Level != req.Level || !got.HasLevel {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, req)
	}
}

func TestFileTransmissionRequestNoOptionalFields(t *testing.T) {
	req := &FileTransmissionRequest{Filename: "x.bin", Mode: NoCompression}
	got, err := UnmarshalFileTransmissionRequest(req.Marshal())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.HasCodec || got.HasLevel {
		t.Errorf("expected no optional fields set, got %+v", got)
	}
	if got.Level != noLevelField {
		t.Errorf("Level = %d, want sentinel %d", got.Level, noLevelField)
	}
}

func TestFileInitialMessageRoundTrip(t *testing.T) {
	m := &FileInitialMessage{Filename: "a.txt", FileSize: 152089, ChunkSizeKB: 64, LastFile: true}
	got, err := UnmarshalFileInitialMessage(m.Marshal())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if *got != *m {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestChunkHeaderRoundTrip(t *testing.T) {
	h := &ChunkHeader{Compressor: codec.ZLIB, ChunkPosition: 2, LastChunk: true}
	got, err := UnmarshalChunkHeader(h.Marshal())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if *got != *h {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestErrorMessageRoundTrip(t *testing.T) {
	e := &ErrorMessage{Message: "disk full"}
	got, err := UnmarshalErrorMessage(e.Marshal())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Message != e.Message {
		t.Errorf("Message = %q, want %q", got.Message, e.Message)
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"autocomp":      AutoComp,
		"COMPRESS":      Compress,
		"pre_compress":  PreCompress,
		"Train":         Train,
		"NO_COMPRESSION": NoCompression,
	}
	for name, want := range cases {
		got, ok := ParseMode(name)
		if !ok || got != want {
			t.Errorf("ParseMode(%q) = (%v,%v), want (%v,true)", name, got, ok, want)
		}
	}
	if _, ok := ParseMode("bogus"); ok {
		t.Error("expected ParseMode(bogus) to fail")
	}
}

func TestZigzagRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 9, -9, 1 << 30, -(1 << 30)} {
		if got := zigzagDecode(zigzagEncode(v)); got != v {
			t.Errorf("zigzag round trip of %d = %d", v, got)
		}
	}
}

type fakeGauge struct{ n int }

func (f fakeGauge) BytesInSendBuffer() int { return f.n }

func TestBandwidthEstimatorWithinWindowAccumulates(t *testing.T) {
	state := resource.New()
	gauge := fakeGauge{n: 0}
	frozen := time.Unix(0, 0)
	origNow := timeNow
	timeNow = func() time.Time { return frozen }
	defer func() { timeNow = origNow }()

	est := NewBandwidthEstimator(state, gauge)
	est.OnWrite(100)
	if state.BandwidthMbps() != 0 {
		t.Errorf("bandwidth updated within window: %v", state.BandwidthMbps())
	}
}

func TestBandwidthEstimatorAfterWindowUpdates(t *testing.T) {
	state := resource.New()
	gauge := fakeGauge{n: 0}
	base := time.Unix(0, 0)
	origNow := timeNow
	cur := base
	timeNow = func() time.Time { return cur }
	defer func() { timeNow = origNow }()

	est := NewBandwidthEstimator(state, gauge)
	// Bytes written inside the window are what the next post-window
	// write measures: 8*1000 bits over 20ms = 0.4 Mbps.
	est.OnWrite(1000)
	cur = base.Add(20 * time.Millisecond)
	est.OnWrite(1000)
	if state.BandwidthMbps() <= 0 {
		t.Errorf("expected positive bandwidth after window elapsed, got %v", state.BandwidthMbps())
	}
}

func TestBandwidthEstimatorCloseZeroes(t *testing.T) {
	state := resource.New()
	state.SetBandwidthMbps(42)
	est := NewBandwidthEstimator(state, fakeGauge{})
	est.Close()
	if state.BandwidthMbps() != 0 {
		t.Errorf("BandwidthMbps() after Close = %v, want 0", state.BandwidthMbps())
	}
}
