package codec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/autocomp/autocomp/internal/buffer"
)

func roundTrip(t *testing.T, kind Kind, level int, payload []byte) {
	t.Helper()
	c, err := New(kind, level)
	if err != nil {
		t.Fatalf("New(%s, %d): %v", kind, level, err)
	}

	in := buffer.New(len(payload))
	if err := in.SetData(payload); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	out := buffer.New(len(payload)*2 + 4096)
	if err := c.Compress(in, out); err != nil {
		t.Fatalf("Compress(%s, %d): %v", kind, level, err)
	}

	roundTripped := buffer.New(len(payload) + 64)
	if err := c.Decompress(out, roundTripped); err != nil {
		t.Fatalf("Decompress(%s, %d): %v", kind, level, err)
	}

	if !bytes.Equal(roundTripped.Data(), payload) {
		t.Fatalf("%s level %d: round trip mismatch (in=%d out=%d)", kind, level, len(payload), roundTripped.Size())
	}
}

func TestRoundTripAllCodecs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	textLike := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 500)
	random := make([]byte, 8000)
	rng.Read(random)

	cases := []struct {
		kind   Kind
		levels []int
	}{
		{ZLIB, []int{0, 6, 9}},
		{SNAPPY, []int{NoLevel}},
		{LZO, []int{1, 3, 9}},
		{BZIP2, []int{1, 9}},
		{LZMA, []int{0, 6}},
		{FPC, []int{1, 20}},
	}

	for _, tc := range cases {
		for _, lvl := range tc.levels {
			for name, payload := range map[string][]byte{"text": textLike, "random": random, "empty": {}, "small": []byte("hi")} {
				payload := payload
				t.Run(tc.kind.String()+"/"+name, func(t *testing.T) {
					roundTrip(t, tc.kind, lvl, payload)
				})
			}
		}
	}
}

func TestLevelValidation(t *testing.T) {
	cases := []struct {
		kind    Kind
		level   int
		wantErr bool
	}{
		{ZLIB, -1, false}, // default
		{ZLIB, 0, false},
		{ZLIB, 9, false},
		{ZLIB, 10, true},
		{ZLIB, -2, true},
		{LZO, 0, true},
		{LZO, 1, false},
		{LZO, 9, false},
		{LZO, 10, true},
		{BZIP2, 0, true},
		{BZIP2, 9, false},
		{LZMA, 9, false},
		{LZMA, 10, true},
		{FPC, 28, false},
		{FPC, 29, true},
		{FPC, 0, true},
		{SNAPPY, 5, false}, // ignored, no level
		{COPY, 5, false},
	}
	for _, tc := range cases {
		_, err := New(tc.kind, tc.level)
		if (err != nil) != tc.wantErr {
			t.Errorf("New(%s, %d): err=%v, wantErr=%v", tc.kind, tc.level, err, tc.wantErr)
		}
	}
}

func TestParseLabel(t *testing.T) {
	cases := []struct {
		label     string
		wantKind  Kind
		wantLevel int
	}{
		{"zlib_6", ZLIB, 6},
		{"lzo_8", LZO, 8},
		{"bzip2_5", BZIP2, 5},
		{"copy", COPY, NoLevel},
		{"snappy", SNAPPY, NoLevel},
		{"fpc_20", FPC, 20},
	}
	for _, tc := range cases {
		c, err := ParseLabel(tc.label)
		if err != nil {
			t.Fatalf("ParseLabel(%q): %v", tc.label, err)
		}
		if c.Kind != tc.wantKind || c.Level != tc.wantLevel {
			t.Errorf("ParseLabel(%q) = {%s, %d}, want {%s, %d}", tc.label, c.Kind, c.Level, tc.wantKind, tc.wantLevel)
		}
	}
}

func TestParseLabelInvalid(t *testing.T) {
	if _, err := ParseLabel("not_a_codec_1"); err == nil {
		t.Fatal("expected error for unknown codec name")
	}
}
