package tree

import (
	"strings"
	"testing"

	"github.com/autocomp/autocomp/internal/codec"
)

// A tiny two-leaf tree: feature 0 <= 5 -> copy, else zlib_6.
const sampleTree = `
2
copy
zlib_6
1
3
1 2 0 5 0
-1 -1 0 0 0
-1 -1 0 0 1
`

func TestParseAndClassify(t *testing.T) {
	tr, err := Parse(strings.NewReader(sampleTree))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tr.NFeatures() != 1 {
		t.Fatalf("NFeatures() = %d, want 1", tr.NFeatures())
	}

	c, err := tr.Classify([]int{3})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.Kind != codec.COPY {
		t.Errorf("Classify(3) = %s, want COPY", c.Kind)
	}

	c, err = tr.Classify([]int{9})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.Kind != codec.ZLIB || c.Level != 6 {
		t.Errorf("Classify(9) = {%s,%d}, want {ZLIB,6}", c.Kind, c.Level)
	}
}

func TestClassifyWrongArity(t *testing.T) {
	tr, err := Parse(strings.NewReader(sampleTree))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := tr.Classify([]int{1, 2}); err == nil {
		t.Fatal("expected error for wrong feature vector length")
	}
}

func TestParseRejectsOutOfRangeFeature(t *testing.T) {
	bad := `
1
copy
1
1
0 1 5 0 0
`
	if _, err := Parse(strings.NewReader(bad)); err == nil {
		t.Fatal("expected error for feature_index >= n_features")
	}
}
