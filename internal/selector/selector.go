// Package selector implements the per-chunk adaptive codec decision:
// gating rules plus feature extraction and decision-tree
// classification, per §4.J.
package selector

import (
	"math"

	"github.com/autocomp/autocomp/internal/buffer"
	"github.com/autocomp/autocomp/internal/codec"
	"github.com/autocomp/autocomp/internal/feature"
	"github.com/autocomp/autocomp/internal/resource"
	"github.com/autocomp/autocomp/internal/tree"
)

// recomputeWindowBytes is the 512 KiB recompute/skip window §4.J uses
// both for the near-random skip and the gating recompute interval.
const recomputeWindowBytes = 512 * 1024

// SendBufferGauge exposes the connection's socket send-buffer state,
// the basis for the §4.J idle-wire short-circuit.
type SendBufferGauge interface {
	BytesInSendBuffer() int
	SendBufferCapacity() int
}

// Selector holds the persistent per-connection state §4.J describes:
// two counters plus the last sampled bytecount feature.
type Selector struct {
	resources *resource.State
	gauge     SendBufferGauge
	tree      *tree.Tree

	remainingUncompressed   int
	remainingUntilRecompute int
	lastBytecount           int
}

// New constructs a Selector over shared resource state, a
// per-connection send-buffer gauge, and the loaded decision tree.
func New(resources *resource.State, gauge SendBufferGauge, t *tree.Tree) *Selector {
	return &Selector{resources: resources, gauge: gauge, tree: t}
}

// Select runs the §4.J algorithm for one chunk. On a non-COPY
// decision it invokes the codec and writes the compressed form into
// out; on COPY the contents of out are undefined (a failed codec may
// have written into it) and the caller must substitute in verbatim.
func (s *Selector) Select(in, out *buffer.Buffer) (codec.Codec, error) {
	if s.remainingUncompressed > 0 {
		s.remainingUncompressed -= in.Size()
		return copyCodec(), nil
	}

	if s.remainingUntilRecompute <= 0 {
		s.lastBytecount = feature.Bytecount(in.Data())
		if s.lastBytecount > 100 {
			s.remainingUncompressed = recomputeWindowBytes
			return copyCodec(), nil
		}
		s.remainingUntilRecompute = recomputeWindowBytes
	} else {
		s.remainingUntilRecompute -= in.Size()
	}

	if s.sendBufferLoad() < 0.05 {
		c, err := codec.New(codec.ZLIB, 3)
		if err != nil {
			return copyCodec(), nil
		}
		if err := c.Compress(in, out); err != nil {
			return copyCodec(), nil
		}
		return c, nil
	}

	features := []int{
		int(math.Floor(s.resources.CPULoad() * 10)),
		bandwidthLevel(s.resources.BandwidthMbps()),
		int(math.Floor(float64(s.lastBytecount) / 10)),
	}
	decision, err := s.tree.Classify(features)
	if err != nil {
		return copyCodec(), err
	}
	if decision.Kind == codec.COPY {
		return copyCodec(), nil
	}
	if err := decision.Compress(in, out); err != nil {
		return copyCodec(), nil
	}
	return decision, nil
}

func (s *Selector) sendBufferLoad() float64 {
	cap := s.gauge.SendBufferCapacity()
	if cap <= 0 {
		return 0
	}
	return float64(s.gauge.BytesInSendBuffer()) / float64(cap)
}

func bandwidthLevel(bw float64) int {
	switch {
	case bw < 100:
		return int(math.Floor(bw / 5))
	case bw < 1000:
		return int(math.Floor(bw/100)) + 19
	default:
		return 58
	}
}

func copyCodec() codec.Codec { return codec.Codec{Kind: codec.COPY, Level: codec.NoLevel} }
