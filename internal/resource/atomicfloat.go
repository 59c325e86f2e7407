package resource

import (
	"math"
	"sync/atomic"
)

// atomicFloat stores a float64 behind the bit-pattern trick since
// sync/atomic has no native float64 type; load/store are relaxed
// atomics, matching §4.E's "reads are unsynchronized" invariant.
type atomicFloat struct {
	bits atomic.Uint64
}

func (a *atomicFloat) load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicFloat) store(v float64) {
	a.bits.Store(math.Float64bits(v))
}
