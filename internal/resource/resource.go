// Package resource holds the process-wide resource-state record
// shared by the CPU sampler and the send loop's bandwidth estimator.
// Reads are unsynchronized relaxed atomics: any number of readers,
// written only by the CPU sampler (cpu_load) and the send loop
// (bandwidth_mbps).
package resource

import "math"

// State is a shared atomic snapshot of {cpu_load, bandwidth_mbps}.
// Zero value is a valid initial state (both fields 0).
type State struct {
	cpuLoadBits atomicFloat
	bandwidth   atomicFloat
}

// New returns a freshly initialized State.
func New() *State { return &State{} }

// CPULoad returns the most recently observed CPU load in [0,1].
func (s *State) CPULoad() float64 { return s.cpuLoadBits.load() }

// SetCPULoad stores a new CPU load sample. Written only by the CPU
// sampler.
func (s *State) SetCPULoad(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	s.cpuLoadBits.store(v)
}

// BandwidthMbps returns the most recently observed bandwidth estimate.
func (s *State) BandwidthMbps() float64 { return s.bandwidth.load() }

// SetBandwidthMbps stores a new bandwidth sample. Written only by the
// send loop's bandwidth estimator.
func (s *State) SetBandwidthMbps(v float64) {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	s.bandwidth.store(v)
}
