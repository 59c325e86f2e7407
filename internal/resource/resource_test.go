package resource

import (
	"sync"
	"testing"
)

func TestSetAndGet(t *testing.T) {
	s := New()
	s.SetCPULoad(0.42)
	s.SetBandwidthMbps(12.5)
	if got := s.CPULoad(); got != 0.42 {
		t.Errorf("CPULoad() = %v, want 0.42", got)
	}
	if got := s.BandwidthMbps(); got != 12.5 {
		t.Errorf("BandwidthMbps() = %v, want 12.5", got)
	}
}

func TestClamping(t *testing.T) {
	s := New()
	s.SetCPULoad(-1)
	if got := s.CPULoad(); got != 0 {
		t.Errorf("CPULoad() = %v, want 0", got)
	}
	s.SetCPULoad(2)
	if got := s.CPULoad(); got != 1 {
		t.Errorf("CPULoad() = %v, want 1", got)
	}
	s.SetBandwidthMbps(-5)
	if got := s.BandwidthMbps(); got != 0 {
		t.Errorf("BandwidthMbps() = %v, want 0", got)
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.SetCPULoad(float64(i%2) * 0.5)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = s.CPULoad()
		}
	}()
	wg.Wait()
}
