// Package cpumon runs a background CPU-load sampler that feeds
// internal/resource. gopsutil's cpu.Percent performs the same
// delta-of-kernel-counters computation §4.F describes (Δtotal,
// Δidle+Δiowait) internally, so it is called directly here instead of
// hand-parsing /proc/stat.
package cpumon

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/autocomp/autocomp/internal/logging"
	"github.com/autocomp/autocomp/internal/resource"
)

// SampleInterval is the §4.F sampling period.
const SampleInterval = 500 * time.Millisecond

// Sampler periodically updates a resource.State's cpu_load field.
type Sampler struct {
	state  *resource.State
	log    *logging.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the sampler's background goroutine. Call Stop to
// terminate it.
func Start(state *resource.State, log *logging.Logger) *Sampler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sampler{state: state, log: log, cancel: cancel, done: make(chan struct{})}
	go s.run(ctx)
	return s
}

func (s *Sampler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(SampleInterval)
	defer ticker.Stop()

	// Prime gopsutil's internal delta baseline; the first call has no
	// prior sample to diff against.
	_, _ = cpu.PercentWithContext(ctx, 0, false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			percents, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil || len(percents) == 0 {
				// Counter read failed: retain the last value, per §4.F.
				s.log.Debug("cpumon: sample failed: %v", err)
				continue
			}
			s.state.SetCPULoad(percents[0] / 100.0)
		}
	}
}

// Stop signals the sampler's shutdown flag and waits for it to exit.
func (s *Sampler) Stop() {
	s.cancel()
	<-s.done
}
