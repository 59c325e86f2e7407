// Package telemetry implements the TRAIN-mode performance-data sink:
// an async, single-writer CSV file recording one row per compressed
// chunk, per §4.K/§6's
// AutoComp.CompressorsPerformance.<YYYYMMDD-HHMMSS>.csv file.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/autocomp/autocomp/internal/apperr"
	"github.com/autocomp/autocomp/internal/codec"
)

// Record is one chunk's compression performance sample.
type Record struct {
	Compressor    codec.Kind
	Level         int
	ElapsedMicros int64
	OriginalSize  int
	FinalSize     int
}

// Sink is a background-flushed, mutex-serialized CSV writer: Write
// enqueues a row, waiting only while the row queue is full; a single goroutine owns the
// underlying file and flushes periodically, mirroring the source's
// SynchronizedFile/AsynchronousBuffer pair.
type Sink struct {
	mu             sync.Mutex
	rows           chan []string
	closeRequested chan struct{}
	stopped        chan struct{}
	file           *os.File
	writer         *csv.Writer
}

// flushInterval bounds how long a row can sit buffered before it
// reaches disk.
const flushInterval = 1 * time.Second

// rowQueueCapacity bounds the in-flight row backlog; Write blocks once
// full rather than growing unbounded under sustained TRAIN load.
const rowQueueCapacity = 4096

// New creates the CSV file AutoComp.CompressorsPerformance.<ts>.csv
// under dir and starts its background flush loop.
func New(dir string, ts time.Time) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &apperr.IOError{Msg: fmt.Sprintf("create telemetry directory %s", dir), Underlying: err}
	}
	name := fmt.Sprintf("AutoComp.CompressorsPerformance.%s.csv", ts.Format("20060102-150405"))
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, &apperr.IOError{Msg: fmt.Sprintf("create telemetry file %s", path), Underlying: err}
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"compressor", "compression_level", "elapsed_micros", "original_size", "final_size"}); err != nil {
		_ = f.Close()
		return nil, &apperr.IOError{Msg: "write telemetry header", Underlying: err}
	}
	w.Flush()

	s := &Sink{
		rows:           make(chan []string, rowQueueCapacity),
		closeRequested: make(chan struct{}),
		stopped:        make(chan struct{}),
		file:           f,
		writer:         w,
	}
	go s.run()
	return s, nil
}

// Write enqueues one performance record. Never blocks the compression
// hot path on disk I/O; the background goroutine owns actual writes.
// A Write racing a Close may be silently dropped.
func (s *Sink) Write(r Record) {
	row := []string{
		r.Compressor.String(),
		fmt.Sprintf("%d", r.Level),
		fmt.Sprintf("%d", r.ElapsedMicros),
		fmt.Sprintf("%d", r.OriginalSize),
		fmt.Sprintf("%d", r.FinalSize),
	}
	select {
	case s.rows <- row:
	case <-s.stopped:
	}
}

func (s *Sink) run() {
	defer close(s.stopped)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case row := <-s.rows:
			s.mu.Lock()
			_ = s.writer.Write(row)
			s.mu.Unlock()
		case <-ticker.C:
			s.mu.Lock()
			s.writer.Flush()
			s.mu.Unlock()
		case <-s.closeRequested:
			s.drainAndFlush()
			return
		}
	}
}

func (s *Sink) drainAndFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case row := <-s.rows:
			_ = s.writer.Write(row)
		default:
			s.writer.Flush()
			return
		}
	}
}

// Close stops accepting new rows, drains and flushes what remains,
// and closes the underlying file. The background goroutine, not
// Close, owns the final flush, so the rows channel is never closed
// and a concurrent Write can never panic on a send to a closed
// channel.
func (s *Sink) Close() error {
	close(s.closeRequested)
	<-s.stopped
	s.mu.Lock()
	err := s.file.Close()
	s.mu.Unlock()
	return err
}
