// Package pipeline implements the per-connection file pipeline (§4.K)
// and its send loop consumer (§4.L): a producer goroutine that reads
// files in chunks, picks a codec per chunk, and frames messages onto a
// bounded queue; a consumer goroutine that drains the queue to the
// socket and samples the bandwidth estimator on every write.
package pipeline

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/autocomp/autocomp/internal/apperr"
	"github.com/autocomp/autocomp/internal/buffer"
	"github.com/autocomp/autocomp/internal/codec"
	"github.com/autocomp/autocomp/internal/discovery"
	"github.com/autocomp/autocomp/internal/filescan"
	"github.com/autocomp/autocomp/internal/logging"
	"github.com/autocomp/autocomp/internal/resource"
	"github.com/autocomp/autocomp/internal/selector"
	"github.com/autocomp/autocomp/internal/telemetry"
	"github.com/autocomp/autocomp/internal/tree"
	"github.com/autocomp/autocomp/internal/wire"
	"github.com/autocomp/autocomp/internal/workerpool"
)

// sendQueueCapacity bounds the producer/consumer queue. The spec
// treats it as unbounded in principle, paced in practice by the
// socket send buffer; a generous finite capacity gets the same
// backpressure effect without an unbounded goroutine-local queue.
const sendQueueCapacity = 64

// defaultChunkSizeBytes is used when a request doesn't otherwise pin
// chunk size; chosen to match the spec's worked examples (64 KiB).
const defaultChunkSizeBytes = 64 * 1024

// Deps are the shared, connection-independent collaborators a
// pipeline run needs.
type Deps struct {
	Resources      *resource.State
	Tree           *tree.Tree
	Telemetry      *telemetry.Sink // nil disables TRAIN-mode telemetry
	Logger         *logging.Logger
	ChunkSizeBytes int

	// SendBufferCapacityBytes overrides the gauge's kernel-reported
	// SO_SNDBUF, matching §4.P's "set acceptor's send-buffer capacity"
	// step. Zero keeps whatever the kernel reports.
	SendBufferCapacityBytes int

	// TransmissionPool, when set, runs the send loop (L) as a job on
	// the server's transmission worker pool instead of a bare
	// goroutine, per §4.O's two-pool separation. Nil is fine for
	// standalone/test use.
	TransmissionPool *workerpool.Pool
}

func (d Deps) chunkSize() int {
	if d.ChunkSizeBytes > 0 {
		return d.ChunkSizeBytes
	}
	return defaultChunkSizeBytes
}

// chunkSelector is the common surface every mode's per-chunk decision
// exposes; *selector.Selector implements it directly for AUTOCOMP.
type chunkSelector interface {
	Select(in, out *buffer.Buffer) (codec.Codec, error)
}

// copySelector always returns COPY: NO_COMPRESSION, and the
// already-compressed tail of a PRE_COMPRESS transfer.
type copySelector struct{}

func (copySelector) Select(in, out *buffer.Buffer) (codec.Codec, error) {
	return codec.Codec{Kind: codec.COPY, Level: codec.NoLevel}, nil
}

// fixedSelector applies one codec to every chunk, ungated: COMPRESS
// and TRAIN. A compression failure downgrades to COPY for that chunk
// only, per the general §4.K/§7 failure semantics.
type fixedSelector struct{ c codec.Codec }

func (f fixedSelector) Select(in, out *buffer.Buffer) (codec.Codec, error) {
	if err := f.c.Compress(in, out); err != nil {
		return codec.Codec{Kind: codec.COPY, Level: codec.NoLevel}, nil
	}
	return f.c, nil
}

// chunkSource is whatever streamChunks pulls fixed-size chunks from:
// either a live file (*filescan.Reader) or an in-memory buffer (the
// PRE_COMPRESS path, §4.K).
type chunkSource interface {
	HasNextChunk() bool
	ReadChunk(buf *buffer.Buffer) error
}

// Run drives one connection end to end: parses the request, builds
// the mode-appropriate selector, streams every file D yields, and
// waits for the send loop to drain before returning.
func Run(ctx context.Context, conn net.Conn, deps Deps) error {
	queue := make(chan []byte, sendQueueCapacity)
	consumerDone := make(chan error, 1)

	gauge, gaugeErr := newGauge(conn)
	if gaugeErr == nil && deps.SendBufferCapacityBytes > 0 {
		gauge.SetSendBufferCapacity(deps.SendBufferCapacityBytes)
	}
	bw := wire.NewBandwidthEstimator(deps.Resources, bandwidthGauge(gauge, gaugeErr))

	if deps.TransmissionPool != nil {
		submitErr := deps.TransmissionPool.Submit(ctx, func(context.Context) error {
			consumerDone <- consume(conn, queue, bw)
			return nil
		})
		if submitErr != nil {
			consumerDone <- submitErr
		}
	} else {
		go func() {
			consumerDone <- consume(conn, queue, bw)
		}()
	}

	prodErr := produce(ctx, conn, queue, deps, gauge, gaugeErr)
	close(queue)
	consErr := <-consumerDone
	bw.Close()

	if prodErr != nil {
		return prodErr
	}
	return consErr
}

// consume is the §4.L send loop: single consumer, FIFO, one socket
// write per entry, bandwidth sampled on every write.
func consume(conn net.Conn, queue <-chan []byte, bw *wire.BandwidthEstimator) error {
	for item := range queue {
		if err := wire.WriteFrame(conn, item); err != nil {
			for range queue {
				// drain remaining entries without writing: a prior
				// socket error means this connection is dead.
			}
			return err
		}
		bw.OnWrite(len(item))
	}
	return nil
}

// produce is the §4.K file pipeline producer.
func produce(ctx context.Context, conn net.Conn, queue chan<- []byte, deps Deps, gauge *wire.SocketGauge, gaugeErr error) error {
	reqFrame, err := wire.ReadFrame(conn)
	if err != nil {
		return err
	}
	req, err := wire.UnmarshalFileTransmissionRequest(reqFrame)
	if err != nil {
		enqueueError(queue, fmt.Sprintf("malformed request: %v", err))
		return &apperr.InvalidRequestParameter{Msg: err.Error()}
	}

	if gaugeErr != nil {
		enqueueError(queue, fmt.Sprintf("socket setup failed: %v", gaugeErr))
		return &apperr.NetworkError{Msg: "socket gauge setup", Underlying: gaugeErr}
	}

	sel, fixedCodec, requestErr := buildSelector(req, deps, gauge)
	if requestErr != nil {
		enqueueError(queue, requestErr.Error())
		return requestErr
	}

	it, err := discovery.New(req.Filename)
	if err != nil {
		enqueueError(queue, fmt.Sprintf("cannot access %s: %v", req.Filename, err))
		return err
	}

	reader := filescan.New(it, deps.chunkSize())
	chunkSizeKB := uint32(deps.chunkSize() / 1024)
	if chunkSizeKB == 0 {
		chunkSizeKB = 1
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		path, size, ok, err := reader.OpenNext()
		if err != nil {
			enqueueError(queue, fmt.Sprintf("cannot open %s: %v", path, err))
			continue
		}
		if !ok {
			break
		}

		initMsg := &wire.FileInitialMessage{
			Filename:    path,
			FileSize:    uint64(size),
			ChunkSizeKB: chunkSizeKB,
			LastFile:    reader.IsLastFile(),
		}
		queue <- initMsg.Marshal()

		var streamErr error
		if req.Mode == wire.PreCompress {
			streamErr = streamPreCompressed(reader, size, deps, fixedCodec, queue)
		} else {
			streamErr = streamChunks(reader, sel, queue, deps, req.Mode)
		}
		if streamErr != nil {
			enqueueError(queue, fmt.Sprintf("I/O error on %s: %v", path, streamErr))
		}
	}
	_ = reader.Close()
	return nil
}

// buildSelector constructs the mode-appropriate per-chunk decision
// maker. For PRE_COMPRESS, sel is unused by the caller (the whole-file
// path handles its own COPY framing) but fixedCodec is returned for it
// to use.
func buildSelector(req *wire.FileTransmissionRequest, deps Deps, gauge *wire.SocketGauge) (sel chunkSelector, fixedCodec codec.Codec, err error) {
	switch req.Mode {
	case wire.NoCompression:
		return copySelector{}, codec.Codec{}, nil
	case wire.AutoComp:
		return selector.New(deps.Resources, gauge, deps.Tree), codec.Codec{}, nil
	case wire.Compress, wire.Train, wire.PreCompress:
		c, err := resolveFixedCodec(req)
		if err != nil {
			return nil, codec.Codec{}, err
		}
		return fixedSelector{c: c}, c, nil
	default:
		return nil, codec.Codec{}, &apperr.InvalidRequestParameter{Msg: fmt.Sprintf("unknown mode %d", req.Mode)}
	}
}

func resolveFixedCodec(req *wire.FileTransmissionRequest) (codec.Codec, error) {
	if !req.HasCodec {
		return codec.Codec{}, &apperr.InvalidRequestParameter{Msg: "mode requires an explicit codec"}
	}
	level := codec.NoLevel
	if req.HasLevel {
		level = req.Level
	}
	c, err := codec.New(req.Codec, level)
	if err != nil {
		return codec.Codec{}, &apperr.InvalidRequestParameter{Msg: err.Error()}
	}
	return c, nil
}

// streamChunks emits one ChunkHeader+payload pair per chunk src
// yields.
func streamChunks(src chunkSource, sel chunkSelector, queue chan<- []byte, deps Deps, mode wire.Mode) error {
	in := buffer.New(deps.chunkSize())
	out := buffer.New(deps.chunkSize()*2 + 4096)
	position := uint64(0)

	for src.HasNextChunk() {
		if err := src.ReadChunk(in); err != nil {
			return err
		}

		start := time.Now()
		decision, selErr := sel.Select(in, out)
		payload := in
		if selErr != nil {
			decision = codec.Codec{Kind: codec.COPY, Level: codec.NoLevel}
		} else if decision.Kind != codec.COPY {
			payload = out
		}

		if deps.Telemetry != nil && mode == wire.Train {
			deps.Telemetry.Write(telemetry.Record{
				Compressor:    decision.Kind,
				Level:         decision.Level,
				ElapsedMicros: time.Since(start).Microseconds(),
				OriginalSize:  in.Size(),
				FinalSize:     payload.Size(),
			})
		}

		lastChunk := !src.HasNextChunk()
		header := &wire.ChunkHeader{Compressor: decision.Kind, ChunkPosition: position, LastChunk: lastChunk}
		queue <- header.Marshal()
		queue <- append([]byte(nil), payload.Data()...)

		position++
	}
	return nil
}

// streamPreCompressed implements PRE_COMPRESS: the whole file is read
// and compressed once, off the per-chunk hot path; the resulting blob
// is then split into chunksize_kb pieces and streamed as COPY (every
// ChunkHeader.compressor is COPY). On a whole-file compression
// failure, the original bytes are streamed as COPY instead.
func streamPreCompressed(reader *filescan.Reader, size int64, deps Deps, c codec.Codec, queue chan<- []byte) error {
	whole, err := readWholeFile(reader, size, deps.chunkSize())
	if err != nil {
		return err
	}

	compressed := compressWhole(whole, c)
	src := newMemSource(compressed, deps.chunkSize())
	return streamChunks(src, copySelector{}, queue, deps, wire.PreCompress)
}

func readWholeFile(reader *filescan.Reader, size int64, chunkSize int) ([]byte, error) {
	out := make([]byte, 0, size)
	buf := buffer.New(chunkSize)
	for reader.HasNextChunk() {
		if err := reader.ReadChunk(buf); err != nil {
			return nil, err
		}
		out = append(out, buf.Data()...)
	}
	return out, nil
}

func compressWhole(whole []byte, c codec.Codec) []byte {
	in := buffer.New(len(whole))
	if err := in.SetData(whole); err != nil {
		return whole
	}
	out := buffer.New(len(whole)*2 + 4096)
	if err := c.Compress(in, out); err != nil {
		return whole
	}
	return append([]byte(nil), out.Data()...)
}

// memSource is a chunkSource over an in-memory byte slice.
type memSource struct {
	data      []byte
	pos       int
	chunkSize int
}

func newMemSource(data []byte, chunkSize int) *memSource {
	return &memSource{data: data, chunkSize: chunkSize}
}

func (s *memSource) HasNextChunk() bool { return s.pos < len(s.data) }

func (s *memSource) ReadChunk(buf *buffer.Buffer) error {
	end := s.pos + s.chunkSize
	if end > len(s.data) {
		end = len(s.data)
	}
	if err := buf.SetData(s.data[s.pos:end]); err != nil {
		return err
	}
	s.pos = end
	return nil
}

func enqueueError(queue chan<- []byte, msg string) {
	e := &wire.ErrorMessage{Message: msg}
	queue <- e.Marshal()
}

func newGauge(conn net.Conn) (*wire.SocketGauge, error) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return nil, fmt.Errorf("pipeline: connection is not a *net.TCPConn")
	}
	return wire.NewSocketGauge(tcp)
}

// noopGauge stands in for a *wire.SocketGauge when gauge setup failed;
// it reports an always-empty send buffer so the bandwidth estimator
// never dereferences a nil socket gauge.
type noopGauge struct{}

func (noopGauge) BytesInSendBuffer() int { return 0 }

func bandwidthGauge(gauge *wire.SocketGauge, gaugeErr error) interface{ BytesInSendBuffer() int } {
	if gaugeErr != nil || gauge == nil {
		return noopGauge{}
	}
	return gauge
}
