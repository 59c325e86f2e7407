// Package server implements the autocomp connection acceptor (§4.N)
// and server lifecycle (§4.P): a listener multiplexed against a
// named-pipe shutdown notifier, a pair of bounded worker pools running
// the per-connection pipeline, and a CPU sampler feeding shared
// resource state.
package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sys/unix"

	"github.com/autocomp/autocomp/internal/config"
	"github.com/autocomp/autocomp/internal/cpumon"
	"github.com/autocomp/autocomp/internal/logging"
	"github.com/autocomp/autocomp/internal/pipeline"
	"github.com/autocomp/autocomp/internal/resource"
	"github.com/autocomp/autocomp/internal/telemetry"
	"github.com/autocomp/autocomp/internal/tree"
	"github.com/autocomp/autocomp/internal/workerpool"
)

// Server owns the listening socket, the named-pipe shutdown notifier,
// and the two worker pools that run the per-connection pipeline.
type Server struct {
	cfg *config.ServerConfig

	listener *net.TCPListener

	fifoPath     string
	fifoReadFile *os.File
	fifoWriteFD  int // -1 until openShutdownNotifier succeeds
	shutdownCh   chan struct{}

	requestPool      *workerpool.Pool
	transmissionPool *workerpool.Pool

	resources *resource.State
	tree      *tree.Tree
	telemetry *telemetry.Sink
	logger    *logging.Logger
	sampler   *cpumon.Sampler

	ctx    context.Context
	cancel context.CancelFunc

	doneServing atomic.Bool
	shutdownOne sync.Once
}

// New initializes a Server in the strict order §4.P requires: logger;
// telemetry sink; request (and transmission) pool; shutdown notifier;
// acceptor socket; acceptor send-buffer capacity; done_serving=false;
// CPU sampler.
func New(cfg *config.ServerConfig) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	t, err := tree.Load(cfg.TreePath)
	if err != nil {
		return nil, fmt.Errorf("loading decision tree: %w", err)
	}

	logger, err := logging.Setup(cfg.LogDir, "autocomp_server", cfg.Verbose, os.Args)
	if err != nil {
		return nil, fmt.Errorf("setting up logger: %w", err)
	}

	sink, err := telemetry.New(cfg.TelemetryDir, time.Now())
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("creating telemetry sink: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:              cfg,
		fifoPath:         cfg.ShutdownPipePath,
		shutdownCh:       make(chan struct{}),
		requestPool:      workerpool.New(int64(cfg.Threads)),
		transmissionPool: workerpool.New(int64(cfg.Threads)),
		resources:        resource.New(),
		tree:             t,
		telemetry:        sink,
		logger:           logger,
		ctx:              ctx,
		cancel:           cancel,
		fifoWriteFD:      -1,
	}

	if err := s.openShutdownNotifier(); err != nil {
		cancel()
		_ = sink.Close()
		_ = logger.Close()
		return nil, err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		s.closeShutdownNotifier()
		cancel()
		_ = sink.Close()
		_ = logger.Close()
		return nil, fmt.Errorf("listening on port %d: %w", cfg.Port, err)
	}
	s.listener = ln.(*net.TCPListener)
	if cfg.SendBufferCapacityBytes > 0 {
		if raw, err := s.listener.SyscallConn(); err == nil {
			_ = raw.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBufferCapacityBytes)
			})
		}
	}

	s.doneServing.Store(false)
	s.sampler = cpumon.Start(s.resources, s.logger)

	if vm, err := mem.VirtualMemory(); err == nil {
		logger.Info("available memory at startup: %d MiB (%.1f%% used)", vm.Available/(1024*1024), vm.UsedPercent)
	}

	logger.Info("server initialized on port %d with %d threads", cfg.Port, cfg.Threads)
	return s, nil
}

// openShutdownNotifier creates the FIFO at s.fifoPath (unlinking a
// stale one first), spawns a goroutine that blocks on its read end,
// and opens the write end so that open() handshake completes without
// waiting on an external process. A read of any byte (from this
// process's signal handler or an external `echo > fifo`) triggers
// shutdown.
func (s *Server) openShutdownNotifier() error {
	_ = os.Remove(s.fifoPath)
	if err := unix.Mkfifo(s.fifoPath, 0600); err != nil {
		return fmt.Errorf("creating shutdown pipe %s: %w", s.fifoPath, err)
	}

	opened := make(chan error, 1)
	go func() {
		f, err := os.OpenFile(s.fifoPath, os.O_RDONLY, 0)
		if err != nil {
			opened <- err
			return
		}
		s.fifoReadFile = f
		opened <- nil

		buf := make([]byte, 1)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				close(s.shutdownCh)
				return
			}
			if err != nil {
				return
			}
		}
	}()

	fd, err := unix.Open(s.fifoPath, unix.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening shutdown pipe %s for write: %w", s.fifoPath, err)
	}
	s.fifoWriteFD = fd

	return <-opened
}

func (s *Server) closeShutdownNotifier() {
	if s.fifoWriteFD >= 0 {
		_ = unix.Close(s.fifoWriteFD)
		s.fifoWriteFD = -1
	}
	if s.fifoReadFile != nil {
		_ = s.fifoReadFile.Close()
	}
	_ = os.Remove(s.fifoPath)
}

// Addr returns the acceptor's bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// RequestShutdown writes one byte to the shutdown pipe, the same
// mechanism a signal handler or an external process uses.
func (s *Server) RequestShutdown() error {
	_, err := unix.Write(s.fifoWriteFD, []byte{1})
	return err
}

// Serve runs the acceptor loop until shutdown is requested, then
// shuts the server down and returns.
func (s *Server) Serve() error {
	s.logger.Info("serving")

	acceptCh := make(chan net.Conn)
	acceptErrCh := make(chan error, 1)
	go func() {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				acceptErrCh <- err
				return
			}
			acceptCh <- conn
		}
	}()

	for {
		select {
		case conn := <-acceptCh:
			s.logger.Info("accepted connection from %s", conn.RemoteAddr())
			c := conn
			if err := s.requestPool.Submit(s.ctx, func(ctx context.Context) error {
				return pipeline.Run(ctx, c, s.pipelineDeps())
			}); err != nil {
				s.logger.Warn("dropping connection, request pool closed: %v", err)
				_ = c.Close()
			}
		case <-acceptErrCh:
			return s.Shutdown()
		case <-s.shutdownCh:
			return s.Shutdown()
		}
	}
}

func (s *Server) pipelineDeps() pipeline.Deps {
	return pipeline.Deps{
		Resources:               s.resources,
		Tree:                    s.tree,
		Telemetry:               s.telemetry,
		Logger:                  s.logger,
		ChunkSizeBytes:          s.cfg.ChunkSizeBytes,
		SendBufferCapacityBytes: s.cfg.SendBufferCapacityBytes,
		TransmissionPool:        s.transmissionPool,
	}
}

// Shutdown tears the server down in §4.P's order: close notifier;
// close acceptor; shut the request pool down (joins workers); mark
// done_serving; join the CPU sampler; drop the telemetry sink.
// Idempotent.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOne.Do(func() {
		s.logger.Info("shutting server down")
		s.closeShutdownNotifier()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.cancel()
		_ = s.requestPool.Wait()
		_ = s.transmissionPool.Wait()
		s.doneServing.Store(true)
		s.sampler.Stop()
		err = s.telemetry.Close()
		_ = s.logger.Close()
	})
	return err
}
