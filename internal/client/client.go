// Package client implements the autocomp client mirror (§4.Q): it
// sends a FileTransmissionRequest, then receives a stream of
// FileInitialMessage/ChunkHeader/payload frames, decompressing each
// chunk with the codec the header names and writing the result to
// the destination directory.
package client

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/autocomp/autocomp/internal/apperr"
	"github.com/autocomp/autocomp/internal/buffer"
	"github.com/autocomp/autocomp/internal/codec"
	"github.com/autocomp/autocomp/internal/config"
	"github.com/autocomp/autocomp/internal/logging"
	"github.com/autocomp/autocomp/internal/wire"
)

// Client requests and receives files from an autocomp server.
type Client struct {
	cfg      *config.ClientConfig
	logger   *logging.Logger
	reporter Reporter
}

// New creates a Client. reporter may be nil to disable progress output.
func New(cfg *config.ClientConfig, logger *logging.Logger, reporter Reporter) *Client {
	if reporter == nil {
		reporter = noopReporter{}
	}
	return &Client{cfg: cfg, logger: logger, reporter: reporter}
}

// decodedEvent carries one parsed receive-loop event to the
// decompression goroutine, mirroring the original client's
// decompressionQueue without the original's fixed-capacity queue
// (an unbuffered channel provides the same backpressure).
type decodedEvent struct {
	init    *wire.FileInitialMessage
	header  *wire.ChunkHeader
	payload []byte
}

// RequestFile connects to the server, requests cfg.FilePath under
// cfg.Mode, and writes every file the server streams back into
// cfg.DestDir. It blocks until the transfer completes or fails.
func (c *Client) RequestFile(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	c.logger.Info("connecting to %s", addr)
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &apperr.NetworkError{Msg: "connecting to " + addr, Underlying: err}
	}
	defer conn.Close()

	req := &wire.FileTransmissionRequest{
		Filename: c.cfg.FilePath,
		Mode:     c.cfg.Mode,
		Codec:    c.cfg.Codec,
		HasCodec: c.cfg.HasCodec,
		Level:    c.cfg.Level,
		HasLevel: c.cfg.HasLevel,
	}
	c.logger.Info("requesting %s mode=%s codec=%v level=%d", req.Filename, req.Mode, req.Codec, req.Level)
	if err := wire.WriteFrame(conn, req.Marshal()); err != nil {
		return &apperr.NetworkError{Msg: "sending file transmission request", Underlying: err}
	}

	events := make(chan decodedEvent)
	decompressDone := make(chan error, 1)
	go func() {
		decompressDone <- c.decompressLoop(events)
	}()

	recvErr := c.receiveLoop(conn, events)
	close(events)
	decErr := <-decompressDone

	if recvErr != nil {
		return recvErr
	}
	if decErr != nil {
		return decErr
	}
	c.reporter.OperationComplete(fmt.Sprintf("transfer of %s complete", c.cfg.FilePath))
	return nil
}

// receiveLoop reads FileInitialMessage/ChunkHeader/payload frames
// until the server marks the last chunk of the last file, forwarding
// each to events for decompression.
func (c *Client) receiveLoop(conn net.Conn, events chan<- decodedEvent) error {
	lastFile := false
	for !lastFile {
		initFrame, err := wire.ReadFrame(conn)
		if err != nil {
			return &apperr.NetworkError{Msg: "receiving file initial message", Underlying: err}
		}
		init, err := wire.UnmarshalFileInitialMessage(initFrame)
		if err != nil {
			return c.fallbackToError(initFrame, "file initial message")
		}
		c.logger.Info("receiving %s size=%d chunk_size_kb=%d last_file=%v",
			init.Filename, init.FileSize, init.ChunkSizeKB, init.LastFile)
		events <- decodedEvent{init: init}

		lastChunk := false
		for !lastChunk {
			headerFrame, err := wire.ReadFrame(conn)
			if err != nil {
				return &apperr.NetworkError{Msg: "receiving chunk header", Underlying: err}
			}
			header, err := wire.UnmarshalChunkHeader(headerFrame)
			if err != nil {
				return c.fallbackToError(headerFrame, "chunk header")
			}
			payload, err := wire.ReadFrame(conn)
			if err != nil {
				return &apperr.NetworkError{Msg: "receiving chunk payload", Underlying: err}
			}
			events <- decodedEvent{header: header, payload: payload}
			lastChunk = header.LastChunk
		}
		lastFile = init.LastFile
	}
	return nil
}

// fallbackToError tries to parse frame as an ErrorMessage, the way
// the server sends one in place of whatever control message was
// expected; this mirrors the original client's
// deserializeAndCheckMessage fallback.
func (c *Client) fallbackToError(frame []byte, expected string) error {
	if errMsg, err := wire.UnmarshalErrorMessage(frame); err == nil {
		return &apperr.NetworkError{Msg: "server reported: " + errMsg.Message}
	}
	return &apperr.NetworkError{Msg: "received invalid " + expected + " from server"}
}

// fileState tracks the file currently being written by decompressLoop.
type fileState struct {
	name           string
	out            *os.File
	bytesWritten   uint64
	fileSize       uint64
	decompressBuf  *buffer.Buffer
	preCompress    bool
	preCompressExt string
	preCompressKind codec.Kind
	finalName      string
}

// decompressLoop consumes decodedEvents, decompressing each chunk
// with the codec its header names (COPY chunks are written
// verbatim) and writing the result to the destination file. On the
// last chunk of a PRE_COMPRESS file it decompresses the whole
// written file in a second pass and removes the intermediate.
func (c *Client) decompressLoop(events <-chan decodedEvent) error {
	var st *fileState
	for ev := range events {
		if ev.init != nil {
			s, err := c.openDestination(ev.init)
			if err != nil {
				c.reporter.Error(err.Error())
				st = nil
				continue
			}
			st = s
			c.reporter.FileStarted(st.finalName, st.fileSize)
			continue
		}
		if st == nil {
			continue
		}
		if err := c.writeChunk(st, ev.header, ev.payload); err != nil {
			c.reporter.Error(err.Error())
		}
		if ev.header.LastChunk {
			if err := c.finishFile(st); err != nil {
				c.reporter.Error(err.Error())
			}
			st = nil
		}
	}
	return nil
}

func (c *Client) openDestination(init *wire.FileInitialMessage) (*fileState, error) {
	base := filepath.Base(init.Filename)
	preCompress := c.cfg.Mode == wire.PreCompress
	var ext string
	if preCompress && c.cfg.HasCodec {
		ext = c.cfg.Codec.FileExtension()
	}
	writeName := filepath.Join(c.cfg.DestDir, base+ext)

	out, err := os.OpenFile(writeName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, &apperr.IOError{Msg: "creating " + writeName, Underlying: err}
	}

	chunkBytes := int(init.ChunkSizeKB) * 1024
	if chunkBytes <= 0 {
		chunkBytes = 64 * 1024
	}
	return &fileState{
		name:            init.Filename,
		out:             out,
		fileSize:        init.FileSize,
		decompressBuf:   buffer.New(chunkBytes*4 + 4096),
		preCompress:     preCompress,
		preCompressExt:  ext,
		preCompressKind: c.cfg.Codec,
		finalName:       writeName,
	}, nil
}

func (c *Client) writeChunk(st *fileState, header *wire.ChunkHeader, payload []byte) error {
	// PRE_COMPRESS chunks are already COPY on the wire (the whole file
	// was compressed off-path before streaming); write them verbatim
	// and decompress the assembled file once, in finishFile.
	if header.Compressor == codec.COPY || st.preCompress {
		if _, err := st.out.Write(payload); err != nil {
			return &apperr.IOError{Msg: "writing " + st.finalName, Underlying: err}
		}
		st.bytesWritten += uint64(len(payload))
		c.reporter.FileProgress(st.bytesWritten, st.fileSize)
		return nil
	}

	in := buffer.New(len(payload))
	if err := in.SetData(payload); err != nil {
		return &apperr.IOError{Msg: "buffering chunk for " + st.name, Underlying: err}
	}
	dec, err := codec.New(header.Compressor, codec.NoLevel)
	if err != nil {
		return &apperr.IOError{Msg: "unknown compressor in chunk header for " + st.name, Underlying: err}
	}
	if st.decompressBuf.Capacity() < in.Capacity()*4 {
		st.decompressBuf.Resize(in.Capacity()*4 + 4096)
	}
	if err := dec.Decompress(in, st.decompressBuf); err != nil {
		return err
	}
	if _, err := st.out.Write(st.decompressBuf.Data()); err != nil {
		return &apperr.IOError{Msg: "writing " + st.finalName, Underlying: err}
	}
	st.bytesWritten += uint64(st.decompressBuf.Size())
	c.reporter.FileProgress(st.bytesWritten, st.fileSize)
	return nil
}

func (c *Client) finishFile(st *fileState) error {
	if err := st.out.Close(); err != nil {
		return &apperr.IOError{Msg: "closing " + st.finalName, Underlying: err}
	}

	if !st.preCompress || st.preCompressKind == codec.COPY {
		if st.bytesWritten != st.fileSize {
			msg := fmt.Sprintf("corrupted file %s: size should be %d but is %d", st.finalName, st.fileSize, st.bytesWritten)
			c.logger.Warn(msg)
			c.reporter.Warning(msg)
		}
		c.reporter.FileComplete(st.finalName, st.fileSize, st.bytesWritten)
		return nil
	}

	decompressedName := st.finalName[:len(st.finalName)-len(st.preCompressExt)]
	compressedSize := st.bytesWritten
	n, err := decompressWholeFile(st.finalName, decompressedName, st.preCompressKind)
	if err != nil {
		return err
	}
	_ = os.Remove(st.finalName)
	c.reporter.FileComplete(decompressedName, compressedSize, uint64(n))
	return nil
}

// decompressWholeFile decompresses inPath (already fully written by
// the receive loop) into outPath as a single pass, the in-process
// counterpart of PreCompressingFileProcessor::decompressFile.
func decompressWholeFile(inPath, outPath string, kind codec.Kind) (int, error) {
	raw, err := os.ReadFile(inPath)
	if err != nil {
		return 0, &apperr.IOError{Msg: "reading " + inPath, Underlying: err}
	}
	in := buffer.New(len(raw))
	if err := in.SetData(raw); err != nil {
		return 0, &apperr.IOError{Msg: "buffering " + inPath, Underlying: err}
	}
	out := buffer.New(len(raw)*16 + 4096)
	dec, err := codec.New(kind, codec.NoLevel)
	if err != nil {
		return 0, &apperr.IOError{Msg: "unknown pre-compress codec", Underlying: err}
	}
	if err := dec.Decompress(in, out); err != nil {
		return 0, err
	}
	if err := os.WriteFile(outPath, out.Data(), 0644); err != nil {
		return 0, &apperr.IOError{Msg: "writing " + outPath, Underlying: err}
	}
	return out.Size(), nil
}

type noopReporter struct{}

func (noopReporter) FileStarted(string, uint64)         {}
func (noopReporter) FileProgress(uint64, uint64)        {}
func (noopReporter) FileComplete(string, uint64, uint64) {}
func (noopReporter) Warning(string)                     {}
func (noopReporter) Error(string)                       {}
func (noopReporter) OperationComplete(string)           {}
