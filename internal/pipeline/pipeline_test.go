package pipeline

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/autocomp/autocomp/internal/buffer"
	"github.com/autocomp/autocomp/internal/codec"
	"github.com/autocomp/autocomp/internal/resource"
	"github.com/autocomp/autocomp/internal/wire"
)

// dialPipe sets up a real TCP listener/dialer pair so conn.(*net.TCPConn)
// assertions inside the pipeline succeed, then runs Run against the
// accepted side in a background goroutine.
func dialPipe(t *testing.T, deps Deps) (client net.Conn, runDone <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		runErr := Run(context.Background(), conn, deps)
		_ = conn.Close()
		done <- runErr
	}()

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, done
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// readAllFrames reads frames off client until the connection closes
// (the server always closes after draining its send queue).
func readAllFrames(t *testing.T, client net.Conn) [][]byte {
	t.Helper()
	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frames [][]byte
	for {
		f, err := wire.ReadFrame(client)
		if err != nil {
			return frames
		}
		frames = append(frames, f)
	}
}

func TestRunNoCompressionStreamsFileVerbatim(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello autocomp, this is a small file")
	path := writeFile(t, dir, "a.txt", content)

	deps := Deps{Resources: resource.New(), ChunkSizeBytes: 16}
	client, runDone := dialPipe(t, deps)

	req := &wire.FileTransmissionRequest{Filename: path, Mode: wire.NoCompression}
	if err := wire.WriteFrame(client, req.Marshal()); err != nil {
		t.Fatalf("WriteFrame(request): %v", err)
	}

	frames := readAllFrames(t, client)
	if err := <-runDone; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(frames) < 3 {
		t.Fatalf("got %d frames, want at least init+header+payload", len(frames))
	}

	init, err := wire.UnmarshalFileInitialMessage(frames[0])
	if err != nil {
		t.Fatalf("UnmarshalFileInitialMessage: %v", err)
	}
	if init.Filename != path || init.FileSize != uint64(len(content)) || !init.LastFile {
		t.Errorf("init = %+v", init)
	}

	var reassembled []byte
	for i := 1; i < len(frames); i += 2 {
		h, err := wire.UnmarshalChunkHeader(frames[i])
		if err != nil {
			t.Fatalf("UnmarshalChunkHeader: %v", err)
		}
		if h.Compressor != codec.COPY {
			t.Errorf("chunk %d compressor = %v, want COPY", h.ChunkPosition, h.Compressor)
		}
		reassembled = append(reassembled, frames[i+1]...)
	}
	if string(reassembled) != string(content) {
		t.Errorf("reassembled = %q, want %q", reassembled, content)
	}
}

func TestRunCompressModeUsesRequestedCodec(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 4096)
	for i := range content {
		content[i] = byte(i % 7) // compressible: low entropy
	}
	path := writeFile(t, dir, "b.bin", content)

	deps := Deps{Resources: resource.New(), ChunkSizeBytes: 1024}
	client, runDone := dialPipe(t, deps)

	req := &wire.FileTransmissionRequest{
		Filename: path, Mode: wire.Compress,
		Codec: codec.ZLIB, HasCodec: true,
		Level: 6, HasLevel: true,
	}
	if err := wire.WriteFrame(client, req.Marshal()); err != nil {
		t.Fatalf("WriteFrame(request): %v", err)
	}

	frames := readAllFrames(t, client)
	if err := <-runDone; err != nil {
		t.Fatalf("Run: %v", err)
	}

	var reassembled []byte
	for i := 1; i < len(frames); i += 2 {
		h, err := wire.UnmarshalChunkHeader(frames[i])
		if err != nil {
			t.Fatalf("UnmarshalChunkHeader: %v", err)
		}
		if h.Compressor != codec.ZLIB {
			t.Fatalf("chunk %d compressor = %v, want ZLIB", h.ChunkPosition, h.Compressor)
		}
		out := make([]byte, 4096)
		n, err := zlibDecompressForTest(frames[i+1], out)
		if err != nil {
			t.Fatalf("decompress chunk %d: %v", h.ChunkPosition, err)
		}
		reassembled = append(reassembled, out[:n]...)
	}
	if string(reassembled) != string(content) {
		t.Errorf("reassembled mismatch: got %d bytes, want %d", len(reassembled), len(content))
	}
}

func TestRunPreCompressStreamsCopyOfCompressedBlob(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 8192)
	for i := range content {
		content[i] = byte(i % 5)
	}
	path := writeFile(t, dir, "c.bin", content)

	deps := Deps{Resources: resource.New(), ChunkSizeBytes: 1024}
	client, runDone := dialPipe(t, deps)

	req := &wire.FileTransmissionRequest{
		Filename: path, Mode: wire.PreCompress,
		Codec: codec.ZLIB, HasCodec: true,
	}
	if err := wire.WriteFrame(client, req.Marshal()); err != nil {
		t.Fatalf("WriteFrame(request): %v", err)
	}

	frames := readAllFrames(t, client)
	if err := <-runDone; err != nil {
		t.Fatalf("Run: %v", err)
	}

	var compressed []byte
	for i := 1; i < len(frames); i += 2 {
		h, err := wire.UnmarshalChunkHeader(frames[i])
		if err != nil {
			t.Fatalf("UnmarshalChunkHeader: %v", err)
		}
		if h.Compressor != codec.COPY {
			t.Fatalf("chunk %d compressor = %v, want COPY (pre-compressed blob streamed raw)", h.ChunkPosition, h.Compressor)
		}
		compressed = append(compressed, frames[i+1]...)
	}
	out := make([]byte, len(content)*2+4096)
	n, err := zlibDecompressForTest(compressed, out)
	if err != nil {
		t.Fatalf("decompress whole blob: %v", err)
	}
	if string(out[:n]) != string(content) {
		t.Errorf("decompressed blob mismatch: got %d bytes, want %d", n, len(content))
	}
}

func TestRunCompressModeWithoutCodecReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "d.txt", []byte("x"))

	deps := Deps{Resources: resource.New()}
	client, runDone := dialPipe(t, deps)

	req := &wire.FileTransmissionRequest{Filename: path, Mode: wire.Compress}
	if err := wire.WriteFrame(client, req.Marshal()); err != nil {
		t.Fatalf("WriteFrame(request): %v", err)
	}

	frames := readAllFrames(t, client)
	if err := <-runDone; err == nil {
		t.Fatal("Run: expected error for missing codec, got nil")
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want exactly one ErrorMessage", len(frames))
	}
	if _, err := wire.UnmarshalErrorMessage(frames[0]); err != nil {
		t.Fatalf("UnmarshalErrorMessage: %v", err)
	}
}

// zlibDecompressForTest is a thin helper over the codec package's ZLIB
// decompressor, avoiding a buffer.Buffer dance in assertions above.
func zlibDecompressForTest(in []byte, outCap []byte) (int, error) {
	c, err := codec.New(codec.ZLIB, 6)
	if err != nil {
		return 0, err
	}
	inBuf := buffer.New(len(in))
	if err := inBuf.SetData(in); err != nil {
		return 0, err
	}
	outBuf := buffer.New(len(outCap))
	if err := c.Decompress(inBuf, outBuf); err != nil {
		return 0, err
	}
	copy(outCap, outBuf.Data())
	return outBuf.Size(), nil
}
