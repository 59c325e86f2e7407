package server

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/autocomp/autocomp/internal/config"
	"github.com/autocomp/autocomp/internal/wire"
)

// dialWithRetry retries the dial briefly since the background Serve
// goroutine may not have finished accepting setup yet, though the
// listener is already bound by the time New returns.
func dialWithRetry(addr string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(10 * time.Millisecond)
	}
	return nil, lastErr
}

const alwaysCopyTree = `
1
copy
3
1
-1 -1 0 0 0
`

func newTestConfig(t *testing.T) *config.ServerConfig {
	t.Helper()
	dir := t.TempDir()
	treePath := filepath.Join(dir, "tree.txt")
	if err := os.WriteFile(treePath, []byte(alwaysCopyTree), 0644); err != nil {
		t.Fatal(err)
	}
	return &config.ServerConfig{
		Port:                    0, // ephemeral
		Threads:                 2,
		LogDir:                  filepath.Join(dir, "log"),
		TreePath:                treePath,
		TelemetryDir:            filepath.Join(dir, "telemetry"),
		ShutdownPipePath:        filepath.Join(dir, "shutdown.fifo"),
		ChunkSizeBytes:          4096,
		SendBufferCapacityBytes: 0,
	}
}

func TestNewFailsOnMissingTree(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.TreePath = filepath.Join(t.TempDir(), "nonexistent.txt")
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for missing decision tree")
	}
}

func TestServeAcceptsConnectionAndShutsDownOnRequest(t *testing.T) {
	cfg := newTestConfig(t)
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve() }()

	dir := t.TempDir()
	filePath := filepath.Join(dir, "f.txt")
	content := []byte("autocomp server smoke test content")
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		t.Fatal(err)
	}

	client, err := dialWithRetry(srv.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	req := &wire.FileTransmissionRequest{Filename: filePath, Mode: wire.NoCompression}
	if err := wire.WriteFrame(client, req.Marshal()); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(3 * time.Second))
	init, err := wire.ReadFrame(client)
	if err != nil {
		t.Fatalf("ReadFrame(init): %v", err)
	}
	initMsg, err := wire.UnmarshalFileInitialMessage(init)
	if err != nil {
		t.Fatalf("UnmarshalFileInitialMessage: %v", err)
	}
	if initMsg.FileSize != uint64(len(content)) {
		t.Errorf("FileSize = %d, want %d", initMsg.FileSize, len(content))
	}

	if err := srv.RequestShutdown(); err != nil {
		t.Fatalf("RequestShutdown: %v", err)
	}

	select {
	case err := <-serveDone:
		if err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after shutdown request")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	cfg := newTestConfig(t)
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := srv.Shutdown(); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := srv.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
