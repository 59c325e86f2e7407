// Package config holds the configuration types and defaults for the
// autocomp server and client, mirroring the original's
// utils/constants.hpp fixed values as Go constants and constructors.
package config

import (
	"fmt"
	"runtime"

	"github.com/autocomp/autocomp/internal/codec"
	"github.com/autocomp/autocomp/internal/logging"
	"github.com/autocomp/autocomp/internal/util"
	"github.com/autocomp/autocomp/internal/wire"
)

// Fixed defaults carried over from the original implementation's
// constants.hpp.
const (
	DefaultPort             uint16 = 25111
	DefaultShutdownPipePath        = "/tmp/autocomp.fifo"
	DefaultTreePath                = "./models/decision_tree.txt"
	DefaultTelemetryDir            = "./log"
	DefaultChunkSizeBytes          = 64 * 1024
	// DefaultSendBufferCapacityBytes is the fixed acceptor send-buffer
	// capacity §4.P sets on every accepted connection, independent of
	// whatever SO_SNDBUF the kernel happens to report.
	DefaultSendBufferCapacityBytes = 12 * 1024 * 1024
	// MinFreeDestSpaceMB is the minimum free space ClientConfig.Validate
	// requires in DestDir before a transfer starts.
	MinFreeDestSpaceMB = 100
)

// ServerConfig holds all configuration for the autocomp server.
type ServerConfig struct {
	Port   uint16
	Threads int

	LogDir                  string
	Verbose                 bool
	TreePath                string
	TelemetryDir            string
	ShutdownPipePath        string
	ChunkSizeBytes          int
	SendBufferCapacityBytes int
}

// NewServerConfig creates a ServerConfig with default values; port and
// threads of zero fall back to DefaultPort and runtime.NumCPU().
func NewServerConfig(port uint16, threads int) *ServerConfig {
	if port == 0 {
		port = DefaultPort
	}
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &ServerConfig{
		Port:                    port,
		Threads:                 threads,
		LogDir:                  logging.DefaultLogDir(),
		TreePath:                DefaultTreePath,
		TelemetryDir:            DefaultTelemetryDir,
		ShutdownPipePath:        DefaultShutdownPipePath,
		ChunkSizeBytes:          DefaultChunkSizeBytes,
		SendBufferCapacityBytes: DefaultSendBufferCapacityBytes,
	}
}

// Validate checks the configuration for errors.
func (c *ServerConfig) Validate() error {
	if c.Threads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", c.Threads)
	}
	if c.ChunkSizeBytes <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSizeBytes)
	}
	if c.ShutdownPipePath == "" {
		return fmt.Errorf("shutdown pipe path must not be empty")
	}
	return nil
}

// ClientConfig holds all configuration for the autocomp client.
type ClientConfig struct {
	Host string
	Port uint16

	FilePath string
	DestDir  string

	Mode     wire.Mode
	Codec    codec.Kind
	HasCodec bool
	Level    int
	HasLevel bool

	LogDir  string
	Verbose bool
}

// NewClientConfig creates a ClientConfig with default values for the
// mandatory host/file/destination triple.
func NewClientConfig(host, filePath, destDir string) *ClientConfig {
	return &ClientConfig{
		Host:     host,
		Port:     DefaultPort,
		FilePath: filePath,
		DestDir:  destDir,
		Mode:     wire.AutoComp,
		Level:    codec.NoLevel,
		LogDir:   logging.DefaultLogDir(),
	}
}

// Validate checks the configuration for errors.
func (c *ClientConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.FilePath == "" {
		return fmt.Errorf("file path is required")
	}
	if c.DestDir == "" {
		return fmt.Errorf("destination directory is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port must be nonzero")
	}
	if (c.Mode == wire.Compress || c.Mode == wire.Train || c.Mode == wire.PreCompress) && !c.HasCodec {
		return fmt.Errorf("mode %s requires -c codec", c.Mode)
	}
	if available := util.AvailableDiskSpace(c.DestDir); available != 0 {
		if availableMB := available / (1024 * 1024); availableMB < MinFreeDestSpaceMB {
			return fmt.Errorf("insufficient free space in %s: %d MB available, need at least %d MB", c.DestDir, availableMB, MinFreeDestSpaceMB)
		}
	}
	return nil
}
