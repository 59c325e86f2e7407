// Command autocomp-client requests a file from an autocomp server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/autocomp/autocomp/internal/client"
	"github.com/autocomp/autocomp/internal/codec"
	"github.com/autocomp/autocomp/internal/config"
	"github.com/autocomp/autocomp/internal/logging"
	"github.com/autocomp/autocomp/internal/wire"
)

const appName = "autocomp-client"

func main() {
	fs := flag.NewFlagSet(appName, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `%s - adaptive file-transfer client

Usage:
  %s -H <host> -f <path> -d <dest_dir> [options]

Required:
  -H <host>        Server hostname or IP
  -f <path>        Remote file or directory path to request
  -d <dest_dir>    Local directory to write received files into

Options:
  -P <port>        Server port (default %d)
  -m <mode>        NO_COMPRESSION | AUTOCOMP | COMPRESS | PRE_COMPRESS | TRAIN
                     (default AUTOCOMP)
  -c <codec>       ZLIB | SNAPPY | LZO | BZIP2 | LZMA | FPC | COPY
                     (required for COMPRESS, PRE_COMPRESS, and TRAIN)
  -l <level>       Compression level (codec-specific range; default per codec)
  --log-dir <path> Log directory (default %q)
  -v               Verbose logging
`, appName, appName, config.DefaultPort, logging.DefaultLogDir())
	}

	host := fs.String("H", "", "server hostname")
	port := fs.Uint("P", uint(config.DefaultPort), "server port")
	filePath := fs.String("f", "", "remote file path")
	destDir := fs.String("d", "", "destination directory")
	modeFlag := fs.String("m", "AUTOCOMP", "transfer mode")
	codecFlag := fs.String("c", "", "codec")
	level := fs.Int("l", codec.NoLevel, "compression level")
	logDir := fs.String("log-dir", "", "log directory")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg := config.NewClientConfig(*host, *filePath, *destDir)
	cfg.Port = uint16(*port)
	cfg.Verbose = *verbose
	if *logDir != "" {
		cfg.LogDir = *logDir
	}

	mode, ok := wire.ParseMode(*modeFlag)
	if !ok {
		fmt.Fprintf(os.Stderr, "%s: unknown mode %q\n", appName, *modeFlag)
		os.Exit(2)
	}
	cfg.Mode = mode

	if *codecFlag != "" {
		kind, ok := codec.ParseKind(*codecFlag)
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: unknown codec %q\n", appName, *codecFlag)
			os.Exit(2)
		}
		cfg.Codec = kind
		cfg.HasCodec = true
		if *level != codec.NoLevel {
			cfg.Level = *level
			cfg.HasLevel = true
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		fs.Usage()
		os.Exit(2)
	}

	logger, err := logging.Setup(cfg.LogDir, "autocomp_client", cfg.Verbose, os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	c := client.New(cfg, logger, client.NewTerminalReporter())
	if err := c.RequestFile(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}
