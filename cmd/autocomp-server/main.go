// Command autocomp-server runs the autocomp file-transfer server.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/autocomp/autocomp/internal/config"
	"github.com/autocomp/autocomp/internal/logging"
	"github.com/autocomp/autocomp/internal/server"
)

const appName = "autocomp-server"

func main() {
	fs := flag.NewFlagSet(appName, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `%s - adaptive file-transfer server

Usage:
  %s [options]

Options:
  -p <port>        Listening port (default %d)
  -t <n_threads>   Worker pool size (default: number of CPUs)
  --tree <path>    Decision tree file (default %q)
  --log-dir <path> Log directory (default %q)
  --telemetry <path> TRAIN-mode CSV directory (default %q)
  --fifo <path>    Shutdown notifier FIFO path (default %q)
  -v               Verbose logging
`, appName, appName, config.DefaultPort, config.DefaultTreePath, logging.DefaultLogDir(), config.DefaultTelemetryDir, config.DefaultShutdownPipePath)
	}

	port := fs.Uint("p", uint(config.DefaultPort), "listening port")
	threads := fs.Int("t", 0, "worker pool size (0 = auto)")
	treePath := fs.String("tree", config.DefaultTreePath, "decision tree file")
	logDir := fs.String("log-dir", "", "log directory")
	telemetryDir := fs.String("telemetry", config.DefaultTelemetryDir, "TRAIN-mode CSV directory")
	fifoPath := fs.String("fifo", config.DefaultShutdownPipePath, "shutdown notifier FIFO path")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg := config.NewServerConfig(uint16(*port), *threads)
	cfg.TreePath = *treePath
	cfg.TelemetryDir = *telemetryDir
	cfg.ShutdownPipePath = *fifoPath
	cfg.Verbose = *verbose
	if *logDir != "" {
		cfg.LogDir = *logDir
	}

	srv, err := server.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}

	installSignalHandlers(srv)

	if err := srv.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

// installSignalHandlers mirrors the original server's closeout():
// the first SIGINT/SIGTERM/SIGQUIT requests an orderly shutdown by
// writing to the FIFO; a second occurrence stops intercepting the
// signal and re-raises it against this process so default disposition
// (and the conventional 128+signum exit status) takes over.
func installSignalHandlers(srv *server.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigCh
		_ = srv.RequestShutdown()
		sig := <-sigCh
		signal.Stop(sigCh)
		_ = syscall.Kill(os.Getpid(), sig.(syscall.Signal))
	}()
}
