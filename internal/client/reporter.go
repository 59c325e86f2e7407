package client

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/autocomp/autocomp/internal/util"
)

// Reporter receives progress notifications while a file transfer
// runs. TerminalReporter is the default implementation; tests can
// substitute a no-op.
type Reporter interface {
	FileStarted(name string, size uint64)
	FileProgress(received, total uint64)
	FileComplete(name string, original, final uint64)
	Warning(message string)
	Error(message string)
	OperationComplete(message string)
}

// TerminalReporter prints colored, progress-bar-driven status to the
// terminal, the same shape (and the same two libraries) as the
// teacher's encode-progress reporting, retargeted to file transfers.
type TerminalReporter struct {
	mu       sync.Mutex
	progress *progressbar.ProgressBar
	cyan     *color.Color
	green    *color.Color
	yellow   *color.Color
	red      *color.Color
	bold     *color.Color
}

// NewTerminalReporter creates a TerminalReporter.
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{
		cyan:   color.New(color.FgCyan, color.Bold),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow, color.Bold),
		red:    color.New(color.FgRed, color.Bold),
		bold:   color.New(color.Bold),
	}
}

func (r *TerminalReporter) FileStarted(name string, size uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Println()
	_, _ = r.cyan.Printf("RECEIVING %s\n", name)
	fmt.Printf("  size: %s\n", util.FormatBytesReadable(size))
	r.progress = progressbar.NewOptions64(
		int64(size),
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (r *TerminalReporter) FileProgress(received, total uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress == nil {
		return
	}
	_ = r.progress.Set64(int64(received))
}

func (r *TerminalReporter) FileComplete(name string, original, final uint64) {
	r.mu.Lock()
	progress := r.progress
	r.progress = nil
	r.mu.Unlock()
	if progress != nil {
		_ = progress.Finish()
	}

	reduction := util.CalculateReductionPercent(original, final)
	fmt.Printf("  %s %s (%s -> %s, %.1f%% reduction)\n",
		r.green.Sprint("done"), name,
		util.FormatBytesReadable(original), util.FormatBytesReadable(final), reduction)
}

func (r *TerminalReporter) Warning(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR %s\n", message)
}

func (r *TerminalReporter) OperationComplete(message string) {
	fmt.Println()
	fmt.Printf("%s %s\n", r.green.Add(color.Bold).Sprint("done"), r.bold.Sprint(message))
}
