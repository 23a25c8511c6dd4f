package renderer

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/df07/go-sphere-pathtracer/pkg/core"
)

// GlogLogger implements core.Logger on top of glog's info log
type GlogLogger struct{}

// Printf logs one info line attributed to the caller
func (GlogLogger) Printf(format string, args ...interface{}) {
	glog.InfoDepth(1, fmt.Sprintf(format, args...))
}

// NewGlogLogger creates a logger that writes through glog
func NewGlogLogger() core.Logger {
	return GlogLogger{}
}

// ProgressReporter receives scanline progress from a sequential render
type ProgressReporter interface {
	// ScanlinesRemaining is called before each row starts and once with 0 when the image is done
	ScanlinesRemaining(remaining, total int)
}

// LogProgress reports scanline progress at a bounded rate. On a terminal it
// rewrites a single status line; otherwise it writes glog info lines.
type LogProgress struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	out      io.Writer
	terminal bool
}

// NewLogProgress creates a reporter writing to stderr at most once per interval
func NewLogProgress(interval time.Duration) *LogProgress {
	return &LogProgress{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		out:      os.Stderr,
		terminal: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// ScanlinesRemaining implements ProgressReporter
func (p *LogProgress) ScanlinesRemaining(remaining, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	done := remaining == 0
	if !done && !p.limiter.Allow() {
		return
	}

	if p.terminal {
		fmt.Fprintf(p.out, "\rRemaining lines to render: %d ", remaining)
		if done {
			fmt.Fprintln(p.out)
		}
		return
	}

	if done {
		glog.Infof("Rendered all %d lines", total)
		return
	}
	glog.Infof("Remaining lines to render: %d of %d", remaining, total)
}

// nopProgress discards progress
type nopProgress struct{}

func (nopProgress) ScanlinesRemaining(int, int) {}
