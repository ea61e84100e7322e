package models

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

const defaultLogInterval = time.Second

// Progress aggregates bytes moved by one or more concurrent transfers and
// logs at most once per interval.
type Progress struct {
	name     string
	expected atomic.Int64
	enabled  bool
	interval time.Duration
	done     atomic.Int64

	mu          sync.Mutex
	lastLogTime time.Time
}

// NewProgress creates a tracker for an operation expected to move expected
// bytes. A disabled tracker still counts but never logs.
func NewProgress(name string, expected int64, enabled bool) *Progress {
	p := &Progress{
		name:        name,
		enabled:     enabled,
		interval:    defaultLogInterval,
		lastLogTime: time.Now(),
	}
	p.expected.Store(expected)
	return p
}

// SetExpected replaces the expected total once it becomes known, for
// example from a response's Content-Length. Negative sizes are ignored.
func (p *Progress) SetExpected(n int64) {
	if n < 0 {
		return
	}
	p.expected.Store(n)
}

func (p *Progress) Add(n int64) {
	total := p.done.Add(n)
	if !p.enabled {
		return
	}

	p.mu.Lock()
	now := time.Now()
	if now.Sub(p.lastLogTime) < p.interval {
		p.mu.Unlock()
		return
	}
	p.lastLogTime = now
	p.mu.Unlock()

	p.log("download progress", total)
}

func (p *Progress) Done() int64 {
	return p.done.Load()
}

// Percent is the share of the expected bytes moved so far, or -1 when nothing
// was expected.
func (p *Progress) Percent() float64 {
	expected := p.expected.Load()
	if expected <= 0 {
		return -1
	}
	return float64(p.Done()) / float64(expected) * 100
}

// Message logs a line for this operation when the tracker is enabled.
func (p *Progress) Message(msg string, args ...any) {
	if !p.enabled {
		return
	}
	slog.Info(msg, append([]any{"operation", p.name}, args...)...)
}

func (p *Progress) Finish() {
	if p.enabled {
		p.log("download finished", p.Done())
	}
}

func (p *Progress) log(msg string, total int64) {
	args := []any{"operation", p.name, "total", humanize.IBytes(uint64(total))}
	if expected := p.expected.Load(); expected > 0 {
		args = append(args, "expected", humanize.IBytes(uint64(expected)), "percent", int(p.Percent()))
	}
	slog.Info(msg, args...)
}

// ProgressWriter counts bytes written to Writer into a Progress.
type ProgressWriter struct {
	Writer   io.Writer
	Progress *Progress
	Total    int64
}

func NewProgressWriter(w io.Writer, p *Progress) *ProgressWriter {
	return &ProgressWriter{Writer: w, Progress: p}
}

func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	if n > 0 {
		pw.Total += int64(n)
		pw.Progress.Add(int64(n))
	}
	return n, err
}
