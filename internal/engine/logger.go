package engine

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// statusInterval is the minimum delay between progress lines.
const statusInterval = time.Second

// StatusLogger prints rate-limited, carriage-return progress lines while
// samples are being written. A nil *StatusLogger is valid and silent, so
// callers never have to guard their Log calls.
type StatusLogger struct {
	mu      sync.Mutex
	out     io.Writer
	total   int
	started time.Time
	nextLog time.Time
}

// NewStatusLogger reports progress toward total samples on out.
func NewStatusLogger(out io.Writer, total int) *StatusLogger {
	now := time.Now()
	return &StatusLogger{
		out:     out,
		total:   total,
		started: now,
		nextLog: now,
	}
}

// Log records that written samples are done and prints a status line if
// enough time has passed since the previous one.
func (l *StatusLogger) Log(written int) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Before(l.nextLog) {
		return
	}

	elapsed := now.Sub(l.started).Seconds()
	fraction := float64(written) / float64(l.total)
	estimated := elapsed / fraction

	fmt.Fprintf(l.out, "\rWriting: %.2f%% complete, %.0f elapsed seconds, %.2f estimated total seconds",
		100*fraction, elapsed, estimated)

	l.nextLog = l.nextLog.Add(statusInterval)
	if l.nextLog.Before(now) {
		l.nextLog = now.Add(statusInterval)
	}
}

// Finish terminates the progress line.
func (l *StatusLogger) Finish() {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "\rFinishing...                                                                 \n")
}
