// Package runlog provides an in-memory, per-run log buffer with live
// fan-out. Each run gets a Log that records every line in order; readers
// follow with a since-cursor and can attach late without missing history.
package runlog

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Log is an append-only line buffer for a single run. The full history is
// retained so the complete text can be persisted when the run ends and so
// late subscribers replay from the beginning.
type Log struct {
	mu     sync.Mutex
	cond   *sync.Cond
	lines  []string
	closed bool
}

// NewLog constructs an empty run log.
func NewLog() *Log {
	l := &Log{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Append records a log line and wakes any blocked readers. Appends after
// Close are dropped.
func (l *Log) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.lines = append(l.lines, line)
	l.cond.Broadcast()
}

// Appendf formats and records a log line.
func (l *Log) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Close marks the log terminal and wakes all readers so they can observe
// the end of stream. Close is idempotent.
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.cond.Broadcast()
}

// Closed reports whether the log has been closed.
func (l *Log) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Fetch returns all lines with index >= since along with the next cursor
// and whether the log is closed. When wait is true and no new lines exist,
// Fetch blocks until a line arrives, the log closes, or the context ends.
func (l *Log) Fetch(ctx context.Context, since int, wait bool) ([]string, int, bool, error) {
	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				// Broadcast under the lock so a waiter between its
				// context check and cond.Wait cannot miss the wakeup.
				l.mu.Lock()
				l.cond.Broadcast()
				l.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	l.mu.Lock()
	defer l.mu.Unlock()

	if since < 0 {
		since = 0
	}
	for {
		if since < len(l.lines) {
			out := make([]string, len(l.lines)-since)
			copy(out, l.lines[since:])
			return out, len(l.lines), l.closed, nil
		}
		if l.closed || !wait {
			return nil, len(l.lines), l.closed, nil
		}
		if err := contextError(ctx); err != nil {
			return nil, len(l.lines), l.closed, err
		}
		l.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, len(l.lines), l.closed, err
		}
	}
}

// Text returns the full log body joined with newlines, with a trailing
// newline when non-empty. This is the exact text persisted to the run row.
func (l *Log) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return ""
	}
	return strings.Join(l.lines, "\n") + "\n"
}

// Len returns the number of buffered lines.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
