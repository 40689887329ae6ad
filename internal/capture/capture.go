// Package capture collects the output written while a single runner, differ
// or controller executes.
//
// A fresh set of Streams is handed down the call stack for every execution,
// so concurrent workers never share or interleave captured text.
package capture

import (
	"log/slog"
	"sync"
)

// DefaultLimit is the number of bytes kept per stream.
const DefaultLimit = 1024 * 1024

// Buffer keeps only the last N bytes written to it, which is enough to
// report a representative tail of a chatty command without retaining all
// of its output in memory.
type Buffer struct {
	maxBytes int

	mu       sync.Mutex
	total    int64
	contents []byte
}

func NewBuffer(maxBytes int) *Buffer {
	if maxBytes <= 0 {
		maxBytes = DefaultLimit
	}

	return &Buffer{maxBytes: maxBytes}
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	b.contents = append(b.contents, p...)

	if len(b.contents) > b.maxBytes {
		b.contents = b.contents[len(b.contents)-b.maxBytes:]
	}

	return len(p), nil
}

// String returns the retained output.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.contents)
}

// TotalBytes is the number of bytes written, including discarded ones.
func (b *Buffer) TotalBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.total
}

// Truncated reports whether the beginning of the output was discarded.
func (b *Buffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return int64(len(b.contents)) < b.total
}

// Streams is the pair of output sinks of one execution.
type Streams struct {
	Stdout *Buffer
	Stderr *Buffer
}

func NewStreams(maxBytes int) *Streams {
	return &Streams{
		Stdout: NewBuffer(maxBytes),
		Stderr: NewBuffer(maxBytes),
	}
}

// Logger returns a structured logger writing to the captured stderr.
func (s *Streams) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(s.Stderr, &slog.HandlerOptions{
		ReplaceAttr: dropTime,
	}))
}

// timestamps make captured output impossible to compare between runs
func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}

	return a
}
