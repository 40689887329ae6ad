package gauntlet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/raphi011/gauntlet/internal/capture"
)

// T is handed to a single execution of a runner, differ or controller. It
// carries the captured output streams and counts the errors the object
// logged. A fresh T is created for every execution, so counters never leak
// from one execution into the next.
type T struct {
	ctx     context.Context
	name    string
	streams *capture.Streams
	logger  *slog.Logger

	mu       sync.Mutex
	errors   int
	warnings int
	skipped  bool
	reasons  []string
}

func newT(ctx context.Context, name string, streams *capture.Streams) *T {
	return &T{
		ctx:     ctx,
		name:    name,
		streams: streams,
	}
}

// NewT creates a handle with fresh output buffers. It is meant for testing
// objects outside of a scheduler.
func NewT(ctx context.Context, name string) *T {
	return newT(ctx, name, capture.NewStreams(capture.DefaultLimit))
}

// Context is canceled when the test case times out or the run is
// interrupted.
func (t *T) Context() context.Context {
	return t.ctx
}

// Name of the object being executed.
func (t *T) Name() string {
	return t.name
}

// Stdout is the captured standard output of the execution.
func (t *T) Stdout() io.Writer {
	return t.streams.Stdout
}

// Stderr is the captured error output of the execution.
func (t *T) Stderr() io.Writer {
	return t.streams.Stderr
}

// Output returns what has been captured so far.
func (t *T) Output() (stdout, stderr string) {
	return t.streams.Stdout.String(), t.streams.Stderr.String()
}

// Logger writes structured log lines to the captured stderr.
func (t *T) Logger() *slog.Logger {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logger == nil {
		t.logger = t.streams.Logger().With("object", t.name)
	}

	return t.logger
}

func (t *T) Log(args ...any) {
	fmt.Fprintln(t.streams.Stdout, fmt.Sprint(args...))
}

func (t *T) Logf(format string, args ...any) {
	fmt.Fprintln(t.streams.Stdout, fmt.Sprintf(format, args...))
}

func (t *T) Warn(args ...any) {
	t.mu.Lock()
	t.warnings++
	t.mu.Unlock()

	fmt.Fprintln(t.streams.Stderr, "WARNING: "+fmt.Sprint(args...))
}

func (t *T) Warnf(format string, args ...any) {
	t.Warn(fmt.Sprintf(format, args...))
}

// Error logs an error. An object that logged an error fails.
func (t *T) Error(args ...any) {
	t.mu.Lock()
	t.errors++
	t.mu.Unlock()

	fmt.Fprintln(t.streams.Stderr, "ERROR: "+fmt.Sprint(args...))
}

func (t *T) Errorf(format string, args ...any) {
	t.Error(fmt.Sprintf(format, args...))
}

// Errors is the number of errors logged so far.
func (t *T) Errors() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.errors
}

// Warnings is the number of warnings logged so far.
func (t *T) Warnings() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.warnings
}

func (t *T) Failed() bool {
	return t.Errors() > 0
}

// Skip vetoes the execution of the target. It only has an effect when
// called by a controller.
func (t *T) Skip(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.skipped = true
	t.reasons = append(t.reasons, reason)
}

func (t *T) Skipf(format string, args ...any) {
	t.Skip(fmt.Sprintf(format, args...))
}

func (t *T) Skipped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.skipped
}

// Reasons returns the reasons given to Skip.
func (t *T) Reasons() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]string(nil), t.reasons...)
}
