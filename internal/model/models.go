// The `model`s package holds the types shared between the scheduler, the
// formatters and the status server. It only exists to avoid cyclic
// dependencies; types required by a library user such as `Result` are
// reexported by the gauntlet package.
package model

import (
	"fmt"
	"strings"
)

// Progress is the lifecycle position of a test case. It only ever moves
// forward: WAITING -> RUNNING -> FINISHED.
type Progress int

const (
	ProgressWaiting Progress = iota
	ProgressRunning
	ProgressFinished
)

func (p Progress) String() string {
	switch p {
	case ProgressWaiting:
		return "WAITING"
	case ProgressRunning:
		return "RUNNING"
	case ProgressFinished:
		return "FINISHED"
	}

	return fmt.Sprintf("Progress(%d)", int(p))
}

func (p Progress) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Progress) UnmarshalText(b []byte) error {
	for _, candidate := range []Progress{ProgressWaiting, ProgressRunning, ProgressFinished} {
		if candidate.String() == string(b) {
			*p = candidate
			return nil
		}
	}

	return fmt.Errorf("unknown progress %q", string(b))
}

// Result is the outcome of executing a test case or one of its objects.
// Results are compared by Level (see Worse), the Label is the identity of the tag.
type Result struct {
	// Level is the severity, 0 is non-failing and everything above fails.
	Level int
	// Label is the canonical name of the result, e.g. "PASS".
	Label string
}

var (
	ResultPass      = Result{Level: 0, Label: "PASS"}
	ResultSkip      = Result{Level: 0, Label: "SKIP"}
	ResultTimeout   = Result{Level: 1, Label: "TIMEOUT"}
	ResultError     = Result{Level: 1, Label: "ERROR"}
	ResultException = Result{Level: 1, Label: "EXCEPTION"}
	ResultFatal     = Result{Level: 1, Label: "FATAL"}
)

// Results lists every result in ascending severity order.
var Results = []Result{ResultPass, ResultSkip, ResultTimeout, ResultError, ResultException, ResultFatal}

func (r Result) String() string {
	return r.Label
}

// Failed reports whether the result has a non-zero severity level.
func (r Result) Failed() bool {
	return r.Level > 0
}

// Worse reports whether r is more severe than other. FATAL marks a broken
// harness rather than a broken test and outranks every other result of the
// same level.
func (r Result) Worse(other Result) bool {
	if r.Level != other.Level {
		return r.Level > other.Level
	}

	return r == ResultFatal && other != ResultFatal
}

// MaxResult returns the most severe result. On ties the first one wins.
func MaxResult(results ...Result) Result {
	worst := ResultPass

	for i, r := range results {
		if i == 0 || r.Worse(worst) {
			worst = r
		}
	}

	return worst
}

// ParseResult looks up a result by its label (case insensitive).
func ParseResult(label string) (Result, error) {
	for _, r := range Results {
		if strings.EqualFold(r.Label, label) {
			return r, nil
		}
	}

	return Result{}, fmt.Errorf("unknown result %q", label)
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.Label), nil
}

func (r *Result) UnmarshalText(b []byte) error {
	parsed, err := ParseResult(string(b))
	if err != nil {
		return err
	}

	*r = parsed

	return nil
}

// ExecutionRecord is the immutable outcome of executing a single Runner or
// Differ.
type ExecutionRecord struct {
	// State is the result of the execution.
	State Result `json:"state"`
	// ReturnCode is only set for runners that finished executing.
	ReturnCode *int `json:"returncode,omitempty"`
	// Stdout contains everything the object wrote to its standard output.
	Stdout string `json:"stdout"`
	// Stderr contains everything the object (and the controllers consulted
	// before it) wrote to its error output.
	Stderr string `json:"stderr"`
	// Reasons are human readable explanations, e.g. why a controller
	// skipped the object.
	Reasons []string `json:"reasons,omitempty"`
}

// IntPtr returns a pointer to a copy of i.
func IntPtr(i int) *int {
	return &i
}
