package gauntlet

import (
	"time"
)

// RunnerState describes the lifecycle position of a test case. State and
// Reasons are only set once Progress is FINISHED.
type RunnerState struct {
	CaseID   uint64
	Name     string
	Progress Progress
	State    Result
	Reasons  []string
	Duration time.Duration
	// Percent is the share of cases of the run that have finished.
	Percent float64
}

// DifferState describes the final state of a differ of a finished case.
type DifferState struct {
	CaseID   uint64
	Name     string
	Runner   string
	State    Result
	Reasons  []string
	Duration time.Duration
	Percent  float64
}

// RunnerResult carries the record of the runner of a finished case.
type RunnerResult struct {
	CaseID uint64
	Name   string
	ExecutionRecord
	Duration time.Duration
	Percent  float64
}

// DifferResult carries the record of a differ of a finished case.
type DifferResult struct {
	CaseID uint64
	Name   string
	Runner string
	ExecutionRecord
	Duration time.Duration
	Percent  float64
}

// Formatter renders progress and results. The scheduler prints whatever a
// formatter returns unless it is empty; it never inspects the text.
type Formatter interface {
	FormatRunnerState(RunnerState) string
	FormatDifferState(DifferState) string
	FormatRunnerResult(RunnerResult) string
	FormatDifferResult(DifferResult) string
	// FormatComplete summarizes a run after every case finished.
	FormatComplete(cases []*TestCase, elapsed time.Duration) string
}

// NopFormatter prints nothing.
type NopFormatter struct{}

func (NopFormatter) FormatRunnerState(RunnerState) string { return "" }
func (NopFormatter) FormatDifferState(DifferState) string { return "" }
func (NopFormatter) FormatRunnerResult(RunnerResult) string { return "" }
func (NopFormatter) FormatDifferResult(DifferResult) string { return "" }
func (NopFormatter) FormatComplete([]*TestCase, time.Duration) string { return "" }
