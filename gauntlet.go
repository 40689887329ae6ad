// Package gauntlet schedules and executes test cases.
//
// A test case binds one Runner, the Differs that check the runner's output
// and the Controllers that decide whether an object may run at all. Groups
// of runners are executed on a bounded pool of workers; the cases of a
// group run in order on the same worker and the first failure skips the
// rest of the group. Every case runs with a preemptive timeout and reports
// its progress and results through a Formatter.
package gauntlet

import (
	"sync/atomic"

	"github.com/raphi011/gauntlet/internal/model"
)

// Reexport to allow library users to reference these types

type Result = model.Result
type Progress = model.Progress
type ExecutionRecord = model.ExecutionRecord

var (
	ResultPass      = model.ResultPass
	ResultSkip      = model.ResultSkip
	ResultTimeout   = model.ResultTimeout
	ResultError     = model.ResultError
	ResultException = model.ResultException
	ResultFatal     = model.ResultFatal
)

const (
	ProgressWaiting  = model.ProgressWaiting
	ProgressRunning  = model.ProgressRunning
	ProgressFinished = model.ProgressFinished
)

// Reasons attached to cases that were skipped by the scheduler rather than
// by a controller.
const (
	ReasonDependency          = "dependency"
	ReasonMaxFailuresExceeded = "max failures exceeded"
	ReasonInterrupted         = "interrupted"
)

// Group is an ordered batch of runners that execute on the same worker.
// Once one of them fails the remaining ones are skipped.
type Group []Runner

// global test case id counter
var currentCase uint64

func nextID() uint64 {
	return atomic.AddUint64(&currentCase, 1)
}
