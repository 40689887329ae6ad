package gauntlet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/raphi011/gauntlet/internal/capture"
	"github.com/raphi011/gauntlet/internal/model"
	"github.com/raphi011/gauntlet/params"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrNotFinished is returned when the result of a test case is requested
// before it finished.
var ErrNotFinished = errors.New("test case has not finished")

// TestCase is the unit of scheduling. It binds a runner, its differs and the
// active controllers and tracks the progress and result of their execution.
//
// A TestCase must only be mutated by the goroutine that owns the run; the
// workers only ever call Execute, which does not touch the case's state.
type TestCase struct {
	id          uint64
	runner      Runner
	differs     []Differ
	controllers []Controller
	formatter   Formatter
	clock       clock.Clock
	outputLimit int

	progress Progress
	result   Result
	records  map[string]ExecutionRecord

	created  time.Time
	started  time.Time
	finished time.Time
}

// NewTestCase creates a waiting test case. formatter may be nil.
func NewTestCase(runner Runner, controllers []Controller, formatter Formatter) *TestCase {
	return newTestCase(runner, controllers, formatter, clock.NewClock())
}

func newTestCase(runner Runner, controllers []Controller, formatter Formatter, clk clock.Clock) *TestCase {
	return &TestCase{
		id:          nextID(),
		runner:      runner,
		differs:     runner.Differs(),
		controllers: controllers,
		formatter:   formatter,
		clock:       clk,
		outputLimit: capture.DefaultLimit,
		progress:    ProgressWaiting,
		records:     map[string]ExecutionRecord{},
		created:     clk.Now(),
	}
}

// ID is unique within the process and correlates queued results with the
// case they belong to.
func (tc *TestCase) ID() uint64 {
	return tc.id
}

// Name is the name of the runner.
func (tc *TestCase) Name() string {
	return tc.runner.Name()
}

func (tc *TestCase) Runner() Runner {
	return tc.runner
}

func (tc *TestCase) Differs() []Differ {
	return tc.differs
}

func (tc *TestCase) Progress() Progress {
	return tc.progress
}

// SetProgress moves the case forward in its lifecycle. Progress never
// regresses; trying to do so returns an InvariantError.
func (tc *TestCase) SetProgress(p Progress) error {
	if p < tc.progress {
		return model.InvariantError{Msg: fmt.Sprintf("progress of case %d (%s) cannot go from %s to %s", tc.id, tc.Name(), tc.progress, p)}
	}
	if p == tc.progress {
		return nil
	}

	now := tc.clock.Now()

	switch p {
	case ProgressRunning:
		tc.started = now
	case ProgressFinished:
		tc.finished = now
	}

	tc.progress = p

	return nil
}

// Result is only available once the case finished.
func (tc *TestCase) Result() (Result, error) {
	if tc.progress != ProgressFinished {
		return Result{}, ErrNotFinished
	}

	return tc.result, nil
}

// SetResult stores the outcome of a finished case.
func (tc *TestCase) SetResult(state Result, records map[string]ExecutionRecord) error {
	if tc.progress != ProgressFinished {
		return model.InvariantError{Msg: fmt.Sprintf("result of case %d (%s) set while %s", tc.id, tc.Name(), tc.progress)}
	}

	tc.result = state
	tc.records = maps.Clone(records)

	return nil
}

// Records returns the execution records keyed by object name.
func (tc *TestCase) Records() map[string]ExecutionRecord {
	return maps.Clone(tc.records)
}

// Record returns the execution record of a single object.
func (tc *TestCase) Record(name string) (ExecutionRecord, bool) {
	r, ok := tc.records[name]
	return r, ok
}

// Duration is the time spent waiting while WAITING, the time spent running
// while RUNNING and frozen once FINISHED. Cases that finished without ever
// running report zero.
func (tc *TestCase) Duration() time.Duration {
	switch tc.progress {
	case ProgressWaiting:
		return tc.clock.Since(tc.created)
	case ProgressRunning:
		return tc.clock.Since(tc.started)
	}

	if tc.started.IsZero() {
		return 0
	}

	return tc.finished.Sub(tc.started)
}

// Execute runs the runner and, if it passed, its differs. It returns the
// overall result and the record of every object that executed. Execute does
// not modify the case.
func (tc *TestCase) Execute(ctx context.Context) (Result, map[string]ExecutionRecord) {
	return tc.execute(ctx, nil)
}

// execute publishes the streams of the object that is executing on live,
// which may be nil.
func (tc *TestCase) execute(ctx context.Context, live *liveOutput) (Result, map[string]ExecutionRecord) {
	records := map[string]ExecutionRecord{}

	runnerRecord := tc.executeObject(ctx, live, tc.runner, func(t *T) (*int, error) {
		rc, err := tc.runner.Execute(t)
		if err != nil {
			return nil, err
		}
		return &rc, nil
	})

	records[tc.runner.Name()] = runnerRecord

	// differs only check runners that passed, a skipped runner has no output
	if runnerRecord.State != ResultPass {
		return runnerRecord.State, records
	}

	state := runnerRecord.State
	returncode := 0
	if runnerRecord.ReturnCode != nil {
		returncode = *runnerRecord.ReturnCode
	}

	for _, d := range tc.differs {
		differ := d
		record := tc.executeObject(ctx, live, differ, func(t *T) (*int, error) {
			return nil, differ.Execute(t, returncode, runnerRecord.Stdout, runnerRecord.Stderr)
		})

		records[differ.Name()] = record
		state = model.MaxResult(state, record.State)
	}

	return state, records
}

// liveOutput gives access to the output of the object that is currently
// executing, so it can be reported when the case is abandoned.
type liveOutput struct {
	mu      sync.Mutex
	streams *capture.Streams
}

func (l *liveOutput) set(s *capture.Streams) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.streams = s
}

func (l *liveOutput) output() (stdout, stderr string) {
	if l == nil {
		return "", ""
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.streams == nil {
		return "", ""
	}

	return l.streams.Stdout.String(), l.streams.Stderr.String()
}

// executeObject runs the admission controllers and then call for obj. All
// output is captured into buffers owned by this execution.
func (tc *TestCase) executeObject(ctx context.Context, live *liveOutput, obj Object, call func(t *T) (*int, error)) ExecutionRecord {
	streams := capture.NewStreams(tc.outputLimit)
	live.set(streams)

	record := func(state Result, returncode *int, reasons []string) ExecutionRecord {
		return ExecutionRecord{
			State:      state,
			ReturnCode: returncode,
			Stdout:     streams.Stdout.String(),
			Stderr:     streams.Stderr.String(),
			Reasons:    reasons,
		}
	}

	if err := reset(obj); err != nil {
		fmt.Fprintf(streams.Stderr, "resetting %q failed: %v\n", obj.Name(), err)
		return record(ResultFatal, nil, nil)
	}

	target := newT(ctx, obj.Name(), streams)

	for _, c := range tc.controllers {
		controller := c

		if err := reset(controller); err != nil {
			fmt.Fprintf(streams.Stderr, "resetting controller %q failed: %v\n", controller.Name(), err)
			return record(ResultFatal, nil, nil)
		}

		ct := newT(ctx, controller.Name(), streams)

		err := safeCall(func() error {
			return controller.Execute(ct, obj, controllerConfig(controller, obj))
		})
		if err != nil {
			fmt.Fprintf(streams.Stderr, "controller %q failed on %q: %v\n", controller.Name(), obj.Name(), err)
			return record(ResultFatal, nil, nil)
		}

		if ct.Failed() || target.Failed() {
			fmt.Fprintf(streams.Stderr, "controller %q logged errors on %q\n", controller.Name(), obj.Name())
			return record(ResultFatal, nil, nil)
		}

		if ct.Skipped() {
			return record(ResultSkip, nil, ct.Reasons())
		}
	}

	var returncode *int

	err := safeCall(func() error {
		var err error
		returncode, err = call(target)
		return err
	})
	if err != nil {
		fmt.Fprintf(streams.Stderr, "%s: %v\n", obj.Name(), err)
		return record(ResultException, nil, nil)
	}

	if target.Failed() {
		return record(ResultError, returncode, nil)
	}

	return record(ResultPass, returncode, nil)
}

// controllerConfig returns the section obj carries for c. Objects built
// without that section get the defaults of the controller.
func controllerConfig(c Controller, obj Object) *params.Params {
	p := obj.Params()

	if p != nil {
		if kind, ok := p.Kind(c.Prefix()); ok && kind == params.Section {
			return p.Section(c.Prefix())
		}
	}

	return c.ObjectParams()
}

func reset(obj Object) error {
	r, ok := obj.(Resetter)
	if !ok {
		return nil
	}

	return safeCall(r.Reset)
}

// safeCall converts a panic in f into an error.
func safeCall(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	return f()
}

// reportProgress prints the state of a running case.
func (tc *TestCase) reportProgress(w io.Writer, percent float64) {
	if tc.formatter == nil || tc.progress != ProgressRunning {
		return
	}

	printNonEmpty(w, tc.formatter.FormatRunnerState(RunnerState{
		CaseID:   tc.id,
		Name:     tc.Name(),
		Progress: tc.progress,
		Duration: tc.Duration(),
		Percent:  percent,
	}))
}

// reportResults prints the final state and the records of a finished case,
// the runner first and then the differs in order.
func (tc *TestCase) reportResults(w io.Writer, percent float64) {
	if tc.formatter == nil || tc.progress != ProgressFinished {
		return
	}

	name := tc.Name()
	runnerRecord := tc.records[name]

	printNonEmpty(w, tc.formatter.FormatRunnerState(RunnerState{
		CaseID:   tc.id,
		Name:     name,
		Progress: tc.progress,
		State:    tc.result,
		Reasons:  runnerRecord.Reasons,
		Duration: tc.Duration(),
		Percent:  percent,
	}))

	printNonEmpty(w, tc.formatter.FormatRunnerResult(RunnerResult{
		CaseID:          tc.id,
		Name:            name,
		ExecutionRecord: runnerRecord,
		Duration:        tc.Duration(),
		Percent:         percent,
	}))

	for _, differName := range tc.differNames() {
		record := tc.records[differName]

		printNonEmpty(w, tc.formatter.FormatDifferState(DifferState{
			CaseID:   tc.id,
			Name:     differName,
			Runner:   name,
			State:    record.State,
			Reasons:  record.Reasons,
			Duration: tc.Duration(),
			Percent:  percent,
		}))

		printNonEmpty(w, tc.formatter.FormatDifferResult(DifferResult{
			CaseID:          tc.id,
			Name:            differName,
			Runner:          name,
			ExecutionRecord: record,
			Duration:        tc.Duration(),
			Percent:         percent,
		}))
	}
}

// differNames returns the names of the differs that have a record, in the
// order the differs are attached. Records of unknown objects come last.
func (tc *TestCase) differNames() []string {
	names := []string{}
	known := map[string]bool{tc.Name(): true}

	for _, d := range tc.differs {
		known[d.Name()] = true
		if _, ok := tc.records[d.Name()]; ok {
			names = append(names, d.Name())
		}
	}

	rest := []string{}
	for _, name := range maps.Keys(tc.records) {
		if !known[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)

	return append(names, rest...)
}

func printNonEmpty(w io.Writer, s string) {
	if s == "" {
		return
	}

	fmt.Fprintln(w, s)
}
