package gauntlet

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/raphi011/gauntlet/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcRunner struct {
	RunnerBase
	run func(t *T) (int, error)
}

func newFuncRunner(t *testing.T, name string, run func(t *T) (int, error)) *funcRunner {
	p := ObjectParams()
	require.NoError(t, p.Set("name", name))

	return &funcRunner{RunnerBase: NewRunnerBase(p), run: run}
}

func (r *funcRunner) Execute(t *T) (int, error) {
	return r.run(t)
}

func collect(events chan event) []event {
	close(events)

	all := []event{}
	for e := range events {
		all = append(all, e)
	}

	return all
}

func TestCaseDurationFollowsProgress(t *testing.T) {
	t.Parallel()

	clk := fakeclock.NewFakeClock(time.Now())

	tc := newTestCase(newFuncRunner(t, "runner", nil), nil, nil, clk)

	clk.Increment(2 * time.Second)
	assert.Equal(t, 2*time.Second, tc.Duration(), "waiting cases report the time since creation")

	require.NoError(t, tc.SetProgress(ProgressRunning))
	clk.Increment(3 * time.Second)
	assert.Equal(t, 3*time.Second, tc.Duration(), "running cases report the time since start")

	require.NoError(t, tc.SetProgress(ProgressFinished))
	clk.Increment(time.Minute)
	assert.Equal(t, 3*time.Second, tc.Duration(), "finished cases have a frozen duration")
}

func TestCaseThatNeverRanHasNoDuration(t *testing.T) {
	t.Parallel()

	clk := fakeclock.NewFakeClock(time.Now())

	tc := newTestCase(newFuncRunner(t, "runner", nil), nil, nil, clk)
	clk.Increment(time.Second)

	require.NoError(t, tc.SetProgress(ProgressFinished))
	assert.Zero(t, tc.Duration())
}

func TestGroupSkipsRemainingCasesAfterAFailure(t *testing.T) {
	t.Parallel()

	executed := []string{}
	run := func(name string, fail bool) func(t *T) (int, error) {
		return func(t *T) (int, error) {
			executed = append(executed, name)
			if fail {
				t.Error("failed")
			}
			return 0, nil
		}
	}

	s := New(WithTimeout(time.Minute))

	cases := []*TestCase{
		newTestCase(newFuncRunner(t, "first", run("first", false)), nil, nil, s.clock),
		newTestCase(newFuncRunner(t, "second", run("second", true)), nil, nil, s.clock),
		newTestCase(newFuncRunner(t, "third", run("third", false)), nil, nil, s.clock),
		newTestCase(newFuncRunner(t, "fourth", run("fourth", false)), nil, nil, s.clock),
	}

	events := make(chan event, 2*len(cases))
	s.runGroup(context.Background(), slog.Default(), cases, events)

	all := collect(events)

	assert.Equal(t, []string{"first", "second"}, executed)
	require.Len(t, all, 6)

	assert.IsType(t, caseStartedEvent{}, all[0])
	assert.Equal(t, ResultPass, all[1].(caseFinishedEvent).state)
	assert.IsType(t, caseStartedEvent{}, all[2])
	assert.Equal(t, ResultError, all[3].(caseFinishedEvent).state)

	for i, name := range []string{"third", "fourth"} {
		e := all[4+i].(caseFinishedEvent)

		assert.Equal(t, cases[2+i].ID(), e.CaseID())
		assert.Equal(t, ResultSkip, e.state)
		assert.Equal(t, []string{ReasonDependency}, e.records[name].Reasons)
	}
}

func TestSkippedCaseDoesNotSkipTheRestOfTheGroup(t *testing.T) {
	t.Parallel()

	s := New()

	skipAll := &funcController{prefix: "skip", exec: func(t *T, target Object, cfg *params.Params) error {
		if target.Name() == "first" {
			t.Skip("not today")
		}
		return nil
	}}

	cases := []*TestCase{
		newTestCase(newFuncRunner(t, "first", func(*T) (int, error) { return 0, nil }), []Controller{skipAll}, nil, s.clock),
		newTestCase(newFuncRunner(t, "second", func(*T) (int, error) { return 0, nil }), []Controller{skipAll}, nil, s.clock),
	}

	events := make(chan event, 2*len(cases))
	s.runGroup(context.Background(), slog.Default(), cases, events)

	all := collect(events)
	require.Len(t, all, 4)

	assert.Equal(t, ResultSkip, all[1].(caseFinishedEvent).state)
	assert.Equal(t, ResultPass, all[3].(caseFinishedEvent).state)
}

func TestInterruptedGroupStopsBetweenCases(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New()

	cases := []*TestCase{
		newTestCase(newFuncRunner(t, "first", func(t *T) (int, error) {
			cancel()
			// the running case is not interrupted
			return 0, t.Context().Err()
		}), nil, nil, s.clock),
		newTestCase(newFuncRunner(t, "second", func(*T) (int, error) { return 0, nil }), nil, nil, s.clock),
	}

	events := make(chan event, 2*len(cases))
	s.runGroup(ctx, slog.Default(), cases, events)

	all := collect(events)
	require.Len(t, all, 2, "the second case must not start")
	assert.Equal(t, ResultPass, all[1].(caseFinishedEvent).state)
}

func TestCaseExceedingTheTimeoutIsReportedAsTimeout(t *testing.T) {
	t.Parallel()

	clk := fakeclock.NewFakeClock(time.Now())
	s := New(WithClock(clk), WithTimeout(5*time.Second))

	logged := make(chan struct{})
	canceled := make(chan struct{})

	tc := newTestCase(newFuncRunner(t, "hanging", func(t *T) (int, error) {
		t.Log("waiting for the service")
		close(logged)
		<-t.Context().Done()
		close(canceled)
		return 0, t.Context().Err()
	}), nil, nil, clk)

	done := make(chan outcome, 1)
	go func() {
		done <- s.executeIsolated(context.Background(), tc)
	}()

	<-logged
	clk.WaitForWatcherAndIncrement(5 * time.Second)

	var o outcome
	select {
	case o = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("execution did not time out")
	}

	assert.Equal(t, ResultTimeout, o.state)
	assert.Nil(t, o.records["hanging"].ReturnCode)
	assert.Equal(t, []string{"max time (5s) exceeded"}, o.records["hanging"].Reasons)
	assert.Equal(t, "waiting for the service\n", o.records["hanging"].Stdout, "output written before the timeout is kept")

	select {
	case <-canceled:
	case <-time.After(5 * time.Second):
		t.Fatal("the context of the timed out case was not canceled")
	}
}

func TestCaseFinishingInTimeKeepsItsResult(t *testing.T) {
	t.Parallel()

	s := New(WithTimeout(time.Minute))

	tc := newTestCase(newFuncRunner(t, "quick", func(*T) (int, error) {
		return 0, errors.New("boom")
	}), nil, nil, s.clock)

	o := s.executeIsolated(context.Background(), tc)

	assert.Equal(t, ResultException, o.state)
}

type funcController struct {
	prefix string
	exec   func(t *T, target Object, cfg *params.Params) error
}

func (c *funcController) Name() string {
	return c.prefix
}

func (c *funcController) Params() *params.Params {
	return nil
}

func (c *funcController) Prefix() string {
	return c.prefix
}

func (c *funcController) ObjectParams() *params.Params {
	return params.New()
}

func (c *funcController) Execute(t *T, target Object, cfg *params.Params) error {
	return c.exec(t, target, cfg)
}
