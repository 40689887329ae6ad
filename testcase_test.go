package gauntlet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/raphi011/gauntlet"
	"github.com/raphi011/gauntlet/internal/model"
	"github.com/raphi011/gauntlet/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseProgressNeverRegresses(t *testing.T) {
	t.Parallel()

	tc := gauntlet.NewTestCase(newRunner(t, "runner", nil), nil, nil)

	assert.Equal(t, gauntlet.ProgressWaiting, tc.Progress())
	require.NoError(t, tc.SetProgress(gauntlet.ProgressRunning))
	require.NoError(t, tc.SetProgress(gauntlet.ProgressFinished))

	err := tc.SetProgress(gauntlet.ProgressRunning)

	var invariant model.InvariantError
	assert.True(t, errors.As(err, &invariant), "expected an invariant error, got %v", err)
	assert.Equal(t, gauntlet.ProgressFinished, tc.Progress())
}

func TestCaseResultIsOnlyAvailableOnceFinished(t *testing.T) {
	t.Parallel()

	tc := gauntlet.NewTestCase(newRunner(t, "runner", nil), nil, nil)

	_, err := tc.Result()
	assert.ErrorIs(t, err, gauntlet.ErrNotFinished)

	assert.Error(t, tc.SetResult(gauntlet.ResultPass, nil), "setting the result of a waiting case should fail")

	require.NoError(t, tc.SetProgress(gauntlet.ProgressFinished))
	require.NoError(t, tc.SetResult(gauntlet.ResultError, map[string]gauntlet.ExecutionRecord{
		"runner": {State: gauntlet.ResultError},
	}))

	state, err := tc.Result()
	require.NoError(t, err)
	assert.Equal(t, gauntlet.ResultError, state)
}

func TestCaseIDsAreUnique(t *testing.T) {
	t.Parallel()

	a := gauntlet.NewTestCase(newRunner(t, "a", nil), nil, nil)
	b := gauntlet.NewTestCase(newRunner(t, "b", nil), nil, nil)

	assert.NotEqual(t, a.ID(), b.ID())
}

func TestPassingRunnerRecordsOutputAndReturnCode(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, "runner", func(t *gauntlet.T) (int, error) {
		t.Log("hello")
		t.Warn("careful")
		return 3, nil
	})

	tc := gauntlet.NewTestCase(runner, nil, nil)

	state, records := tc.Execute(context.Background())

	assert.Equal(t, gauntlet.ResultPass, state)

	want := map[string]gauntlet.ExecutionRecord{
		"runner": {
			State:      gauntlet.ResultPass,
			ReturnCode: model.IntPtr(3),
			Stdout:     "hello\n",
			Stderr:     "WARNING: careful\n",
		},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("unexpected records (-want +got):\n%s", diff)
	}
}

func TestFailingRunnerSkipsItsDiffers(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, "runner", func(t *gauntlet.T) (int, error) {
		t.Error("broken")
		return 1, nil
	})
	first := newDiffer(t, "first", nil)
	second := newDiffer(t, "second", nil)
	runner.AttachDiffers(first, second)

	tc := gauntlet.NewTestCase(runner, nil, nil)

	state, records := tc.Execute(context.Background())

	assert.Equal(t, gauntlet.ResultError, state)
	assert.Len(t, records, 1, "only the runner should have a record")
	assert.Equal(t, model.IntPtr(1), records["runner"].ReturnCode)
	assert.Contains(t, records["runner"].Stderr, "ERROR: broken")
	assert.Zero(t, first.calls.Load(), "differs of a failed runner must not execute")
	assert.Zero(t, second.calls.Load(), "differs of a failed runner must not execute")
}

func TestRunnerReturningAnErrorIsAnException(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, "runner", func(t *gauntlet.T) (int, error) {
		return 0, errors.New("boom")
	})

	state, records := gauntlet.NewTestCase(runner, nil, nil).Execute(context.Background())

	assert.Equal(t, gauntlet.ResultException, state)
	assert.Nil(t, records["runner"].ReturnCode)
	assert.Contains(t, records["runner"].Stderr, "boom")
}

func TestPanickingRunnerIsAnException(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, "runner", func(t *gauntlet.T) (int, error) {
		panic("oh no")
	})

	state, records := gauntlet.NewTestCase(runner, nil, nil).Execute(context.Background())

	assert.Equal(t, gauntlet.ResultException, state)
	assert.Contains(t, records["runner"].Stderr, "panic: oh no")
}

func TestFailingDifferFailsTheCase(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, "runner", func(t *gauntlet.T) (int, error) {
		t.Log("output")
		return 7, nil
	})

	var gotReturnCode int
	var gotStdout string

	matching := newDiffer(t, "matching", func(t *gauntlet.T, returncode int, stdout, stderr string) error {
		gotReturnCode = returncode
		gotStdout = stdout
		return nil
	})
	failing := newDiffer(t, "failing", func(t *gauntlet.T, returncode int, stdout, stderr string) error {
		t.Errorf("unexpected return code %d", returncode)
		return nil
	})
	runner.AttachDiffers(matching, failing)

	state, records := gauntlet.NewTestCase(runner, nil, nil).Execute(context.Background())

	assert.Equal(t, gauntlet.ResultError, state)
	assert.Equal(t, 7, gotReturnCode)
	assert.Equal(t, "output\n", gotStdout)
	assert.Equal(t, gauntlet.ResultPass, records["matching"].State)
	assert.Equal(t, gauntlet.ResultError, records["failing"].State)
	assert.Nil(t, records["failing"].ReturnCode, "differs have no return code")
}

func TestControllerSkipVetoesTheRunner(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, "runner", nil)
	controller := newController(t, "gate", func(t *gauntlet.T, target gauntlet.Object, cfg *params.Params) error {
		t.Skip("x")
		return nil
	})

	state, records := gauntlet.NewTestCase(runner, []gauntlet.Controller{controller}, nil).Execute(context.Background())

	assert.Equal(t, gauntlet.ResultSkip, state)
	assert.Equal(t, []string{"x"}, records["runner"].Reasons)
	assert.Zero(t, runner.calls.Load(), "a skipped runner must not execute")
}

func TestSkippedRunnerSkipsItsDiffers(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, "runner", nil)
	differ := newDiffer(t, "differ", func(t *gauntlet.T, returncode int, stdout, stderr string) error {
		t.Error("compared against missing output")
		return nil
	})
	runner.AttachDiffers(differ)

	controller := newController(t, "platform", func(t *gauntlet.T, target gauntlet.Object, cfg *params.Params) error {
		if target.Name() == "runner" {
			t.Skip("platform not allowed")
		}
		return nil
	})

	state, records := gauntlet.NewTestCase(runner, []gauntlet.Controller{controller}, nil).Execute(context.Background())

	assert.Equal(t, gauntlet.ResultSkip, state)
	assert.Len(t, records, 1, "only the runner should have a record")
	assert.Equal(t, []string{"platform not allowed"}, records["runner"].Reasons)
	assert.Zero(t, runner.calls.Load())
	assert.Zero(t, differ.calls.Load(), "differs of a skipped runner must not execute")
}

func TestControllerReadsTheSectionOfItsTarget(t *testing.T) {
	t.Parallel()

	controller := newController(t, "gate", func(t *gauntlet.T, target gauntlet.Object, cfg *params.Params) error {
		if !cfg.Bool("allow") {
			t.Skipf("%s is not allowed", target.Name())
		}
		return nil
	})

	p := objectParams(t, "runner")
	p.AddSection(controller.Prefix(), controller.ObjectParams())
	require.NoError(t, p.Set("gate", map[string]any{"allow": false}))

	runner := &fakeRunner{RunnerBase: gauntlet.NewRunnerBase(p), run: func(*gauntlet.T) (int, error) { return 0, nil }}

	allowed := newRunner(t, "allowed", nil)

	state, records := gauntlet.NewTestCase(runner, []gauntlet.Controller{controller}, nil).Execute(context.Background())
	assert.Equal(t, gauntlet.ResultSkip, state)
	assert.Equal(t, []string{"runner is not allowed"}, records["runner"].Reasons)

	state, _ = gauntlet.NewTestCase(allowed, []gauntlet.Controller{controller}, nil).Execute(context.Background())
	assert.Equal(t, gauntlet.ResultPass, state, "objects without a section use the defaults")
}

func TestControllerLoggingAnErrorIsFatal(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, "runner", nil)
	controller := newController(t, "gate", func(t *gauntlet.T, target gauntlet.Object, cfg *params.Params) error {
		t.Error("cannot decide")
		return nil
	})

	state, records := gauntlet.NewTestCase(runner, []gauntlet.Controller{controller}, nil).Execute(context.Background())

	assert.Equal(t, gauntlet.ResultFatal, state)
	assert.Contains(t, records["runner"].Stderr, "cannot decide")
	assert.Zero(t, runner.calls.Load())
}

func TestControllerFailuresAreFatal(t *testing.T) {
	t.Parallel()

	tests := map[string]func(t *gauntlet.T, target gauntlet.Object, cfg *params.Params) error{
		"error": func(*gauntlet.T, gauntlet.Object, *params.Params) error { return errors.New("boom") },
		"panic": func(*gauntlet.T, gauntlet.Object, *params.Params) error { panic("boom") },
	}

	for name, exec := range tests {
		exec := exec

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			runner := newRunner(t, "runner", nil)
			controller := newController(t, "gate", exec)

			state, _ := gauntlet.NewTestCase(runner, []gauntlet.Controller{controller}, nil).Execute(context.Background())

			assert.Equal(t, gauntlet.ResultFatal, state)
			assert.Zero(t, runner.calls.Load())
		})
	}
}

func TestFatalDifferOutranksFailingDiffer(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, "runner", nil)
	failing := newDiffer(t, "failing", func(t *gauntlet.T, returncode int, stdout, stderr string) error {
		t.Error("mismatch")
		return nil
	})
	broken := newDiffer(t, "broken", nil)
	runner.AttachDiffers(failing, broken)

	controller := newController(t, "gate", func(t *gauntlet.T, target gauntlet.Object, cfg *params.Params) error {
		if target.Name() == "broken" {
			return errors.New("cannot inspect")
		}
		return nil
	})

	state, records := gauntlet.NewTestCase(runner, []gauntlet.Controller{controller}, nil).Execute(context.Background())

	assert.Equal(t, gauntlet.ResultFatal, state)
	assert.Equal(t, gauntlet.ResultError, records["failing"].State)
	assert.Equal(t, gauntlet.ResultFatal, records["broken"].State)
}

type resettingRunner struct {
	*fakeRunner
	err error
}

func (r *resettingRunner) Reset() error {
	return r.err
}

func TestFailingResetIsFatal(t *testing.T) {
	t.Parallel()

	runner := &resettingRunner{fakeRunner: newRunner(t, "runner", nil), err: errors.New("stuck")}

	state, records := gauntlet.NewTestCase(runner, nil, nil).Execute(context.Background())

	assert.Equal(t, gauntlet.ResultFatal, state)
	assert.Contains(t, records["runner"].Stderr, "stuck")
	assert.Zero(t, runner.calls.Load())
}

func TestErrorCountersAreNotSharedBetweenExecutions(t *testing.T) {
	t.Parallel()

	fail := true
	runner := newRunner(t, "runner", func(t *gauntlet.T) (int, error) {
		if fail {
			t.Error("first execution fails")
		}
		return 0, nil
	})

	tc := gauntlet.NewTestCase(runner, nil, nil)

	state, _ := tc.Execute(context.Background())
	assert.Equal(t, gauntlet.ResultError, state)

	fail = false

	state, _ = tc.Execute(context.Background())
	assert.Equal(t, gauntlet.ResultPass, state)
}
