package gauntlet_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/raphi011/gauntlet"
	"github.com/raphi011/gauntlet/params"
	"github.com/stretchr/testify/require"
)

func objectParams(t testing.TB, name string) *params.Params {
	p := gauntlet.ObjectParams()
	require.NoError(t, p.Set("name", name))

	return p
}

type fakeRunner struct {
	gauntlet.RunnerBase
	run   func(t *gauntlet.T) (int, error)
	calls atomic.Int32
}

func newRunner(t testing.TB, name string, run func(t *gauntlet.T) (int, error)) *fakeRunner {
	if run == nil {
		run = func(*gauntlet.T) (int, error) { return 0, nil }
	}

	return &fakeRunner{RunnerBase: gauntlet.NewRunnerBase(objectParams(t, name)), run: run}
}

func (r *fakeRunner) Execute(t *gauntlet.T) (int, error) {
	r.calls.Add(1)
	return r.run(t)
}

type fakeDiffer struct {
	gauntlet.Base
	check func(t *gauntlet.T, returncode int, stdout, stderr string) error
	calls atomic.Int32
}

func newDiffer(t testing.TB, name string, check func(t *gauntlet.T, returncode int, stdout, stderr string) error) *fakeDiffer {
	if check == nil {
		check = func(*gauntlet.T, int, string, string) error { return nil }
	}

	return &fakeDiffer{Base: gauntlet.NewBase(objectParams(t, name)), check: check}
}

func (d *fakeDiffer) Execute(t *gauntlet.T, returncode int, stdout, stderr string) error {
	d.calls.Add(1)
	return d.check(t, returncode, stdout, stderr)
}

type fakeController struct {
	gauntlet.Base
	prefix string
	exec   func(t *gauntlet.T, target gauntlet.Object, cfg *params.Params) error
}

func newController(t testing.TB, name string, exec func(t *gauntlet.T, target gauntlet.Object, cfg *params.Params) error) *fakeController {
	return &fakeController{Base: gauntlet.NewBase(objectParams(t, name)), prefix: name, exec: exec}
}

func (c *fakeController) Prefix() string {
	return c.prefix
}

func (c *fakeController) ObjectParams() *params.Params {
	p := params.New()
	p.Add("allow", params.Bool, params.Default(true))

	return p
}

func (c *fakeController) Execute(t *gauntlet.T, target gauntlet.Object, cfg *params.Params) error {
	return c.exec(t, target, cfg)
}

// recorder is a hook that keeps the cases of the last run.
type recorder struct {
	mu       sync.Mutex
	started  []string
	finished []string
	cases    []*gauntlet.TestCase
	info     gauntlet.RunInfo
}

func (r *recorder) Name() string {
	return "recorder"
}

func (r *recorder) Init() error {
	return nil
}

func (r *recorder) CaseStarted(run gauntlet.RunInfo, tc *gauntlet.TestCase) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.started = append(r.started, tc.Name())
}

func (r *recorder) CaseFinished(run gauntlet.RunInfo, tc *gauntlet.TestCase) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finished = append(r.finished, tc.Name())
}

func (r *recorder) RunFinished(run gauntlet.RunInfo, cases []*gauntlet.TestCase) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.info = run
	r.cases = cases
}

// result returns the result of the case with the given name.
func (r *recorder) result(t testing.TB, name string) (gauntlet.Result, gauntlet.ExecutionRecord) {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tc := range r.cases {
		if tc.Name() != name {
			continue
		}

		state, err := tc.Result()
		require.NoError(t, err)

		record, _ := tc.Record(name)

		return state, record
	}

	t.Fatalf("case %q not found", name)

	return gauntlet.Result{}, gauntlet.ExecutionRecord{}
}
