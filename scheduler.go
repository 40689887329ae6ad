package gauntlet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"github.com/raphi011/gauntlet/exitcodes"
	"github.com/raphi011/gauntlet/internal/capture"
	"github.com/raphi011/gauntlet/internal/metric"
	"github.com/raphi011/gauntlet/internal/model"
	"golang.org/x/sync/errgroup"
)

// Scheduler executes groups of runners on a bounded pool of workers.
type Scheduler struct {
	workers      int
	timeout      time.Duration
	maxFailures  int
	threshold    Result
	formatter    Formatter
	controllers  []Controller
	hooks        *hookManager
	out          io.Writer
	pollInterval time.Duration
	outputLimit  int
	clock        clock.Clock

	// executes a group on a worker, runGroup unless replaced in tests
	groupRunner func(ctx context.Context, log *slog.Logger, cases []*TestCase, events chan<- event)

	log *slog.Logger
}

func New(opts ...Option) *Scheduler {
	log := slog.Default()

	s := &Scheduler{
		workers:      runtime.NumCPU(),
		timeout:      300 * time.Second,
		maxFailures:  -1,
		threshold:    ResultTimeout,
		formatter:    NopFormatter{},
		hooks:        newHookManager(log),
		out:          os.Stdout,
		pollInterval: 100 * time.Millisecond,
		outputLimit:  capture.DefaultLimit,
		clock:        clock.NewClock(),
		log:          log,
	}

	s.groupRunner = s.runGroup

	for _, o := range opts {
		o(s)
	}

	return s
}

// Controllers returns the controllers consulted before every object runs.
// Discovery uses them to merge their sections into the object schemas.
func (s *Scheduler) Controllers() []Controller {
	return s.controllers
}

// run is the state of a single invocation of Run. It is owned by the
// goroutine executing Run.
type run struct {
	info     RunInfo
	groups   [][]*TestCase
	cases    []*TestCase
	byID     map[uint64]*TestCase
	finished int
	failures int
}

func (r *run) percent() float64 {
	if len(r.cases) == 0 {
		return 100
	}

	return float64(r.finished) / float64(len(r.cases)) * 100
}

func (s *Scheduler) newRun(groups []Group) *run {
	r := &run{
		info:   RunInfo{ID: uuid.NewString(), Start: s.clock.Now()},
		groups: make([][]*TestCase, 0, len(groups)),
		byID:   map[uint64]*TestCase{},
	}

	for _, g := range groups {
		cases := make([]*TestCase, 0, len(g))

		for _, runner := range g {
			tc := newTestCase(runner, s.controllers, s.formatter, s.clock)
			tc.outputLimit = s.outputLimit

			cases = append(cases, tc)
			r.cases = append(r.cases, tc)
			r.byID[tc.ID()] = tc
		}

		r.groups = append(r.groups, cases)
	}

	return r
}

// Run executes the groups and blocks until every test case finished. It
// returns exitcodes.TestFailure if any case reached the failure threshold.
//
// Once the failure budget is exceeded or ctx is canceled no further groups
// are started. Groups that are already running finish their current case;
// every case that did not run is reported as skipped.
func (s *Scheduler) Run(ctx context.Context, groups []Group) (int, error) {
	if err := s.hooks.init(); err != nil {
		return exitcodes.RuntimeErr, err
	}

	r := s.newRun(groups)

	log := s.log.With("run-id", r.info.ID)
	log.Info("run started", "groups", len(r.groups), "cases", len(r.cases), "workers", s.workers)

	s.hooks.notifyRunStarted(r.info, r.cases)

	// every case produces at most two events, workers never block on sending
	events := make(chan event, 2*len(r.cases)+1)

	poolCtx, cancelPool := context.WithCancel(ctx)
	defer cancelPool()

	poolDone := s.startPool(ctx, poolCtx, log, r.groups, events)

	cutoff, err := s.poll(ctx, r, events, poolDone, cancelPool, log)
	if err != nil {
		return exitcodes.RuntimeErr, err
	}

	<-poolDone

	if cutoff == "" && ctx.Err() != nil {
		cutoff = ReasonInterrupted
	}

	for _, tc := range r.cases {
		if tc.Progress() == ProgressFinished {
			continue
		}
		if cutoff == "" {
			return exitcodes.RuntimeErr, model.InvariantError{Msg: fmt.Sprintf("case %d (%s) never finished", tc.ID(), tc.Name())}
		}
		if err := s.apply(r, skippedEvent(tc, cutoff), log); err != nil {
			return exitcodes.RuntimeErr, err
		}
	}

	if err := checkDrained(events); err != nil {
		return exitcodes.RuntimeErr, err
	}

	elapsed := s.clock.Since(r.info.Start)

	if s.formatter != nil {
		printNonEmpty(s.out, s.formatter.FormatComplete(r.cases, elapsed))
	}

	metric.RunDuration.Observe(elapsed.Seconds())

	code := exitcodes.Success

	for _, tc := range r.cases {
		if state, _ := tc.Result(); s.countsAsFailure(state) {
			code = exitcodes.TestFailure
			break
		}
	}

	r.info.End = s.clock.Now()
	r.info.ExitCode = code

	log.Info("run finished", "exit-code", code, "elapsed", elapsed, "failures", r.failures)

	s.hooks.notifyRunFinished(r.info, r.cases)

	return code, nil
}

// startPool submits one task per group. Tasks that get a worker after
// poolCtx was canceled return without running their group. The returned
// channel is closed once every task returned.
func (s *Scheduler) startPool(ctx, poolCtx context.Context, log *slog.Logger, groups [][]*TestCase, events chan<- event) <-chan struct{} {
	done := make(chan struct{})

	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	go func() {
		defer close(done)

		for i, cases := range groups {
			i, cases := i, cases

			g.Go(func() error {
				if poolCtx.Err() != nil {
					metric.GroupsCanceled.Inc()
					return nil
				}

				s.groupRunner(ctx, log.With("group", i), cases, events)

				return nil
			})
		}

		_ = g.Wait()
	}()

	return done
}

// poll applies the events of the workers until every case finished or the
// workers stopped. It returns the reason the run was cut short, if it was.
func (s *Scheduler) poll(ctx context.Context, r *run, events <-chan event, poolDone <-chan struct{}, cancelPool context.CancelFunc, log *slog.Logger) (string, error) {
	cutoff := ""
	interrupted := ctx.Done()

	for {
		if err := s.drain(r, events, log); err != nil {
			return cutoff, err
		}

		for _, tc := range r.cases {
			tc.reportProgress(s.out, r.percent())
		}

		// a nil poolDone means all workers stopped and the queue is drained
		if r.finished == len(r.cases) || poolDone == nil {
			return cutoff, nil
		}

		if cutoff == "" && s.maxFailures >= 0 && r.failures > s.maxFailures {
			cutoff = ReasonMaxFailuresExceeded
			log.Warn("failure budget exceeded, canceling pending groups", "failures", r.failures, "max-failures", s.maxFailures)
			cancelPool()
		}

		timer := s.clock.NewTimer(s.pollInterval)

		select {
		case e := <-events:
			if err := s.apply(r, e, log); err != nil {
				timer.Stop()
				return cutoff, err
			}
		case <-poolDone:
			poolDone = nil
		case <-interrupted:
			interrupted = nil
			if cutoff == "" {
				cutoff = ReasonInterrupted
				log.Warn("run interrupted, canceling pending groups")
			}
			cancelPool()
		case <-timer.C():
		}

		timer.Stop()
	}
}

// checkDrained fails if events were left in the queue after every worker
// stopped. The leftovers are discarded.
func checkDrained(events chan event) error {
	n := len(events)
	if n == 0 {
		return nil
	}

	for len(events) > 0 {
		<-events
	}

	return model.InvariantError{Msg: fmt.Sprintf("%d results left in the queue after all workers stopped", n)}
}

// drain applies every event that is available without blocking.
func (s *Scheduler) drain(r *run, events <-chan event, log *slog.Logger) error {
	for {
		select {
		case e := <-events:
			if err := s.apply(r, e, log); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *Scheduler) apply(r *run, e event, log *slog.Logger) error {
	tc, ok := r.byID[e.CaseID()]
	if !ok {
		return model.InvariantError{Msg: fmt.Sprintf("event for unknown case %d", e.CaseID())}
	}

	wasRunning := tc.Progress() == ProgressRunning

	if err := e.Apply(tc); err != nil {
		return err
	}

	switch tc.Progress() {
	case ProgressRunning:
		metric.CasesRunning.Inc()
		log.Debug("case started", "case-id", tc.ID(), "case-name", tc.Name())

		s.hooks.notifyCaseStarted(r.info, tc)
	case ProgressFinished:
		if wasRunning {
			metric.CasesRunning.Dec()
		}

		state, _ := tc.Result()

		r.finished++
		if s.countsAsFailure(state) {
			r.failures++
		}

		metric.CasesFinished.WithLabelValues(state.Label).Inc()
		log.Debug("case finished", "case-id", tc.ID(), "case-name", tc.Name(), "result", state, "duration", tc.Duration())

		tc.reportResults(s.out, r.percent())
		s.hooks.notifyCaseFinished(r.info, tc)
	}

	return nil
}

// countsAsFailure reports whether state counts against the failure budget
// and fails the run. Skipped cases never count.
func (s *Scheduler) countsAsFailure(state Result) bool {
	return state.Failed() && state.Level >= s.threshold.Level
}
