package gauntlet

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

type outcome struct {
	state   Result
	records map[string]ExecutionRecord
}

// runGroup executes the cases of a group in order and reports every
// transition on events. Once a case failed the remaining cases are skipped.
// ctx only interrupts the group between cases; a case that started always
// runs until it finished or timed out.
func (s *Scheduler) runGroup(ctx context.Context, log *slog.Logger, cases []*TestCase, events chan<- event) {
	for i, tc := range cases {
		if ctx.Err() != nil {
			log.Info("group interrupted", "remaining", len(cases)-i)
			return
		}

		events <- caseStartedEvent{caseIdentifier{caseID: tc.ID()}}

		o := s.executeIsolated(context.WithoutCancel(ctx), tc)

		events <- caseFinishedEvent{
			caseIdentifier: caseIdentifier{caseID: tc.ID()},
			state:          o.state,
			records:        o.records,
		}

		if o.state.Failed() {
			log.Debug("case failed, skipping the rest of the group", "case-name", tc.Name(), "result", o.state)

			for _, rest := range cases[i+1:] {
				events <- skippedEvent(rest, ReasonDependency)
			}

			return
		}
	}
}

// executeIsolated runs tc on its own goroutine and waits for at most the
// configured timeout. After a timeout the context of the case is canceled
// and the goroutine is abandoned; its outcome is discarded. The TIMEOUT
// record keeps the output the object that was executing wrote so far.
func (s *Scheduler) executeIsolated(ctx context.Context, tc *TestCase) outcome {
	name := tc.Name()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// buffered so an abandoned execution can still deliver and exit
	done := make(chan outcome, 1)

	live := &liveOutput{}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{
					state: ResultFatal,
					records: map[string]ExecutionRecord{
						name: {
							State:  ResultFatal,
							Stderr: fmt.Sprintf("panic: %v\n%s", r, debug.Stack()),
						},
					},
				}
			}
		}()

		state, records := tc.execute(ctx, live)
		done <- outcome{state: state, records: records}
	}()

	var timeout <-chan time.Time

	if s.timeout > 0 {
		timer := s.clock.NewTimer(s.timeout)
		defer timer.Stop()

		timeout = timer.C()
	}

	select {
	case o := <-done:
		return o
	case <-timeout:
		cancel()

		stdout, stderr := live.output()

		return outcome{
			state: ResultTimeout,
			records: map[string]ExecutionRecord{
				name: {
					State:   ResultTimeout,
					Stdout:  stdout,
					Stderr:  stderr,
					Reasons: []string{fmt.Sprintf("max time (%s) exceeded", s.timeout)},
				},
			},
		}
	}
}
