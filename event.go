package gauntlet

import (
	"fmt"

	"github.com/raphi011/gauntlet/internal/model"
)

// event is sent by the workers to the scheduler. Workers never touch a
// TestCase directly, the scheduler applies the events to the case with the
// matching id.
type event interface {
	CaseID() uint64
	Apply(tc *TestCase) error
}

type caseIdentifier struct {
	caseID uint64
}

func (e caseIdentifier) CaseID() uint64 {
	return e.caseID
}

type caseStartedEvent struct {
	caseIdentifier
}

func (e caseStartedEvent) Apply(tc *TestCase) error {
	if tc.Progress() != ProgressWaiting {
		return model.InvariantError{Msg: fmt.Sprintf("case %d (%s) started while %s", tc.ID(), tc.Name(), tc.Progress())}
	}

	return tc.SetProgress(ProgressRunning)
}

type caseFinishedEvent struct {
	caseIdentifier
	state   Result
	records map[string]ExecutionRecord
}

func (e caseFinishedEvent) Apply(tc *TestCase) error {
	if tc.Progress() == ProgressFinished {
		return model.InvariantError{Msg: fmt.Sprintf("case %d (%s) finished twice", tc.ID(), tc.Name())}
	}

	if err := tc.SetProgress(ProgressFinished); err != nil {
		return err
	}

	return tc.SetResult(e.state, e.records)
}

// skippedEvent finishes a case that never ran.
func skippedEvent(tc *TestCase, reason string) caseFinishedEvent {
	return caseFinishedEvent{
		caseIdentifier: caseIdentifier{caseID: tc.ID()},
		state:          ResultSkip,
		records: map[string]ExecutionRecord{
			tc.Name(): {State: ResultSkip, Reasons: []string{reason}},
		},
	}
}
