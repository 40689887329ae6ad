package gauntlet

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RunInfo identifies a run to the hooks.
type RunInfo struct {
	ID    string
	Start time.Time
	// End and ExitCode are only set once the run finished.
	End      time.Time
	ExitCode int
}

// Hook is notified about the progress of runs. A hook has to implement at
// least one of the listener interfaces. Listeners are called from the
// goroutine that owns the run, the test cases passed to them must not be
// retained or modified.
type Hook interface {
	Name() string
	Init() error
}

type RunStartedListener interface {
	Hook
	RunStarted(run RunInfo, cases []*TestCase)
}

type CaseStartedListener interface {
	Hook
	CaseStarted(run RunInfo, tc *TestCase)
}

type CaseFinishedListener interface {
	Hook
	CaseFinished(run RunInfo, tc *TestCase)
}

type RunFinishedListener interface {
	Hook
	RunFinished(run RunInfo, cases []*TestCase)
}

type hookManager struct {
	all          []Hook
	runStarted   []RunStartedListener
	caseStarted  []CaseStartedListener
	caseFinished []CaseFinishedListener
	runFinished  []RunFinishedListener

	once    sync.Once
	initErr error

	log *slog.Logger
}

func newHookManager(log *slog.Logger) *hookManager {
	return &hookManager{
		all:          []Hook{},
		runStarted:   []RunStartedListener{},
		caseStarted:  []CaseStartedListener{},
		caseFinished: []CaseFinishedListener{},
		runFinished:  []RunFinishedListener{},
		log:          log,
	}
}

// init initializes every hook once, subsequent calls return the first result.
func (s *hookManager) init() error {
	s.once.Do(func() {
		s.initErr = s.register()
	})

	return s.initErr
}

func (s *hookManager) register() error {
	for _, h := range s.all {
		if err := h.Init(); err != nil {
			return fmt.Errorf("initiating hook %q: %w", h.Name(), err)
		}

		registeredHook := false

		if l, ok := h.(RunStartedListener); ok {
			s.runStarted = append(s.runStarted, l)
			registeredHook = true
		}
		if l, ok := h.(CaseStartedListener); ok {
			s.caseStarted = append(s.caseStarted, l)
			registeredHook = true
		}
		if l, ok := h.(CaseFinishedListener); ok {
			s.caseFinished = append(s.caseFinished, l)
			registeredHook = true
		}
		if l, ok := h.(RunFinishedListener); ok {
			s.runFinished = append(s.runFinished, l)
			registeredHook = true
		}

		if !registeredHook {
			return fmt.Errorf("hook %q does not implement any listener", h.Name())
		}
	}

	return nil
}

func (s *hookManager) notifyRunStarted(run RunInfo, cases []*TestCase) {
	for _, l := range s.runStarted {
		s.call(l, func() { l.RunStarted(run, cases) })
	}
}

func (s *hookManager) notifyCaseStarted(run RunInfo, tc *TestCase) {
	for _, l := range s.caseStarted {
		s.call(l, func() { l.CaseStarted(run, tc) })
	}
}

func (s *hookManager) notifyCaseFinished(run RunInfo, tc *TestCase) {
	for _, l := range s.caseFinished {
		s.call(l, func() { l.CaseFinished(run, tc) })
	}
}

func (s *hookManager) notifyRunFinished(run RunInfo, cases []*TestCase) {
	for _, l := range s.runFinished {
		s.call(l, func() { l.RunFinished(run, cases) })
	}
}

// call runs a listener, a panicking hook must not take the run down with it.
func (s *hookManager) call(h Hook, f func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("hook panicked", "hook", h.Name(), "error", r)
		}
	}()

	f()
}
