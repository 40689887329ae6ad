package gauntlet

import (
	"io"
	"log/slog"
	"time"

	"code.cloudfoundry.org/clock"
)

// Option configures a Scheduler.
type Option func(s *Scheduler)

// WithWorkers sets the number of groups that execute concurrently.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithTimeout limits the execution time of a single test case. Zero
// disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// WithMaxFailures stops starting new groups once more than n cases failed.
// A negative n never stops.
func WithMaxFailures(n int) Option {
	return func(s *Scheduler) {
		s.maxFailures = n
	}
}

// WithFailureThreshold sets the least severe result that counts as a
// failure, both against the failure budget and for the exit code.
func WithFailureThreshold(r Result) Option {
	return func(s *Scheduler) {
		s.threshold = r
	}
}

func WithFormatter(f Formatter) Option {
	return func(s *Scheduler) {
		s.formatter = f
	}
}

// WithControllers sets the controllers consulted before every runner and
// differ executes, in order.
func WithControllers(c ...Controller) Option {
	return func(s *Scheduler) {
		s.controllers = append(s.controllers, c...)
	}
}

func WithHook(h Hook) Option {
	return func(s *Scheduler) {
		s.hooks.all = append(s.hooks.all, h)
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
		s.hooks.log = log
	}
}

// WithOutput sets where the formatted progress and results are printed.
func WithOutput(w io.Writer) Option {
	return func(s *Scheduler) {
		s.out = w
	}
}

// WithPollInterval sets how long the scheduler waits for new results
// before it reports the progress of the running cases again.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithOutputLimit sets how many bytes of stdout and stderr are kept per
// executed object. Older output is discarded.
func WithOutputLimit(n int) Option {
	return func(s *Scheduler) {
		s.outputLimit = n
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}
