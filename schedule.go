package gauntlet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// RunScheduled starts a run every time schedule fires until ctx is done. The
// format of schedule is described at
// https://pkg.go.dev/github.com/robfig/cron/v3#hdr-CRON_Expression_Format,
// with an additional leading seconds field. discover is called before every
// run so changes to the spec files are picked up. A run is not started while
// the previous one is still executing.
func (s *Scheduler) RunScheduled(ctx context.Context, schedule string, discover func() ([]Group, error)) error {
	logger := cronLogger{log: s.log}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	entryID, err := c.AddFunc(schedule, func() {
		groups, err := discover()
		if err != nil {
			s.log.Error("discovering test cases failed", "error", err)
			return
		}

		code, err := s.Run(ctx, groups)
		if err != nil {
			s.log.Error("scheduled run failed", "error", err)
			return
		}

		s.log.Info("scheduled run finished", "exit-code", code)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.log.Info("runs scheduled", "schedule", schedule, "entry-id", entryID)

	c.Start()

	<-ctx.Done()

	// wait for a run that is still executing
	<-c.Stop().Done()

	return nil
}

// cronLogger adapts slog to the logger interface of cron.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
