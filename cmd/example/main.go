package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/raphi011/gauntlet"
	"github.com/raphi011/gauntlet/internal/format"
	"github.com/raphi011/gauntlet/params"
)

// countdown is a runner that counts down from n to zero and returns the
// number it stopped at.
type countdown struct {
	gauntlet.RunnerBase
	n int
}

func newCountdown(name string, n int) *countdown {
	p := gauntlet.ObjectParams()
	if err := p.Set("name", name); err != nil {
		panic(err)
	}

	return &countdown{RunnerBase: gauntlet.NewRunnerBase(p), n: n}
}

func (c *countdown) Execute(t *gauntlet.T) (int, error) {
	for i := c.n; i > 0; i-- {
		t.Logf("%d", i)
		time.Sleep(100 * time.Millisecond)
	}

	if c.n < 0 {
		return 0, errors.New("cannot count down from a negative number")
	}

	return 0, nil
}

// isZero fails when the runner did not return zero.
type isZero struct {
	gauntlet.Base
}

func newIsZero() *isZero {
	p := gauntlet.ObjectParams()
	if err := p.Set("name", "is-zero"); err != nil {
		panic(err)
	}

	return &isZero{Base: gauntlet.NewBase(p)}
}

func (d *isZero) Execute(t *gauntlet.T, returncode int, stdout, stderr string) error {
	if returncode != 0 {
		t.Errorf("expected 0, got %d", returncode)
	}

	return nil
}

// weekdays skips everything on weekends.
type weekdays struct {
	gauntlet.Base
}

func (c *weekdays) Prefix() string {
	return "weekdays"
}

func (c *weekdays) ObjectParams() *params.Params {
	return params.New()
}

func (c *weekdays) Execute(t *gauntlet.T, target gauntlet.Object, cfg *params.Params) error {
	switch time.Now().Weekday() {
	case time.Saturday, time.Sunday:
		t.Skip("it's the weekend")
	}

	return nil
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	wp := gauntlet.ObjectParams()
	if err := wp.Set("name", "weekdays"); err != nil {
		panic(err)
	}

	passing := newCountdown("countdown-3", 3)
	passing.AttachDiffers(newIsZero())

	s := gauntlet.New(
		gauntlet.WithLogger(log),
		gauntlet.WithWorkers(2),
		gauntlet.WithTimeout(2*time.Second),
		gauntlet.WithFormatter(format.NewTerminal(format.WithMinDisplay(gauntlet.ResultPass))),
		gauntlet.WithControllers(&weekdays{Base: gauntlet.NewBase(wp)}),
	)

	code, err := s.Run(context.Background(), []gauntlet.Group{
		{passing, newCountdown("countdown-negative", -1), newCountdown("never-runs", 1)},
		{newCountdown("too-slow", 50)},
	})
	if err != nil {
		log.Error("run failed", "error", err)
		os.Exit(2)
	}

	os.Exit(code)
}
