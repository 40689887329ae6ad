// Package format renders the progress and results of a run for a terminal.
package format

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/acarl005/stripansi"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/raphi011/gauntlet"
	"github.com/raphi011/gauntlet/internal/model"
)

var colors = map[string]text.Colors{
	model.ResultPass.Label:      {text.FgGreen},
	model.ResultSkip.Label:      {text.FgCyan},
	model.ResultTimeout.Label:   {text.FgYellow},
	model.ResultError.Label:     {text.FgRed},
	model.ResultException.Label: {text.FgMagenta},
	model.ResultFatal.Label:     {text.FgHiRed, text.Bold},
}

var runningColor = text.Colors{text.FgBlue}

// Terminal is a gauntlet.Formatter producing one line per state change and
// the tail of the captured output of failing objects.
type Terminal struct {
	color            bool
	minDisplay       model.Result
	progressInterval time.Duration
	maxLines         int
	clock            clock.Clock

	mu           sync.Mutex
	lastProgress map[uint64]time.Time
}

type Option func(t *Terminal)

// WithColor enables ANSI colors. Without colors, escape sequences are also
// removed from captured output.
func WithColor(enabled bool) Option {
	return func(t *Terminal) {
		t.color = enabled
	}
}

// WithMinDisplay sets the least severe result whose output is shown.
func WithMinDisplay(r model.Result) Option {
	return func(t *Terminal) {
		t.minDisplay = r
	}
}

// WithProgressInterval sets how often a running case is reported.
func WithProgressInterval(d time.Duration) Option {
	return func(t *Terminal) {
		t.progressInterval = d
	}
}

// WithMaxLines limits the number of output lines shown per stream.
// Zero shows everything.
func WithMaxLines(n int) Option {
	return func(t *Terminal) {
		t.maxLines = n
	}
}

func WithClock(c clock.Clock) Option {
	return func(t *Terminal) {
		t.clock = c
	}
}

func NewTerminal(opts ...Option) *Terminal {
	t := &Terminal{
		color:            true,
		minDisplay:       model.ResultTimeout,
		progressInterval: 10 * time.Second,
		maxLines:         30,
		clock:            clock.NewClock(),
		lastProgress:     map[uint64]time.Time{},
	}

	for _, o := range opts {
		o(t)
	}

	return t
}

func (t *Terminal) colorize(label, s string) string {
	if !t.color {
		return s
	}

	if label == model.ProgressRunning.String() {
		return runningColor.Sprint(s)
	}

	c, ok := colors[label]
	if !ok {
		return s
	}

	return c.Sprint(s)
}

func (t *Terminal) line(percent float64, label, name string, d time.Duration, reasons []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%3.0f%%] %s %s (%s)", percent, t.colorize(label, fmt.Sprintf("[%s]", label)), name, d.Round(time.Millisecond))

	if len(reasons) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(reasons, "; "))
	}

	return b.String()
}

// FormatRunnerState reports finished cases immediately and running cases
// at most once per progress interval.
func (t *Terminal) FormatRunnerState(s gauntlet.RunnerState) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch s.Progress {
	case model.ProgressRunning:
		now := t.clock.Now()

		last, ok := t.lastProgress[s.CaseID]
		if !ok {
			t.lastProgress[s.CaseID] = now
			return ""
		}
		if now.Sub(last) < t.progressInterval {
			return ""
		}

		t.lastProgress[s.CaseID] = now

		return t.line(s.Percent, s.Progress.String(), s.Name, s.Duration, nil)
	case model.ProgressFinished:
		delete(t.lastProgress, s.CaseID)

		return t.line(s.Percent, s.State.Label, s.Name, s.Duration, s.Reasons)
	}

	return ""
}

func (t *Terminal) FormatDifferState(s gauntlet.DifferState) string {
	if s.State.Level < t.minDisplay.Level && len(s.Reasons) == 0 {
		return ""
	}

	line := fmt.Sprintf("       %s %s/%s", t.colorize(s.State.Label, fmt.Sprintf("[%s]", s.State.Label)), s.Runner, s.Name)
	if len(s.Reasons) > 0 {
		line += fmt.Sprintf(" [%s]", strings.Join(s.Reasons, "; "))
	}

	return line
}

func (t *Terminal) FormatRunnerResult(r gauntlet.RunnerResult) string {
	return t.output(r.Name, r.ExecutionRecord)
}

func (t *Terminal) FormatDifferResult(r gauntlet.DifferResult) string {
	return t.output(r.Runner+"/"+r.Name, r.ExecutionRecord)
}

func (t *Terminal) output(name string, rec model.ExecutionRecord) string {
	if rec.State.Level < t.minDisplay.Level {
		return ""
	}

	var b strings.Builder

	for _, stream := range []struct {
		name string
		text string
	}{{"stdout", rec.Stdout}, {"stderr", rec.Stderr}} {
		content := t.tail(stream.text)
		if content == "" {
			continue
		}

		fmt.Fprintf(&b, "----- %s %s -----\n%s\n", name, stream.name, content)
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// tail returns the last maxLines lines of s.
func (t *Terminal) tail(s string) string {
	if !t.color {
		s = stripansi.Strip(s)
	}

	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}

	lines := strings.Split(s, "\n")
	if t.maxLines > 0 && len(lines) > t.maxLines {
		omitted := len(lines) - t.maxLines
		lines = append([]string{fmt.Sprintf("... %d lines omitted", omitted)}, lines[omitted:]...)
	}

	return strings.Join(lines, "\n")
}

// FormatComplete renders a table with the number of cases per result
// followed by the names of the failed cases.
func (t *Terminal) FormatComplete(cases []*gauntlet.TestCase, elapsed time.Duration) string {
	counts := map[string]int{}
	failed := []*gauntlet.TestCase{}

	for _, tc := range cases {
		state, err := tc.Result()
		if err != nil {
			continue
		}

		counts[state.Label]++
		if state.Failed() {
			failed = append(failed, tc)
		}
	}

	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("Executed %d test cases in %s", len(cases), elapsed.Round(time.Millisecond)))
	tw.AppendHeader(table.Row{"Result", "Cases"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Cases", Align: text.AlignRight},
	})

	for _, r := range model.Results {
		tw.AppendRow(table.Row{t.colorize(r.Label, r.Label), counts[r.Label]})
	}

	if t.color {
		switch {
		case len(failed) > 0:
			tw.SetStyle(table.StyleColoredBlackOnRedWhite)
		case counts[model.ResultSkip.Label] > 0:
			tw.SetStyle(table.StyleColoredBlackOnYellowWhite)
		default:
			tw.SetStyle(table.StyleColoredBlackOnGreenWhite)
		}
	}

	var b strings.Builder

	b.WriteString(tw.Render())

	if len(failed) > 0 {
		b.WriteString("\n\nFailed:")

		for _, tc := range failed {
			state, _ := tc.Result()
			fmt.Fprintf(&b, "\n  %s %s (%s)", t.colorize(state.Label, fmt.Sprintf("[%s]", state.Label)), tc.Name(), tc.Duration().Round(time.Millisecond))
		}
	}

	return b.String()
}
