package builtin

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/raphi011/gauntlet"
	"github.com/raphi011/gauntlet/params"
	"github.com/shirou/gopsutil/v3/process"
)

func RunCommandParams() *params.Params {
	p := gauntlet.ObjectParams()
	p.Add("command", params.String, params.Required(), params.Doc("Command line to execute, split like a POSIX shell would"))
	p.Add("working_dir", params.String, params.Doc("Directory the command runs in"))
	p.Add("env", params.StringList, params.Doc("Additional KEY=VALUE environment entries"))
	p.Add("check_exit_code", params.Bool, params.Default(true), params.Doc("Fail when the command exits with a non-zero code"))

	return p
}

// RunCommand executes an external command and captures its output.
type RunCommand struct {
	gauntlet.RunnerBase
	argv []string
}

func NewRunCommand(p *params.Params) (*RunCommand, error) {
	argv, err := shellquote.Split(p.String("command"))
	if err != nil {
		return nil, fmt.Errorf("parsing command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("command is empty")
	}

	return &RunCommand{RunnerBase: gauntlet.NewRunnerBase(p), argv: argv}, nil
}

func (r *RunCommand) Execute(t *gauntlet.T) (int, error) {
	p := r.Params()

	cmd := exec.Command(r.argv[0], r.argv[1:]...)
	cmd.Dir = p.String("working_dir")
	cmd.Env = append(os.Environ(), p.Strings("env")...)
	cmd.Stdout = t.Stdout()
	cmd.Stderr = t.Stderr()
	// grandchildren may keep the pipes open after the command was killed
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %q: %w", r.argv[0], err)
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	var err error

	select {
	case err = <-waitDone:
	case <-t.Context().Done():
		if killErr := killTree(int32(cmd.Process.Pid)); killErr != nil {
			t.Warnf("terminating %q: %v", r.argv[0], killErr)
		}
		<-waitDone
		return 0, t.Context().Err()
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return 0, err
	}

	code := cmd.ProcessState.ExitCode()

	if code != 0 && p.Bool("check_exit_code") {
		t.Errorf("%q exited with code %d", r.argv[0], code)
	}

	return code, nil
}

// killTree kills pid and all of its descendants.
func killTree(pid int32) error {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return err
	}

	// the parent is stopped first so it cannot spawn new children
	if err := proc.Suspend(); err != nil {
		return err
	}

	children, _ := proc.Children()
	for _, c := range children {
		_ = killTree(c.Pid)
	}

	return proc.Kill()
}

func SleepParams() *params.Params {
	p := gauntlet.ObjectParams()
	p.Add("duration", params.Duration, params.Default("1s"), params.Doc("How long to sleep"))
	p.Add("exit_code", params.Int, params.Default(0), params.Doc("Return code reported after sleeping"))
	p.Add("fail", params.Bool, params.Default(false), params.Doc("Log an error after sleeping"))
	p.Add("error", params.String, params.Doc("Return this error after sleeping"))

	return p
}

// Sleep waits and then reports the configured outcome. It is mostly useful
// to exercise schedules and timeouts.
type Sleep struct {
	gauntlet.RunnerBase
}

func NewSleep(p *params.Params) *Sleep {
	return &Sleep{RunnerBase: gauntlet.NewRunnerBase(p)}
}

func (s *Sleep) Execute(t *gauntlet.T) (int, error) {
	p := s.Params()
	d := p.Duration("duration")

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-t.Context().Done():
		return 0, t.Context().Err()
	}

	t.Logf("slept for %s", d)

	if msg := p.String("error"); msg != "" {
		return 0, errors.New(msg)
	}

	if p.Bool("fail") {
		t.Error("sleep was configured to fail")
	}

	return p.Int("exit_code"), nil
}
