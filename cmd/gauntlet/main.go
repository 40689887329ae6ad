package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphi011/gauntlet"
	"github.com/raphi011/gauntlet/exitcodes"
	"github.com/raphi011/gauntlet/internal/builtin"
	"github.com/raphi011/gauntlet/internal/discover"
	"github.com/raphi011/gauntlet/internal/format"
	"github.com/raphi011/gauntlet/internal/model"
	"github.com/raphi011/gauntlet/internal/status"
	"github.com/raphi011/gauntlet/plugin"
	"github.com/urfave/cli/v2"
)

var Version = "v0.1.0"

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "gauntlet"
	app.Version = Version
	app.Usage = "Execute test cases declared in spec files"
	app.Flags = Flags
	app.Action = run

	return app
}

func main() {
	app := newApp()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		var exitErr cli.ExitCoder
		if !errors.As(err, &exitErr) {
			slog.Error("gauntlet failed", "error", err)
			os.Exit(exitcodes.RuntimeErr)
		}
		// errors with an exit code were already handled by cli
	}
}

func runtimeError(msg string, args ...any) error {
	return cli.Exit(fmt.Sprintf(msg, args...), exitcodes.RuntimeErr)
}

func run(c *cli.Context) error {
	ctx := c.Context

	log, err := newLogger(c.String(LogLevel.Name))
	if err != nil {
		return runtimeError("%v", err)
	}
	slog.SetDefault(log)

	registry := plugin.NewRegistry()
	if err := builtin.Register(registry); err != nil {
		return runtimeError("%v", err)
	}

	for _, dir := range pluginDirs(c) {
		if err := registry.LoadDir(dir); err != nil {
			return runtimeError("%v", err)
		}
	}

	controllers, err := builtin.Controllers(registry)
	if err != nil {
		return runtimeError("creating controllers: %v", err)
	}

	threshold, err := model.ParseResult(c.String(FailureThreshold.Name))
	if err != nil {
		return runtimeError("--%s: %v", FailureThreshold.Name, err)
	}

	minDisplay, err := model.ParseResult(c.String(MinDisplay.Name))
	if err != nil {
		return runtimeError("--%s: %v", MinDisplay.Name, err)
	}

	formatter := format.NewTerminal(
		format.WithColor(!c.Bool(NoColor.Name)),
		format.WithMinDisplay(minDisplay),
		format.WithProgressInterval(c.Duration(ProgressInterval.Name)),
	)

	opts := []gauntlet.Option{
		gauntlet.WithLogger(log),
		gauntlet.WithWorkers(c.Int(Workers.Name)),
		gauntlet.WithTimeout(c.Duration(Timeout.Name)),
		gauntlet.WithMaxFailures(c.Int(MaxFailures.Name)),
		gauntlet.WithFailureThreshold(threshold),
		gauntlet.WithFormatter(formatter),
		gauntlet.WithControllers(controllers...),
		gauntlet.WithOutput(c.App.Writer),
	}

	if addr := c.String(HTTP.Name); addr != "" {
		cache := status.NewCache()
		opts = append(opts, gauntlet.WithHook(cache))

		server := status.NewServer(cache, log)
		go func() {
			if err := server.ListenAndServe(ctx, addr); err != nil {
				log.Error("status server failed", "error", err)
			}
		}()
	}

	s := gauntlet.New(opts...)

	discoverGroups := func() ([]gauntlet.Group, error) {
		return discover.Discover(ctx, discover.Options{
			Root:        c.String(Root.Name),
			SpecFiles:   c.StringSlice(SpecFile.Name),
			Blocks:      c.StringSlice(Block.Name),
			Controllers: s.Controllers(),
			Registry:    registry,
			Log:         log,
		})
	}

	if schedule := c.String(Schedule.Name); schedule != "" {
		if err := s.RunScheduled(ctx, schedule, discoverGroups); err != nil {
			return runtimeError("%v", err)
		}
		return nil
	}

	groups, err := discoverGroups()
	if err != nil {
		return runtimeError("discovering test cases: %v", err)
	}

	if c.Bool(List.Name) {
		for _, g := range groups {
			for _, r := range g {
				fmt.Fprintln(c.App.Writer, r.Name())
			}
		}
		return nil
	}

	code, err := s.Run(ctx, groups)
	if err != nil {
		return runtimeError("%v", err)
	}

	if code != exitcodes.Success {
		return cli.Exit("", code)
	}

	return nil
}

func pluginDirs(c *cli.Context) []string {
	dirs := plugin.SplitPath(os.Getenv(pluginPathEnv))
	return append(dirs, c.StringSlice(PluginDir.Name)...)
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("--%s: %w", LogLevel.Name, err)
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
