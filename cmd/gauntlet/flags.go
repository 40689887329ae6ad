package main

import (
	"runtime"
	"time"

	"github.com/urfave/cli/v2"
)

const envVarPrefix = "GAUNTLET_"

// pluginPathEnv holds additional plugin directories separated by the OS
// path list separator.
const pluginPathEnv = envVarPrefix + "PLUGIN_PATH"

func envVar(name string) []string {
	return []string{envVarPrefix + name}
}

var (
	Root = &cli.StringFlag{
		Name:    "root",
		Value:   ".",
		EnvVars: envVar("ROOT"),
		Usage:   "Directory that is searched for spec files",
	}
	SpecFile = &cli.StringSliceFlag{
		Name:    "spec-file",
		Value:   cli.NewStringSlice("tests.yaml"),
		EnvVars: envVar("SPEC_FILE"),
		Usage:   "Base name of the spec files",
	}
	Block = &cli.StringSliceFlag{
		Name:    "block",
		Value:   cli.NewStringSlice("Tests"),
		EnvVars: envVar("BLOCK"),
		Usage:   "Top level block of a spec file that lists runners",
	}
	PluginDir = &cli.StringSliceFlag{
		Name:  "plugin-dir",
		Usage: "Directory with type declarations, in addition to " + pluginPathEnv,
	}
	Workers = &cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"j"},
		Value:   runtime.NumCPU(),
		EnvVars: envVar("WORKERS"),
		Usage:   "Number of groups executed concurrently",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   300 * time.Second,
		EnvVars: envVar("TIMEOUT"),
		Usage:   "Maximum execution time of a single test case, 0 disables the limit",
	}
	MaxFailures = &cli.IntFlag{
		Name:    "max-failures",
		Value:   -1,
		EnvVars: envVar("MAX_FAILURES"),
		Usage:   "Stop starting groups once more cases failed, negative never stops",
	}
	FailureThreshold = &cli.StringFlag{
		Name:    "failure-threshold",
		Value:   "TIMEOUT",
		EnvVars: envVar("FAILURE_THRESHOLD"),
		Usage:   "Least severe result that counts as a failure",
	}
	MinDisplay = &cli.StringFlag{
		Name:    "min-display",
		Value:   "TIMEOUT",
		EnvVars: envVar("MIN_DISPLAY"),
		Usage:   "Least severe result whose output is printed",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   10 * time.Second,
		EnvVars: envVar("PROGRESS_INTERVAL"),
		Usage:   "How often running cases are reported",
	}
	NoColor = &cli.BoolFlag{
		Name:    "no-color",
		EnvVars: envVar("NO_COLOR"),
		Usage:   "Disable colored output",
	}
	HTTP = &cli.StringFlag{
		Name:    "http",
		EnvVars: envVar("HTTP"),
		Usage:   "Address of the status server, e.g. 'localhost:1337'. Disabled when empty",
	}
	Schedule = &cli.StringFlag{
		Name:    "schedule",
		EnvVars: envVar("SCHEDULE"),
		Usage:   "Repeat runs on a cron schedule with seconds, e.g. '0 */5 * * * *' or '@every 1h'",
	}
	List = &cli.BoolFlag{
		Name:  "list",
		Usage: "List the discovered runners and exit",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: envVar("LOG_LEVEL"),
		Usage:   "One of debug, info, warn or error",
	}
)

var Flags = []cli.Flag{
	Root,
	SpecFile,
	Block,
	PluginDir,
	Workers,
	Timeout,
	MaxFailures,
	FailureThreshold,
	MinDisplay,
	ProgressInterval,
	NoColor,
	HTTP,
	Schedule,
	List,
	LogLevel,
}
