// Package exitcodes defines the exit statuses of a run.
package exitcodes

const (
	// Success means no test case failed.
	Success = 0
	// TestFailure means at least one test case reached the failure
	// threshold.
	TestFailure = 1
	// RuntimeErr is used when the run could not be completed, e.g. because
	// discovery failed or the scheduler detected a broken invariant.
	RuntimeErr = 2
)
