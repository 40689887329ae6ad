package model

import "time"

type RunHTTP struct {
	// ID is the identifier of the run.
	ID string `json:"id"`
	// Start is the time when the run was started.
	Start time.Time `json:"start"`
	// End is the time when the run finished, zero while it is running.
	End time.Time `json:"end"`
	// Finished is true once the summary has been printed.
	Finished bool `json:"finished"`
	// ExitCode is the outcome of a finished run.
	ExitCode int `json:"exitCode"`
	// Cases counts the total amount of test cases in the run.
	Cases int `json:"cases"`
	// Counts is the number of finished cases per result label.
	Counts map[string]int `json:"counts"`
	// CaseIDs lists the cases of the run in submission order.
	CaseIDs []uint64 `json:"caseIds"`
}

type CaseHTTP struct {
	ID       uint64   `json:"id"`
	Name     string   `json:"name"`
	Progress Progress `json:"progress"`
	// Result is only set once Progress is FINISHED.
	Result *Result `json:"result,omitempty"`
	// DurationInMS is the time spent waiting or running, frozen once finished.
	DurationInMS int64 `json:"durationInMs"`
	// Records are the execution records keyed by object name.
	Records map[string]ExecutionRecord `json:"records,omitempty"`
}
