package api

// v0 contains public types for early SDK usage.

import "time"

// ResearchRequest describes one research goal to run end to end.
type ResearchRequest struct {
	Goal     string `json:"goal" yaml:"goal"`
	MaxTasks int    `json:"max_tasks" yaml:"max_tasks"`
}

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunSnapshot is the stored view of a run.
type RunSnapshot struct {
	ID        string    `json:"id" yaml:"id"`
	Goal      string    `json:"goal" yaml:"goal"`
	Status    RunStatus `json:"status" yaml:"status"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
