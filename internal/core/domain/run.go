package domain

import "time"

// RunKind identifies which workflow produced a run.
type RunKind string

const (
	RunKindDiscovery RunKind = "discovery"
	RunKindScan      RunKind = "scan"
)

// RunStatus is the terminal state of a workflow run.
type RunStatus string

const (
	RunStatusCompleted  RunStatus = "completed"
	RunStatusIncomplete RunStatus = "incomplete"
	RunStatusFailed     RunStatus = "failed"
)

// Run describes a single workflow invocation.
type Run struct {
	ID         string
	Kind       RunKind
	Dataset    string
	Range      TimeRange
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	Chunks     int
	Incomplete int
}
