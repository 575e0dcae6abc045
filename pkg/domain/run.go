package domain

import "time"

// RunStatus is the lifecycle status of one scheduler run.
type RunStatus string

const (
	RunStatusSubmitted RunStatus = "submitted"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// RunState records one resolution of a set of graph keys.
type RunState struct {
	RunID       string     `json:"run_id"`
	Targets     []string   `json:"targets"`
	Status      RunStatus  `json:"status"`
	Tasks       int        `json:"tasks"`
	Executed    int        `json:"executed"`
	CacheHits   int        `json:"cache_hits"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
