package domain

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// RunLog is the historical record of one pipeline run.
type RunLog struct {
	ID         string    `json:"id"`
	Pipeline   string    `json:"pipeline"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Status     RunStatus `json:"status"`
	Requested  int       `json:"requested"` // unique identifiers; other counts sum over sources
	Fetched    int       `json:"fetched"`
	Empty      int       `json:"empty"`
	Failed     int       `json:"failed"`
	Defaulted  int       `json:"defaulted"` // records with at least one defaulted column
	Written    int       `json:"written"`
	Error      string    `json:"error,omitempty"`
}

// SkipReason explains why an identifier produced no row.
type SkipReason string

const (
	SkipEmpty  SkipReason = "empty"
	SkipFailed SkipReason = "failed"
)

// SkipRecord is one identifier that was skipped during a run.
type SkipRecord struct {
	RunID      string     `json:"runId"`
	Identifier Identifier `json:"identifier"`
	Reason     SkipReason `json:"reason"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// RunStore persists run logs and skips.
type RunStore interface {
	CreateRun(run *RunLog) error
	FinishRun(run *RunLog) error
	ListRuns(pipeline string, limit int) ([]RunLog, error)
	CreateSkips(skips []SkipRecord) error
	ListSkips(runID string) ([]SkipRecord, error)
}
