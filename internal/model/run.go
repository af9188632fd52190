package model

import "time"

// RunStatus represents the current state of an article run.
type RunStatus string

const (
	RunStatusQueued       RunStatus = "queued"
	RunStatusDiscovering  RunStatus = "discovering"
	RunStatusAcquiring    RunStatus = "acquiring"
	RunStatusDistilling   RunStatus = "distilling"
	RunStatusSynthesizing RunStatus = "synthesizing"
	RunStatusComplete     RunStatus = "complete"
	RunStatusFailed       RunStatus = "failed"
)

// RunStatus maps a stage to the run status reported while it executes.
func (s Stage) RunStatus() RunStatus {
	switch s {
	case StageDiscovery:
		return RunStatusDiscovering
	case StageAcquisition:
		return RunStatusAcquiring
	case StageDistillation:
		return RunStatusDistilling
	case StageSynthesis:
		return RunStatusSynthesizing
	}
	return RunStatusQueued
}

// Run is the audit row for one article run.
type Run struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Status    RunStatus `json:"status"`
	Result    *Record   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunFilter narrows ListRuns results.
type RunFilter struct {
	Status RunStatus
	Limit  int
	Offset int
}

// Checkpoint is a JSON snapshot of a record taken after a stage.
type Checkpoint struct {
	RunID     string    `json:"run_id"`
	Stage     Stage     `json:"stage"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}
