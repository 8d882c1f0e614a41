package model

import "time"

// RunStatus is the overall outcome of one orchestrator invocation.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// SourceOutcome records what one adapter contributed to a run.
type SourceOutcome struct {
	Records int    `json:"records"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// RunRecord is the append-only log entry for one pipeline run.
type RunRecord struct {
	ID             string                   `json:"id"`
	StartedAt      time.Time                `json:"started_at"`
	SourcesChecked int                      `json:"sources_checked"`
	ProjectsFound  int                      `json:"projects_found"`
	ProjectsStored int                      `json:"projects_stored"`
	Duration       float64                  `json:"duration_seconds"`
	BySource       map[string]SourceOutcome `json:"by_source"`
	Status         RunStatus                `json:"status"`
}
