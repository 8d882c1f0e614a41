// Package store persists canonical projects, run history, and source sync
// state behind a backend-agnostic interface.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/gridhound/gridhound/internal/model"
)

// Filter specifies criteria for listing projects. Results are ordered by
// confidence score descending, then capacity descending.
type Filter struct {
	IncludeArchived bool              `json:"include_archived,omitempty"`
	MinScore        int               `json:"min_score,omitempty"`
	MinCapacityMW   float64           `json:"min_capacity_mw,omitempty"`
	ProjectType     model.ProjectType `json:"project_type,omitempty"`
	State           string            `json:"state,omitempty"`
	Limit           int               `json:"limit,omitempty"`
	Offset          int               `json:"offset,omitempty"`
}

// ReconcileStats summarizes one UpsertBatch call.
type ReconcileStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Store is the persistence interface for the ingestion pipeline.
type Store interface {
	// Projects
	UpsertBatch(ctx context.Context, projects []model.Project) (ReconcileStats, error)
	GetProject(ctx context.Context, externalID string) (*model.Project, error)
	ListProjects(ctx context.Context, filter Filter) ([]model.Project, error)
	CountProjects(ctx context.Context, filter Filter) (int, error)

	// Run log (append-only)
	InsertRun(ctx context.Context, run model.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	LatestRun(ctx context.Context) (*model.RunRecord, error)

	// Slow-cadence source gating. SourceNextDue returns the persisted
	// next_due of the latest successful sync, or nil when never synced.
	SourceNextDue(ctx context.Context, source string) (*time.Time, error)
	RecordSourceSync(ctx context.Context, source string, records int, nextDue time.Time) error

	// Retention
	ArchiveStale(ctx context.Context, window time.Duration) (int, error)
	PurgeOlderThan(ctx context.Context, window time.Duration) (int, error)

	// Run lock: single writer across orchestrator instances
	AcquireRunLock(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	ReleaseRunLock(ctx context.Context, owner string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a project lookup matches nothing.
var ErrNotFound = eris.New("store: not found")

// Open creates a Store for the configured driver.
func Open(driver, databaseURL, path string) (Store, error) {
	switch driver {
	case "sqlite", "":
		if path == "" {
			path = "gridhound.db"
		}
		return NewSQLite(path)
	case "postgres":
		return NewPostgres(context.Background(), databaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
