package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/gridhound/gridhound/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS projects (
	external_id      TEXT PRIMARY KEY,
	project_name     TEXT NOT NULL DEFAULT '',
	customer         TEXT NOT NULL DEFAULT '',
	utility          TEXT NOT NULL DEFAULT '',
	county           TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	fuel_type        TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT '',
	capacity_mw      REAL NOT NULL,
	content_hash     TEXT NOT NULL,
	confidence_score INTEGER NOT NULL DEFAULT 0,
	confidence_notes TEXT NOT NULL DEFAULT '[]',
	project_type     TEXT NOT NULL DEFAULT 'other',
	source           TEXT NOT NULL,
	source_url       TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL,
	last_seen        DATETIME NOT NULL,
	is_archived      INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_content_hash ON projects(content_hash);
CREATE INDEX IF NOT EXISTS idx_projects_score ON projects(confidence_score DESC, capacity_mw DESC);
CREATE INDEX IF NOT EXISTS idx_projects_state ON projects(state);
CREATE INDEX IF NOT EXISTS idx_projects_last_seen ON projects(last_seen);

CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	started_at       DATETIME NOT NULL,
	sources_checked  INTEGER NOT NULL,
	projects_found   INTEGER NOT NULL,
	projects_stored  INTEGER NOT NULL,
	duration_seconds REAL NOT NULL,
	by_source        TEXT NOT NULL DEFAULT '{}',
	status           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS source_sync (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	source    TEXT NOT NULL,
	records   INTEGER NOT NULL DEFAULT 0,
	synced_at DATETIME NOT NULL,
	next_due  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_source_sync_source ON source_sync(source, synced_at DESC);

CREATE TABLE IF NOT EXISTS run_lock (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	owner      TEXT NOT NULL,
	expires_at DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertBatch merges scored records inside one transaction so a mid-run
// crash leaves the store at a run boundary. Each record is matched by
// external_id first, then content_hash; either match means "already known."
// A single record's constraint violation is logged and skipped, the rest of
// the batch proceeds.
func (s *SQLiteStore) UpsertBatch(ctx context.Context, projects []model.Project) (ReconcileStats, error) {
	var stats ReconcileStats

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: begin upsert batch")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for i := range projects {
		p := &projects[i]
		outcome, err := upsertOne(ctx, tx, p, now)
		if err != nil {
			zap.L().Warn("upsert skipped",
				zap.String("external_id", p.ExternalID),
				zap.Error(err),
			)
			stats.Skipped++
			continue
		}
		switch outcome {
		case upsertInserted:
			stats.Inserted++
		case upsertUpdated:
			stats.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return ReconcileStats{}, eris.Wrap(err, "sqlite: commit upsert batch")
	}
	return stats, nil
}

type upsertOutcome int

const (
	upsertInserted upsertOutcome = iota
	upsertUpdated
)

func upsertOne(ctx context.Context, tx *sql.Tx, p *model.Project, now time.Time) (upsertOutcome, error) {
	notesJSON, err := json.Marshal(p.ConfidenceNotes)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal notes")
	}

	// Identity match: external_id first, then content fingerprint. The
	// fingerprint catches records whose native id changed between periods.
	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT external_id FROM projects WHERE external_id = ?`, p.ExternalID,
	).Scan(&existingID)
	if err == sql.ErrNoRows {
		err = tx.QueryRowContext(ctx,
			`SELECT external_id FROM projects WHERE content_hash = ?`, p.ContentHash,
		).Scan(&existingID)
	}
	if err != nil && err != sql.ErrNoRows {
		return 0, eris.Wrap(err, "sqlite: lookup existing")
	}

	if err == sql.ErrNoRows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO projects (
				external_id, project_name, customer, utility, county, state,
				fuel_type, status, capacity_mw, content_hash, confidence_score,
				confidence_notes, project_type, source, source_url,
				created_at, last_seen, is_archived
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			p.ExternalID, p.ProjectName, p.Customer, p.Utility, p.County, p.State,
			p.FuelType, p.Status, p.CapacityMW, p.ContentHash, p.ConfidenceScore,
			string(notesJSON), string(p.ProjectType), p.Source, p.SourceURL,
			now, now,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: insert project")
		}
		return upsertInserted, nil
	}

	// Re-observation: overwrite mutable fields wholesale, bump last_seen,
	// clear the archived flag. created_at is never touched.
	_, err = tx.ExecContext(ctx,
		`UPDATE projects SET
			external_id = ?, project_name = ?, customer = ?, utility = ?,
			county = ?, state = ?, fuel_type = ?, status = ?, capacity_mw = ?,
			content_hash = ?, confidence_score = ?, confidence_notes = ?,
			project_type = ?, source = ?, source_url = ?,
			last_seen = ?, is_archived = 0
		WHERE external_id = ?`,
		p.ExternalID, p.ProjectName, p.Customer, p.Utility,
		p.County, p.State, p.FuelType, p.Status, p.CapacityMW,
		p.ContentHash, p.ConfidenceScore, string(notesJSON),
		string(p.ProjectType), p.Source, p.SourceURL,
		now, existingID,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: update project")
	}
	return upsertUpdated, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, externalID string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx,
		projectSelectSQL+` WHERE external_id = ?`, externalID,
	)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get project %s", externalID)
	}
	return p, nil
}

const projectSelectSQL = `SELECT external_id, project_name, customer, utility, county, state,
	fuel_type, status, capacity_mw, content_hash, confidence_score,
	confidence_notes, project_type, source, source_url,
	created_at, last_seen, is_archived
FROM projects`

func (s *SQLiteStore) ListProjects(ctx context.Context, filter Filter) ([]model.Project, error) {
	query, args := buildProjectQuery(projectSelectSQL, filter, true)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list projects")
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan project")
		}
		projects = append(projects, *p)
	}
	return projects, eris.Wrap(rows.Err(), "sqlite: list projects iterate")
}

func (s *SQLiteStore) CountProjects(ctx context.Context, filter Filter) (int, error) {
	query, args := buildProjectQuery(`SELECT COUNT(*) FROM projects`, filter, false)
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count projects")
	}
	return n, nil
}

// buildProjectQuery appends filter clauses using ? placeholders. Ordering
// and pagination are only applied when paginate is set.
func buildProjectQuery(base string, filter Filter, paginate bool) (string, []any) {
	query := base + ` WHERE 1=1`
	var args []any

	if !filter.IncludeArchived {
		query += ` AND is_archived = 0`
	}
	if filter.MinScore > 0 {
		query += ` AND confidence_score >= ?`
		args = append(args, filter.MinScore)
	}
	if filter.MinCapacityMW > 0 {
		query += ` AND capacity_mw >= ?`
		args = append(args, filter.MinCapacityMW)
	}
	if filter.ProjectType != "" {
		query += ` AND project_type = ?`
		args = append(args, string(filter.ProjectType))
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}

	if !paginate {
		return query, args
	}

	query += ` ORDER BY confidence_score DESC, capacity_mw DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}
	return query, args
}

func (s *SQLiteStore) InsertRun(ctx context.Context, run model.RunRecord) error {
	bySourceJSON, err := json.Marshal(run.BySource)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal by_source")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, sources_checked, projects_found,
			projects_stored, duration_seconds, by_source, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.SourcesChecked, run.ProjectsFound,
		run.ProjectsStored, run.Duration, string(bySourceJSON), string(run.Status),
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, sources_checked, projects_found, projects_stored,
			duration_seconds, by_source, status
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, sources_checked, projects_found, projects_stored,
			duration_seconds, by_source, status
		 FROM runs ORDER BY started_at DESC LIMIT 1`,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest run")
	}
	return r, nil
}

func (s *SQLiteStore) SourceNextDue(ctx context.Context, source string) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT next_due FROM source_sync WHERE source = ? ORDER BY synced_at DESC LIMIT 1`,
		source,
	).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: next due for %s", source)
	}
	return &t, nil
}

func (s *SQLiteStore) RecordSourceSync(ctx context.Context, source string, records int, nextDue time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_sync (source, records, synced_at, next_due) VALUES (?, ?, ?, ?)`,
		source, records, time.Now().UTC(), nextDue,
	)
	return eris.Wrapf(err, "sqlite: record sync for %s", source)
}

// ArchiveStale flags projects not re-observed within the window. Archived
// records drop out of active views but remain queryable.
func (s *SQLiteStore) ArchiveStale(ctx context.Context, window time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-window)
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET is_archived = 1 WHERE is_archived = 0 AND last_seen < ?`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: archive stale")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: archive stale rows affected")
}

// PurgeOlderThan physically deletes records beyond the window. Only the
// explicit retention sweep calls this; normal reconciliation never deletes.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, window time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-window)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM projects WHERE last_seen < ?`, cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: purge rows affected")
}

// AcquireRunLock takes the single-row write lease. It succeeds when the
// lock is free, expired, or already held by the same owner.
func (s *SQLiteStore) AcquireRunLock(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	expires := time.Now().UTC().Add(ttl)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO run_lock (id, owner, expires_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		 WHERE run_lock.expires_at <= ? OR run_lock.owner = excluded.owner`,
		owner, expires, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: acquire run lock")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: acquire run lock rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ReleaseRunLock(ctx context.Context, owner string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM run_lock WHERE id = 1 AND owner = ?`, owner,
	)
	return eris.Wrap(err, "sqlite: release run lock")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanProject(row scannable) (*model.Project, error) {
	var p model.Project
	var notesJSON, projectType string
	var archived int

	err := row.Scan(
		&p.ExternalID, &p.ProjectName, &p.Customer, &p.Utility, &p.County,
		&p.State, &p.FuelType, &p.Status, &p.CapacityMW, &p.ContentHash,
		&p.ConfidenceScore, &notesJSON, &projectType, &p.Source, &p.SourceURL,
		&p.CreatedAt, &p.LastSeen, &archived,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(notesJSON), &p.ConfidenceNotes); err != nil {
		return nil, eris.Wrap(err, "unmarshal confidence notes")
	}
	p.ProjectType = model.ProjectType(projectType)
	p.IsArchived = archived != 0
	return &p, nil
}

func scanRun(row scannable) (*model.RunRecord, error) {
	var r model.RunRecord
	var bySourceJSON, status string

	err := row.Scan(
		&r.ID, &r.StartedAt, &r.SourcesChecked, &r.ProjectsFound,
		&r.ProjectsStored, &r.Duration, &bySourceJSON, &status,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(bySourceJSON), &r.BySource); err != nil {
		return nil, eris.Wrap(err, "unmarshal by_source")
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}
