package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gridhound/gridhound/internal/model"
)

// pgPool is the subset of pgxpool.Pool the store needs. Tests substitute a
// pgxmock pool through the same interface.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    pgPool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS projects (
	external_id      TEXT PRIMARY KEY,
	project_name     TEXT NOT NULL DEFAULT '',
	customer         TEXT NOT NULL DEFAULT '',
	utility          TEXT NOT NULL DEFAULT '',
	county           TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	fuel_type        TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT '',
	capacity_mw      DOUBLE PRECISION NOT NULL,
	content_hash     TEXT NOT NULL,
	confidence_score INTEGER NOT NULL DEFAULT 0,
	confidence_notes JSONB NOT NULL DEFAULT '[]',
	project_type     TEXT NOT NULL DEFAULT 'other',
	source           TEXT NOT NULL,
	source_url       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	last_seen        TIMESTAMPTZ NOT NULL,
	is_archived      BOOLEAN NOT NULL DEFAULT false
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_content_hash ON projects(content_hash);
CREATE INDEX IF NOT EXISTS idx_projects_score ON projects(confidence_score DESC, capacity_mw DESC);
CREATE INDEX IF NOT EXISTS idx_projects_state ON projects(state);
CREATE INDEX IF NOT EXISTS idx_projects_last_seen ON projects(last_seen);

CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	started_at       TIMESTAMPTZ NOT NULL,
	sources_checked  INTEGER NOT NULL,
	projects_found   INTEGER NOT NULL,
	projects_stored  INTEGER NOT NULL,
	duration_seconds DOUBLE PRECISION NOT NULL,
	by_source        JSONB NOT NULL DEFAULT '{}',
	status           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS source_sync (
	id        BIGSERIAL PRIMARY KEY,
	source    TEXT NOT NULL,
	records   INTEGER NOT NULL DEFAULT 0,
	synced_at TIMESTAMPTZ NOT NULL,
	next_due  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_source_sync_source ON source_sync(source, synced_at DESC);

CREATE TABLE IF NOT EXISTS run_lock (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	owner      TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// UpsertBatch merges scored records inside one transaction. Matching and
// skip semantics are identical to the SQLite backend.
func (s *PostgresStore) UpsertBatch(ctx context.Context, projects []model.Project) (ReconcileStats, error) {
	var stats ReconcileStats

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return stats, eris.Wrap(err, "postgres: begin upsert batch")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	for i := range projects {
		p := &projects[i]
		outcome, err := pgUpsertOne(ctx, tx, p, now)
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

	if err := tx.Commit(ctx); err != nil {
		return ReconcileStats{}, eris.Wrap(err, "postgres: commit upsert batch")
	}
	return stats, nil
}

func pgUpsertOne(ctx context.Context, tx pgx.Tx, p *model.Project, now time.Time) (upsertOutcome, error) {
	notesJSON, err := json.Marshal(p.ConfidenceNotes)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal notes")
	}

	var existingID string
	err = tx.QueryRow(ctx,
		`SELECT external_id FROM projects WHERE external_id = $1`, p.ExternalID,
	).Scan(&existingID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx,
			`SELECT external_id FROM projects WHERE content_hash = $1`, p.ContentHash,
		).Scan(&existingID)
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrap(err, "postgres: lookup existing")
	}

	if errors.Is(err, pgx.ErrNoRows) {
		_, err := tx.Exec(ctx,
			`INSERT INTO projects (
				external_id, project_name, customer, utility, county, state,
				fuel_type, status, capacity_mw, content_hash, confidence_score,
				confidence_notes, project_type, source, source_url,
				created_at, last_seen, is_archived
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, false)`,
			p.ExternalID, p.ProjectName, p.Customer, p.Utility, p.County, p.State,
			p.FuelType, p.Status, p.CapacityMW, p.ContentHash, p.ConfidenceScore,
			notesJSON, string(p.ProjectType), p.Source, p.SourceURL,
			now, now,
		)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: insert project")
		}
		return upsertInserted, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE projects SET
			external_id = $1, project_name = $2, customer = $3, utility = $4,
			county = $5, state = $6, fuel_type = $7, status = $8, capacity_mw = $9,
			content_hash = $10, confidence_score = $11, confidence_notes = $12,
			project_type = $13, source = $14, source_url = $15,
			last_seen = $16, is_archived = false
		WHERE external_id = $17`,
		p.ExternalID, p.ProjectName, p.Customer, p.Utility,
		p.County, p.State, p.FuelType, p.Status, p.CapacityMW,
		p.ContentHash, p.ConfidenceScore, notesJSON,
		string(p.ProjectType), p.Source, p.SourceURL,
		now, existingID,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: update project")
	}
	return upsertUpdated, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, externalID string) (*model.Project, error) {
	row := s.pool.QueryRow(ctx,
		projectSelectSQL+` WHERE external_id = $1`, externalID,
	)
	p, err := pgScanProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get project %s", externalID)
	}
	return p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, filter Filter) ([]model.Project, error) {
	query, args := buildProjectQueryPG(projectSelectSQL, filter, true)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list projects")
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := pgScanProject(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan project")
		}
		projects = append(projects, *p)
	}
	return projects, eris.Wrap(rows.Err(), "postgres: list projects iterate")
}

func (s *PostgresStore) CountProjects(ctx context.Context, filter Filter) (int, error) {
	query, args := buildProjectQueryPG(`SELECT COUNT(*) FROM projects`, filter, false)
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count projects")
	}
	return n, nil
}

// buildProjectQueryPG appends filter clauses using $n placeholders.
func buildProjectQueryPG(base string, filter Filter, paginate bool) (string, []any) {
	query := base + ` WHERE true`
	var args []any
	argIdx := 1

	if !filter.IncludeArchived {
		query += ` AND is_archived = false`
	}
	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND confidence_score >= $%d`, argIdx)
		args = append(args, filter.MinScore)
		argIdx++
	}
	if filter.MinCapacityMW > 0 {
		query += fmt.Sprintf(` AND capacity_mw >= $%d`, argIdx)
		args = append(args, filter.MinCapacityMW)
		argIdx++
	}
	if filter.ProjectType != "" {
		query += fmt.Sprintf(` AND project_type = $%d`, argIdx)
		args = append(args, string(filter.ProjectType))
		argIdx++
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}

	if !paginate {
		return query, args
	}

	query += ` ORDER BY confidence_score DESC, capacity_mw DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}
	return query, args
}

func (s *PostgresStore) InsertRun(ctx context.Context, run model.RunRecord) error {
	bySourceJSON, err := json.Marshal(run.BySource)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal by_source")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, started_at, sources_checked, projects_found,
			projects_stored, duration_seconds, by_source, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.StartedAt, run.SourcesChecked, run.ProjectsFound,
		run.ProjectsStored, run.Duration, bySourceJSON, string(run.Status),
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, sources_checked, projects_found, projects_stored,
			duration_seconds, by_source, status
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		r, err := pgScanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*model.RunRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, started_at, sources_checked, projects_found, projects_stored,
			duration_seconds, by_source, status
		 FROM runs ORDER BY started_at DESC LIMIT 1`,
	)
	r, err := pgScanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest run")
	}
	return r, nil
}

func (s *PostgresStore) SourceNextDue(ctx context.Context, source string) (*time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT next_due FROM source_sync WHERE source = $1 ORDER BY synced_at DESC LIMIT 1`,
		source,
	).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: next due for %s", source)
	}
	return &t, nil
}

func (s *PostgresStore) RecordSourceSync(ctx context.Context, source string, records int, nextDue time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO source_sync (source, records, synced_at, next_due) VALUES ($1, $2, $3, $4)`,
		source, records, time.Now().UTC(), nextDue,
	)
	return eris.Wrapf(err, "postgres: record sync for %s", source)
}

func (s *PostgresStore) ArchiveStale(ctx context.Context, window time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-window)
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET is_archived = true WHERE is_archived = false AND last_seen < $1`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: archive stale")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) PurgeOlderThan(ctx context.Context, window time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-window)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM projects WHERE last_seen < $1`, cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) AcquireRunLock(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	expires := time.Now().UTC().Add(ttl)
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO run_lock (id, owner, expires_at) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
		 WHERE run_lock.expires_at <= $3 OR run_lock.owner = EXCLUDED.owner`,
		owner, expires, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: acquire run lock")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ReleaseRunLock(ctx context.Context, owner string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM run_lock WHERE id = 1 AND owner = $1`, owner,
	)
	return eris.Wrap(err, "postgres: release run lock")
}

// pgScanProject reads one project row. confidence_notes arrives as JSONB
// bytes rather than TEXT, so the SQLite scanner does not apply.
func pgScanProject(row scannable) (*model.Project, error) {
	var p model.Project
	var notesJSON []byte
	var projectType string

	err := row.Scan(
		&p.ExternalID, &p.ProjectName, &p.Customer, &p.Utility, &p.County,
		&p.State, &p.FuelType, &p.Status, &p.CapacityMW, &p.ContentHash,
		&p.ConfidenceScore, &notesJSON, &projectType, &p.Source, &p.SourceURL,
		&p.CreatedAt, &p.LastSeen, &p.IsArchived,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(notesJSON, &p.ConfidenceNotes); err != nil {
		return nil, eris.Wrap(err, "unmarshal confidence notes")
	}
	p.ProjectType = model.ProjectType(projectType)
	return &p, nil
}

func pgScanRun(row scannable) (*model.RunRecord, error) {
	var r model.RunRecord
	var bySourceJSON []byte
	var status string

	err := row.Scan(
		&r.ID, &r.StartedAt, &r.SourcesChecked, &r.ProjectsFound,
		&r.ProjectsStored, &r.Duration, &bySourceJSON, &status,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(bySourceJSON, &r.BySource); err != nil {
		return nil, eris.Wrap(err, "unmarshal by_source")
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}
