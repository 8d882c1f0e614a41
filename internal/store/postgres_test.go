package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridhound/gridhound/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresGetProjectNotFound(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT external_id, project_name`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetProject(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertBatchInsert(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT external_id FROM projects WHERE external_id`).
		WithArgs("pjm_1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT external_id FROM projects WHERE content_hash`).
		WithArgs("h1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO projects`).
		WithArgs(
			"pjm_1", "Project Alpha LLC", "Amazon Data Services", "", "Loudoun", "VA",
			"Load", "Active", 250.0, "h1", 95,
			pgxmock.AnyArg(), "datacenter", "pjm", "https://example.com/queue",
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	stats, err := s.UpsertBatch(context.Background(), []model.Project{testProject("pjm_1", "h1")})
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{Inserted: 1}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertBatchUpdateByHash(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT external_id FROM projects WHERE external_id`).
		WithArgs("pjm_new").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT external_id FROM projects WHERE content_hash`).
		WithArgs("h1").
		WillReturnRows(pgxmock.NewRows([]string{"external_id"}).AddRow("pjm_old"))
	mock.ExpectExec(`UPDATE projects SET`).
		WithArgs(
			"pjm_new", "Project Alpha LLC", "Amazon Data Services", "",
			"Loudoun", "VA", "Load", "Active", 250.0,
			"h1", 95, pgxmock.AnyArg(),
			"datacenter", "pjm", "https://example.com/queue",
			pgxmock.AnyArg(), "pjm_old",
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	stats, err := s.UpsertBatch(context.Background(), []model.Project{testProject("pjm_new", "h1")})
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{Updated: 1}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceNextDue(t *testing.T) {
	s, mock := newMockPostgres(t)

	nextDue := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT next_due FROM source_sync`).
		WithArgs("lbnl").
		WillReturnRows(pgxmock.NewRows([]string{"next_due"}).AddRow(nextDue))

	got, err := s.SourceNextDue(context.Background(), "lbnl")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(nextDue))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceNextDueNever(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT next_due FROM source_sync`).
		WithArgs("pjm").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.SourceNextDue(context.Background(), "pjm")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchiveStale(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE projects SET is_archived = true`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := s.ArchiveStale(context.Background(), 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAcquireRunLock(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO run_lock`).
		WithArgs("owner-a", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO run_lock`).
		WithArgs("owner-b", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	ok, err := s.AcquireRunLock(context.Background(), "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireRunLock(context.Background(), "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertRun(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", pgxmock.AnyArg(), 3, 42, 7, 12.5, pgxmock.AnyArg(), "partial").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertRun(context.Background(), model.RunRecord{
		ID:             "run-1",
		StartedAt:      time.Now().UTC(),
		SourcesChecked: 3,
		ProjectsFound:  42,
		ProjectsStored: 7,
		Duration:       12.5,
		BySource:       map[string]model.SourceOutcome{"pjm": {Records: 42, OK: true}},
		Status:         model.RunPartial,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
