package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridhound/gridhound/internal/config"
	"github.com/gridhound/gridhound/internal/fetcher"
	"github.com/gridhound/gridhound/internal/model"
	"github.com/gridhound/gridhound/internal/source"
	"github.com/gridhound/gridhound/internal/store"
)

// stubAdapter feeds canned rows into the pipeline without touching the
// network.
type stubAdapter struct {
	name    string
	cadence source.Cadence
	records []model.RawRecord
	err     error
	calls   int
}

func (s *stubAdapter) Name() string      { return s.name }
func (s *stubAdapter) SourceURL() string { return "https://example.com/" + s.name }

func (s *stubAdapter) Cadence() source.Cadence {
	if s.cadence == "" {
		return source.EveryRun
	}
	return s.cadence
}

func (s *stubAdapter) Fetch(ctx context.Context, _ *fetcher.Client) ([]model.RawRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

var alphaRecord = model.RawRecord{
	"Queue ID":     "AG1-101",
	"Project Name": "Project Alpha LLC",
	"Customer":     "Amazon Data Services",
	"Capacity MW":  "250",
	"County":       "Loudoun",
	"State":        "VA",
	"Fuel Type":    "Load",
}

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			MinCapacityMW:      50,
			Concurrency:        2,
			AdapterTimeoutSecs: 30,
		},
		Scorer: config.ScorerConfig{Cutoff: 40, StrictCutoff: 60, MaxNotes: 5},
		Fetch:  config.FetchConfig{TimeoutSecs: 5, MaxRetries: 1},
	}
}

func newTestRunner(t *testing.T, adapters ...source.Adapter) (*Runner, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	r, err := NewRunner(testConfig(), st)
	require.NoError(t, err)

	reg := &source.Registry{}
	for _, a := range adapters {
		reg.Register(a)
	}
	r.registry = reg

	return r, st
}

func TestRunStoresSuspectedProject(t *testing.T) {
	adapter := &stubAdapter{name: "pjm", records: []model.RawRecord{alphaRecord}}
	r, st := newTestRunner(t, adapter)
	ctx := context.Background()

	run, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, model.RunSuccess, run.Status)
	assert.Equal(t, 1, run.SourcesChecked)
	assert.Equal(t, 1, run.ProjectsFound)
	assert.Equal(t, 1, run.ProjectsStored)
	assert.True(t, run.BySource["pjm"].OK)

	p, err := st.GetProject(ctx, "pjm_AG1-101")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.ConfidenceScore, 90)
	assert.Equal(t, model.TypeDatacenter, p.ProjectType)
	assert.Equal(t, 250.0, p.CapacityMW)
	assert.NotEmpty(t, p.ContentHash)
	assert.NotEmpty(t, p.ConfidenceNotes)
	assert.Equal(t, "https://example.com/pjm", p.SourceURL)

	// The run record is persisted.
	latest, err := st.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID, latest.ID)
}

func TestRunTwiceDeduplicates(t *testing.T) {
	adapter := &stubAdapter{name: "pjm", records: []model.RawRecord{alphaRecord}}
	r, st := newTestRunner(t, adapter)
	ctx := context.Background()

	_, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	first, err := st.GetProject(ctx, "pjm_AG1-101")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = r.Run(ctx, RunOptions{})
	require.NoError(t, err)

	count, err := st.CountProjects(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	second, err := st.GetProject(ctx, "pjm_AG1-101")
	require.NoError(t, err)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, second.LastSeen.After(first.LastSeen))
}

func TestRunIsolatesSourceFailure(t *testing.T) {
	good := &stubAdapter{name: "pjm", records: []model.RawRecord{alphaRecord}}
	bad := &stubAdapter{name: "ercot", err: eris.New("http 503")}
	r, st := newTestRunner(t, good, bad)
	ctx := context.Background()

	run, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, model.RunPartial, run.Status)
	assert.Equal(t, 2, run.SourcesChecked)
	assert.Equal(t, 1, run.ProjectsStored)
	assert.True(t, run.BySource["pjm"].OK)
	assert.False(t, run.BySource["ercot"].OK)
	assert.Contains(t, run.BySource["ercot"].Error, "http 503")

	// The failing source never blocks the good one.
	_, err = st.GetProject(ctx, "pjm_AG1-101")
	assert.NoError(t, err)
}

func TestRunAllSourcesFailed(t *testing.T) {
	bad := &stubAdapter{name: "ercot", err: eris.New("connection refused")}
	r, st := newTestRunner(t, bad)
	ctx := context.Background()

	run, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, run.Status)

	// Even a failed run is recorded.
	latest, err := st.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, model.RunFailed, latest.Status)
}

func TestRunStoresLowScoreRecords(t *testing.T) {
	solar := model.RawRecord{
		"Queue ID":     "Q-7",
		"Project Name": "Sunrise Solar Farm",
		"Capacity MW":  "300",
		"Fuel Type":    "Solar",
	}
	adapter := &stubAdapter{name: "miso", records: []model.RawRecord{solar, alphaRecord}}
	r, st := newTestRunner(t, adapter)
	ctx := context.Background()

	run, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)

	// Capacity is the only persistence filter; low scorers land in the
	// store with their score and type intact.
	assert.Equal(t, 2, run.ProjectsFound)
	assert.Equal(t, 2, run.ProjectsStored)

	p, err := st.GetProject(ctx, "miso_Q-7")
	require.NoError(t, err)
	assert.Less(t, p.ConfidenceScore, 40)
	assert.Equal(t, model.TypeSolar, p.ProjectType)
	assert.Equal(t, 300.0, p.CapacityMW)

	// Low scorers stay queryable by type and are excluded by MinScore.
	solarRows, err := st.ListProjects(ctx, store.Filter{ProjectType: model.TypeSolar})
	require.NoError(t, err)
	require.Len(t, solarRows, 1)
	assert.Equal(t, "miso_Q-7", solarRows[0].ExternalID)

	suspects, err := st.CountProjects(ctx, store.Filter{MinScore: 40})
	require.NoError(t, err)
	assert.Equal(t, 1, suspects)
}

func TestRunDropsBelowCapacityFloor(t *testing.T) {
	small := model.RawRecord{
		"Queue ID":     "Q-8",
		"Project Name": "Project Alpha LLC",
		"Customer":     "Amazon Data Services",
		"Capacity MW":  "30",
		"Fuel Type":    "Load",
	}
	adapter := &stubAdapter{name: "miso", records: []model.RawRecord{small}}
	r, st := newTestRunner(t, adapter)
	ctx := context.Background()

	run, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, run.ProjectsStored)

	count, err := st.CountProjects(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRunCutoffIsQueryConcern(t *testing.T) {
	// A record scoring between the default and strict cutoffs is stored
	// either way; classification moves with the MinScore filter alone.
	mid := model.RawRecord{
		"Queue ID":     "Q-9",
		"Project Name": "Quail Run large load interconnect",
		"Capacity MW":  "220",
		"County":       "Prince William",
		"State":        "VA",
	}
	adapter := &stubAdapter{name: "pjm", records: []model.RawRecord{mid}}
	r, st := newTestRunner(t, adapter)
	ctx := context.Background()

	run, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, run.ProjectsStored)

	p, err := st.GetProject(ctx, "pjm_Q-9")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.ConfidenceScore, 40)
	assert.Less(t, p.ConfidenceScore, 60)

	def, err := st.CountProjects(ctx, store.Filter{MinScore: 40})
	require.NoError(t, err)
	assert.Equal(t, 1, def)

	strict, err := st.CountProjects(ctx, store.Filter{MinScore: 60})
	require.NoError(t, err)
	assert.Equal(t, 0, strict)
}

func TestRunUtilityDoesNotSkewScore(t *testing.T) {
	// Same facility disclosed by two sources, one naming a transmission
	// owner whose name carries a generation term. The owner is recorded
	// but never scored.
	withUtility := model.RawRecord{}
	for k, v := range alphaRecord {
		withUtility[k] = v
	}
	withUtility["Transmission Owner"] = "Sunrise Solar Transmission Co"

	a := &stubAdapter{name: "pjm", records: []model.RawRecord{alphaRecord}}
	b := &stubAdapter{name: "miso", records: []model.RawRecord{withUtility}}
	r, st := newTestRunner(t, a, b)
	ctx := context.Background()

	_, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)

	plain, err := st.GetProject(ctx, "pjm_AG1-101")
	require.NoError(t, err)
	owned, err := st.GetProject(ctx, "miso_AG1-101")
	require.NoError(t, err)

	assert.Equal(t, plain.ConfidenceScore, owned.ConfidenceScore)
	assert.Equal(t, "Sunrise Solar Transmission Co", owned.Utility)
	assert.Equal(t, model.TypeDatacenter, owned.ProjectType)
}

func TestRunMonthlyGating(t *testing.T) {
	slow := &stubAdapter{name: "lbnl", cadence: source.Monthly, records: []model.RawRecord{alphaRecord}}
	r, _ := newTestRunner(t, slow)
	ctx := context.Background()

	// Never synced: due.
	run, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, run.SourcesChecked)
	assert.Equal(t, 1, slow.calls)

	// Synced this month: gated out.
	run, err = r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, run.SourcesChecked)
	assert.Equal(t, 1, slow.calls)

	// Force overrides the gate.
	run, err = r.Run(ctx, RunOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, run.SourcesChecked)
	assert.Equal(t, 2, slow.calls)
}

func TestRunSourceSubset(t *testing.T) {
	a := &stubAdapter{name: "pjm", records: []model.RawRecord{alphaRecord}}
	b := &stubAdapter{name: "miso", records: []model.RawRecord{alphaRecord}}
	r, _ := newTestRunner(t, a, b)
	ctx := context.Background()

	run, err := r.Run(ctx, RunOptions{Sources: []string{"miso"}})
	require.NoError(t, err)
	assert.Equal(t, 1, run.SourcesChecked)
	assert.Equal(t, 0, a.calls)
	assert.Equal(t, 1, b.calls)

	_, err = r.Run(ctx, RunOptions{Sources: []string{"unknown"}})
	assert.Error(t, err)
}
