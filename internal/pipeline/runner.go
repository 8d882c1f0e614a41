// Package pipeline orchestrates one ingestion run: fan out over source
// adapters, normalize and score raw records, and reconcile the result into
// the store under a single run lock.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gridhound/gridhound/internal/config"
	"github.com/gridhound/gridhound/internal/extract"
	"github.com/gridhound/gridhound/internal/fetcher"
	"github.com/gridhound/gridhound/internal/identity"
	"github.com/gridhound/gridhound/internal/model"
	"github.com/gridhound/gridhound/internal/scorer"
	"github.com/gridhound/gridhound/internal/source"
	"github.com/gridhound/gridhound/internal/store"
)

// lockTTL bounds how long a crashed run can hold the write lease.
const lockTTL = 15 * time.Minute

// RunOptions selects and tunes one pipeline invocation.
type RunOptions struct {
	// Sources restricts the run to a subset of registered adapters.
	// Empty means all.
	Sources []string
	// Force ignores cadence gating for slow sources.
	Force bool
}

// Runner wires adapters, extraction, scoring, and the store into one
// orchestrated run.
type Runner struct {
	cfg       *config.Config
	store     store.Store
	registry  *source.Registry
	client    *fetcher.Client
	scorer    *scorer.Scorer
	extractor *extract.Extractor
}

// NewRunner builds a Runner from configuration. The rules file, when set,
// overlays both the scorer rule table and the field synonym map.
func NewRunner(cfg *config.Config, st store.Store) (*Runner, error) {
	ruleCfg, err := scorer.LoadConfig(cfg.Pipeline.RulesFile)
	if err != nil {
		return nil, err
	}
	if cfg.Scorer.MaxNotes > 0 {
		ruleCfg.MaxNotes = cfg.Scorer.MaxNotes
	}
	sc, err := scorer.New(ruleCfg)
	if err != nil {
		return nil, err
	}

	fields, err := extract.LoadFieldMap(cfg.Pipeline.RulesFile)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:      cfg,
		store:    st,
		registry: source.NewRegistry(),
		client: fetcher.NewClient(fetcher.Options{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetch.MaxRetries,
		}),
		scorer:    sc,
		extractor: extract.New(fields, cfg.Pipeline.MinCapacityMW),
	}, nil
}

// sourceResult is one adapter's contribution, joined before the store write.
type sourceResult struct {
	adapter  source.Adapter
	projects []model.Project
	found    int
	err      error
}

// Run executes one full pipeline invocation and returns its run record.
// Per-source failures are absorbed into the record; only a failure to
// reach the store propagates as an error.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*model.RunRecord, error) {
	started := time.Now().UTC()
	run := &model.RunRecord{
		ID:        uuid.New().String(),
		StartedAt: started,
		BySource:  make(map[string]model.SourceOutcome),
		Status:    model.RunFailed,
	}
	adapters, err := r.registry.Select(opts.Sources)
	if err != nil {
		return run, err
	}
	adapters, err = r.gateByCadence(ctx, adapters, opts.Force)
	if err != nil {
		return run, err
	}
	run.SourcesChecked = len(adapters)

	results := r.fetchAll(ctx, adapters)

	var batch []model.Project
	failures := 0
	for _, res := range results {
		name := res.adapter.Name()
		if res.err != nil {
			zap.L().Warn("source failed",
				zap.String("source", name),
				zap.Error(res.err),
			)
			run.BySource[name] = model.SourceOutcome{Error: res.err.Error()}
			failures++
			continue
		}
		run.BySource[name] = model.SourceOutcome{Records: len(res.projects), OK: true}
		run.ProjectsFound += res.found
		batch = append(batch, res.projects...)
	}

	// Single write phase under the run lock. Two concurrent reconciliation
	// passes could race on upsert-by-identity.
	acquired, err := r.store.AcquireRunLock(ctx, run.ID, lockTTL)
	if err != nil {
		return run, eris.Wrap(err, "pipeline: acquire run lock")
	}
	if !acquired {
		return run, eris.New("pipeline: another run holds the lock")
	}
	defer func() {
		if err := r.store.ReleaseRunLock(context.WithoutCancel(ctx), run.ID); err != nil {
			zap.L().Warn("release run lock", zap.Error(err))
		}
	}()

	stats, err := r.store.UpsertBatch(ctx, batch)
	if err != nil {
		run.Duration = time.Since(started).Seconds()
		if insertErr := r.store.InsertRun(ctx, *run); insertErr != nil {
			zap.L().Error("record failed run", zap.Error(insertErr))
		}
		return run, eris.Wrap(err, "pipeline: upsert batch")
	}
	run.ProjectsStored = stats.Inserted + stats.Updated

	r.recordSyncs(ctx, results)

	switch {
	case len(adapters) > 0 && failures == len(adapters):
		run.Status = model.RunFailed
	case failures > 0 || stats.Skipped > 0:
		run.Status = model.RunPartial
	default:
		run.Status = model.RunSuccess
	}
	run.Duration = time.Since(started).Seconds()

	if err := r.store.InsertRun(ctx, *run); err != nil {
		return run, eris.Wrap(err, "pipeline: record run")
	}

	zap.L().Info("run complete",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("found", run.ProjectsFound),
		zap.Int("stored", run.ProjectsStored),
		zap.Int("skipped", stats.Skipped),
		zap.Float64("duration_seconds", run.Duration),
	)
	return run, nil
}

// gateByCadence drops adapters whose persisted next_due is still in the
// future. Sources with no sync row yet are always due.
func (r *Runner) gateByCadence(ctx context.Context, adapters []source.Adapter, force bool) ([]source.Adapter, error) {
	if force {
		return adapters, nil
	}
	now := time.Now().UTC()
	var due []source.Adapter
	for _, a := range adapters {
		next, err := r.store.SourceNextDue(ctx, a.Name())
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: sync state for %s", a.Name())
		}
		if next != nil && now.Before(*next) {
			zap.L().Debug("source not due",
				zap.String("source", a.Name()),
				zap.Time("next_due", *next),
			)
			continue
		}
		due = append(due, a)
	}
	return due, nil
}

// fetchAll runs adapters with bounded parallelism. Each adapter fetch is
// independently timed out and its failure captured, never propagated.
func (r *Runner) fetchAll(ctx context.Context, adapters []source.Adapter) []sourceResult {
	concurrency := r.cfg.Pipeline.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	timeout := time.Duration(r.cfg.Pipeline.AdapterTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	results := make([]sourceResult, len(adapters))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, a := range adapters {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			res := sourceResult{adapter: a}
			func() {
				defer func() {
					// Adapters self-isolate; this is defense in depth.
					if rec := recover(); rec != nil {
						res.err = eris.Errorf("source %s panicked: %v", a.Name(), rec)
					}
				}()
				raw, err := a.Fetch(fctx, r.client)
				if err != nil {
					res.err = err
					return
				}
				res.found = len(raw)
				res.projects = r.normalize(a, raw)
			}()

			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	return results
}

// normalize converts raw rows into scored canonical projects. The capacity
// floor is the only persistence filter; every record that clears it is
// stored with its score, so classification cutoffs stay a query concern.
func (r *Runner) normalize(a source.Adapter, raw []model.RawRecord) []model.Project {
	var projects []model.Project
	for _, rec := range raw {
		mw, ok := r.extractor.Capacity(rec)
		if !ok {
			continue
		}

		p := model.Project{
			ProjectName: r.extractor.Text(rec, extract.FieldName),
			Customer:    r.extractor.Text(rec, extract.FieldCustomer),
			Utility:     r.extractor.Text(rec, extract.FieldUtility),
			County:      r.extractor.Text(rec, extract.FieldCounty),
			State:       r.extractor.Text(rec, extract.FieldState),
			FuelType:    r.extractor.Text(rec, extract.FieldFuel),
			Status:      r.extractor.Text(rec, extract.FieldStatus),
			CapacityMW:  mw,
			Source:      a.Name(),
			SourceURL:   a.SourceURL(),
		}

		// The utility column names the transmission owner, not anyone
		// building the facility; feeding it to the scorer would let a
		// utility's name trip actor or fuel terms.
		in := scorer.Input{
			Name:       p.ProjectName,
			Customer:   p.Customer,
			County:     p.County,
			State:      p.State,
			FuelType:   p.FuelType,
			CapacityMW: p.CapacityMW,
		}
		result := r.scorer.Score(in)

		p.ConfidenceScore = result.Score
		p.ConfidenceNotes = result.Notes
		p.ProjectType = scorer.ClassifyType(in)
		p.ExternalID = identity.ExternalID(a.Name(), r.extractor.Text(rec, extract.FieldQueueID), p.ProjectName)
		p.ContentHash = identity.Fingerprint(p.ProjectName, p.CapacityMW, p.Location(), p.Source)

		projects = append(projects, p)
	}
	return projects
}

// recordSyncs logs a successful sync for each source that produced a
// result, advancing the cadence gate.
func (r *Runner) recordSyncs(ctx context.Context, results []sourceResult) {
	now := time.Now().UTC()
	for _, res := range results {
		if res.err != nil {
			continue
		}
		nextDue := res.adapter.Cadence().NextDue(now)
		if err := r.store.RecordSourceSync(ctx, res.adapter.Name(), res.found, nextDue); err != nil {
			zap.L().Warn("record source sync",
				zap.String("source", res.adapter.Name()),
				zap.Error(err),
			)
		}
	}
}
