// Package source holds one adapter per upstream queue disclosure. Adapters
// only turn a source's payload into raw records; normalization and scoring
// happen downstream.
package source

import (
	"context"
	"strings"
	"time"

	"github.com/gridhound/gridhound/internal/fetcher"
	"github.com/gridhound/gridhound/internal/model"
)

// Cadence describes how often a source publishes new data.
type Cadence string

const (
	// EveryRun sources are cheap and fetched on every pipeline invocation.
	EveryRun Cadence = "every_run"
	// Monthly sources publish on a monthly-or-slower schedule and are
	// gated by the next_due recorded with their last successful sync.
	Monthly Cadence = "monthly"
)

// NextDue returns the earliest time the source should run again after a
// successful sync at now. The pipeline persists this alongside the sync
// record and gates future runs on it.
func (c Cadence) NextDue(now time.Time) time.Time {
	if c != Monthly {
		return now
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// Adapter is the contract each upstream source implements. Fetch returns
// the source's rows as raw records or an explicit failure; it never panics
// past its boundary and never partially mutates shared state.
type Adapter interface {
	// Name is the stable source tag used in external ids and run stats.
	Name() string

	// SourceURL is the provenance URL recorded on each project.
	SourceURL() string

	// Cadence returns how often this source publishes.
	Cadence() Cadence

	// Fetch downloads and parses the current disclosure.
	Fetch(ctx context.Context, client *fetcher.Client) ([]model.RawRecord, error)
}

// firstValue returns the first non-empty value among candidate keys,
// matched case-insensitively against the record's columns.
func firstValue(rec model.RawRecord, keys ...string) string {
	for _, key := range keys {
		for col, val := range rec {
			if strings.EqualFold(strings.TrimSpace(col), key) && val != "" {
				return val
			}
		}
	}
	return ""
}

// dropWithdrawn removes rows whose status marks them as withdrawn or
// cancelled. Every source carries some variant of a status column.
func dropWithdrawn(records []model.RawRecord) []model.RawRecord {
	var kept []model.RawRecord
	for _, rec := range records {
		status := strings.ToLower(firstValue(rec, "status", "queue status", "request status", "q_status"))
		if strings.Contains(status, "withdraw") || strings.Contains(status, "cancel") {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// rowsToRecords zips a header row with body rows into raw records. Blank
// rows and rows with no non-empty cell are dropped. Extra cells beyond the
// header are ignored; short rows map what they have.
func rowsToRecords(header []string, rows [][]string) []model.RawRecord {
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = strings.TrimSpace(h)
	}

	var records []model.RawRecord
	for _, row := range rows {
		rec := make(model.RawRecord, len(keys))
		empty := true
		for i, key := range keys {
			if key == "" || i >= len(row) {
				continue
			}
			val := strings.TrimSpace(row[i])
			rec[key] = val
			if val != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		records = append(records, rec)
	}
	return records
}
