package source

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/gridhound/gridhound/internal/fetcher"
	"github.com/gridhound/gridhound/internal/model"
)

const lbnlQueueURL = "https://emp.lbl.gov/sites/default/files/queues_clean_data.xlsx"

// LBNL fetches the Berkeley Lab "Queued Up" aggregate, which compiles queue
// data across every balancing authority. Regions already covered by a
// direct adapter are filtered out so the same project is not ingested
// twice under different native ids. Monthly cadence: the aggregate is
// refreshed on a slow schedule and the workbook is large.
type LBNL struct{}

// lbnlCoveredRegions are balancing authorities with a direct adapter.
var lbnlCoveredRegions = []string{"pjm", "miso", "nyiso", "ercot"}

func (*LBNL) Name() string      { return "lbnl" }
func (*LBNL) SourceURL() string { return lbnlQueueURL }
func (*LBNL) Cadence() Cadence  { return Monthly }

func (l *LBNL) Fetch(ctx context.Context, client *fetcher.Client) ([]model.RawRecord, error) {
	data, err := client.Get(ctx, fetcher.Request{
		URL:    lbnlQueueURL,
		Accept: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	})
	if err != nil {
		return nil, eris.Wrap(err, "lbnl: fetch aggregate workbook")
	}

	rows, err := fetcher.ReadXLSX(data, fetcher.XLSXOptions{SheetName: "data"})
	if err != nil {
		// Older releases name the sheet differently; fall back to the
		// first sheet.
		rows, err = fetcher.ReadXLSX(data, fetcher.XLSXOptions{SheetIndex: 0})
		if err != nil {
			return nil, eris.Wrap(err, "lbnl: parse aggregate workbook")
		}
	}
	if len(rows) < 2 {
		return nil, eris.New("lbnl: aggregate workbook has no data rows")
	}

	records := rowsToRecords(rows[0], rows[1:])
	return dropWithdrawn(filterCoveredRegions(records)), nil
}

// filterCoveredRegions drops rows whose balancing authority has a direct
// adapter of its own.
func filterCoveredRegions(records []model.RawRecord) []model.RawRecord {
	var kept []model.RawRecord
	for _, rec := range records {
		region := firstValue(rec, "region", "ba", "balancing authority", "entity", "iso")
		covered := false
		for _, tag := range lbnlCoveredRegions {
			if strings.Contains(strings.ToLower(region), tag) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, rec)
		}
	}
	return kept
}
