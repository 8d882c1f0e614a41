package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/gridhound/gridhound/internal/fetcher"
	"github.com/gridhound/gridhound/internal/model"
)

const pjmQueueURL = "https://www.pjm.com/pub/planning/downloads/queues/PlanningQueues.xlsx"

// PJM fetches the PJM new services queue workbook. The first sheet carries
// active requests; the header sits on the first row.
type PJM struct{}

func (*PJM) Name() string      { return "pjm" }
func (*PJM) SourceURL() string { return pjmQueueURL }
func (*PJM) Cadence() Cadence  { return EveryRun }

func (p *PJM) Fetch(ctx context.Context, client *fetcher.Client) ([]model.RawRecord, error) {
	data, err := client.Get(ctx, fetcher.Request{
		URL:    pjmQueueURL,
		Accept: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	})
	if err != nil {
		return nil, eris.Wrap(err, "pjm: fetch queue workbook")
	}

	rows, err := fetcher.ReadXLSX(data, fetcher.XLSXOptions{SheetIndex: 0})
	if err != nil {
		return nil, eris.Wrap(err, "pjm: parse queue workbook")
	}
	if len(rows) < 2 {
		return nil, eris.New("pjm: queue workbook has no data rows")
	}

	records := rowsToRecords(rows[0], rows[1:])
	return dropWithdrawn(records), nil
}
