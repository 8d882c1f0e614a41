package source

import (
	"bytes"
	"context"

	"github.com/rotisserie/eris"

	"github.com/gridhound/gridhound/internal/fetcher"
	"github.com/gridhound/gridhound/internal/model"
)

const misoQueueURL = "https://www.misoenergy.org/api/giqueue/getprojects?format=csv"

// MISO fetches the MISO generator interconnection queue as CSV.
type MISO struct{}

func (*MISO) Name() string      { return "miso" }
func (*MISO) SourceURL() string { return misoQueueURL }
func (*MISO) Cadence() Cadence  { return EveryRun }

func (m *MISO) Fetch(ctx context.Context, client *fetcher.Client) ([]model.RawRecord, error) {
	data, err := client.Get(ctx, fetcher.Request{
		URL:    misoQueueURL,
		Accept: "text/csv",
	})
	if err != nil {
		return nil, eris.Wrap(err, "miso: fetch queue csv")
	}

	rows, err := fetcher.ReadCSV(bytes.NewReader(data), fetcher.CSVOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "miso: parse queue csv")
	}
	if len(rows) < 2 {
		return nil, eris.New("miso: queue csv has no data rows")
	}

	records := rowsToRecords(rows[0], rows[1:])
	return dropWithdrawn(records), nil
}
