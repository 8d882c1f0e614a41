package source

import (
	"bytes"
	"context"

	"github.com/rotisserie/eris"

	"github.com/gridhound/gridhound/internal/fetcher"
	"github.com/gridhound/gridhound/internal/model"
)

const nyisoQueueURL = "https://www.nyiso.com/documents/20142/1407078/NYISO-Interconnection-Queue.csv"

// NYISO fetches the NYISO interconnection queue export. The export leads
// with a title banner row before the real header.
type NYISO struct{}

func (*NYISO) Name() string      { return "nyiso" }
func (*NYISO) SourceURL() string { return nyisoQueueURL }
func (*NYISO) Cadence() Cadence  { return EveryRun }

func (n *NYISO) Fetch(ctx context.Context, client *fetcher.Client) ([]model.RawRecord, error) {
	data, err := client.Get(ctx, fetcher.Request{
		URL:    nyisoQueueURL,
		Accept: "text/csv",
	})
	if err != nil {
		return nil, eris.Wrap(err, "nyiso: fetch queue csv")
	}

	rows, err := fetcher.ReadCSV(bytes.NewReader(data), fetcher.CSVOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "nyiso: parse queue csv")
	}

	// Find the header row: exports sometimes lead with banner rows that
	// hold a single title cell.
	start := -1
	for i, row := range rows {
		if len(row) >= 3 {
			start = i
			break
		}
	}
	if start < 0 || start+1 >= len(rows) {
		return nil, eris.New("nyiso: queue csv has no data rows")
	}

	records := rowsToRecords(rows[start], rows[start+1:])
	return dropWithdrawn(records), nil
}
