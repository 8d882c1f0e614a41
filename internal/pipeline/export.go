package pipeline

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/gridhound/gridhound/internal/model"
	"github.com/gridhound/gridhound/internal/store"
)

// exportRow fixes the export column order. Consumers diff these dumps, so
// the order is part of the contract.
type exportRow struct {
	Identifier string  `csv:"identifier"`
	Name       string  `csv:"name"`
	CapacityMW float64 `csv:"capacity_mw"`
	Location   string  `csv:"location"`
	State      string  `csv:"state"`
	Customer   string  `csv:"customer"`
	Type       string  `csv:"type"`
	Status     string  `csv:"status"`
	Source     string  `csv:"source"`
	Date       string  `csv:"date"`
}

const exportPageSize = 1000

// ExportCSV writes all records matching the filter as delimited text,
// paging through the store. Returns the number of rows written.
func ExportCSV(ctx context.Context, st store.Store, w io.Writer, filter store.Filter) (int, error) {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	// Emit the header up front so an empty result set is still a valid
	// csv document rather than a zero-byte file.
	if err := enc.EncodeHeader(exportRow{}); err != nil {
		return 0, eris.Wrap(err, "export: encode header")
	}

	filter.Limit = exportPageSize
	total := 0
	for {
		projects, err := st.ListProjects(ctx, filter)
		if err != nil {
			return total, eris.Wrap(err, "export: list projects")
		}
		for i := range projects {
			if err := enc.Encode(toExportRow(&projects[i])); err != nil {
				return total, eris.Wrap(err, "export: encode row")
			}
			total++
		}
		if len(projects) < exportPageSize {
			break
		}
		filter.Offset += exportPageSize
	}

	cw.Flush()
	return total, eris.Wrap(cw.Error(), "export: flush")
}

func toExportRow(p *model.Project) exportRow {
	return exportRow{
		Identifier: p.ExternalID,
		Name:       p.ProjectName,
		CapacityMW: p.CapacityMW,
		Location:   p.Location(),
		State:      p.State,
		Customer:   p.Customer,
		Type:       string(p.ProjectType),
		Status:     p.Status,
		Source:     p.Source,
		Date:       p.LastSeen.Format("2006-01-02"),
	}
}
