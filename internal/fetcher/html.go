package fetcher

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Table is one extracted HTML table: a header row plus body rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ParseHTMLTables extracts every <table> from an HTML document. The header
// comes from <th> cells, falling back to the first row. Body rows with
// fewer cells than the header are skipped; column meaning is only reliable
// when positions line up.
func ParseHTMLTables(data []byte) ([]Table, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "html: parse document")
	}

	var tables []Table
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		var t Table

		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}
			if t.Header == nil {
				t.Header = cells
				return
			}
			if len(cells) < len(t.Header) {
				return
			}
			t.Rows = append(t.Rows, cells)
		})

		if t.Header != nil {
			tables = append(tables, t)
		}
	})

	return tables, nil
}

// FindTable returns the first table whose header contains all the given
// column names (case-insensitive substring match). Upstream pages carry
// navigation and legend tables alongside the data table.
func FindTable(tables []Table, required ...string) (Table, bool) {
	for _, t := range tables {
		joined := strings.ToLower(strings.Join(t.Header, "|"))
		ok := true
		for _, col := range required {
			if !strings.Contains(joined, strings.ToLower(col)) {
				ok = false
				break
			}
		}
		if ok {
			return t, true
		}
	}
	return Table{}, false
}
