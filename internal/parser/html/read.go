// Package html reads a Dataset from an HTML <table>. Complaint exports and
// open-data portals frequently publish tabular extracts as HTML pages
// rather than CSV; this parser accepts them directly.
package html

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"complaintsetl/internal/config"
	"complaintsetl/pkg/records"
)

// Read parses an HTML document and extracts one table as a Dataset.
//
// Options:
//   - "table_index" (int, default 0): which <table> in document order.
//   - "selector" (string): CSS selector for the table; overrides
//     table_index when set.
//
// The header row is the first <tr> containing <th> cells, or the very
// first row when the table has no <th> at all. Header labels are kept
// verbatim (trimmed) for the sanitizer. Empty cells become absent values.
func Read(r io.Reader, opt config.Options) (*records.Dataset, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("html: parse: %w", err)
	}

	sel := opt.String("selector", "")
	index := opt.Int("table_index", 0)

	var table *goquery.Selection
	if sel != "" {
		table = doc.Find(sel).First()
	} else {
		table = doc.Find("table").Eq(index)
	}
	if table.Length() == 0 {
		if sel != "" {
			return nil, fmt.Errorf("html: no table matches selector %q", sel)
		}
		return nil, fmt.Errorf("html: table %d not found", index)
	}

	rows := table.Find("tr")
	if rows.Length() == 0 {
		return nil, fmt.Errorf("html: table has no rows")
	}

	headerIx := -1
	rows.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		if tr.Find("th").Length() > 0 {
			headerIx = i
			return false
		}
		return true
	})
	if headerIx < 0 {
		headerIx = 0
	}

	var columns []string
	rows.Eq(headerIx).Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		columns = append(columns, strings.TrimSpace(cell.Text()))
	})
	if len(columns) == 0 {
		return nil, fmt.Errorf("html: header row has no cells")
	}

	ds := &records.Dataset{Columns: columns}
	rows.Each(func(i int, tr *goquery.Selection) {
		if i <= headerIx {
			return
		}
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}

		row := make([]records.Value, len(columns))
		for j := range row {
			row[j] = records.Missing()
		}
		cells.Each(func(j int, cell *goquery.Selection) {
			if j >= len(columns) {
				return
			}
			v := strings.TrimSpace(cell.Text())
			if v != "" {
				row[j] = records.String(v)
			}
		})
		ds.Rows = append(ds.Rows, row)
	})

	return ds, nil
}

// ReadFile reads an HTML file from disk.
func ReadFile(path string, opt config.Options) (*records.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("html: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, opt)
}
