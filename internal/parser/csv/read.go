// Package csv reads a whole CSV file into a records.Dataset. The pipeline
// is full-refresh, so the source is materialized completely before any
// stage runs; there is no streaming path.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"complaintsetl/internal/config"
	"complaintsetl/pkg/records"
)

// Read parses CSV from r. The first record is the header; labels are kept
// verbatim (minus a UTF-8 BOM and edge whitespace) so the sanitizer sees
// the original names.
//
// Options:
//   - "comma" (string, default ","): field separator.
//   - "lazy_quotes" (bool, default false): tolerate bare quotes.
//   - "trim_space" (bool, default true): trim cell edge whitespace.
//
// Empty cells become absent values.
func Read(r io.Reader, opt config.Options) (*records.Dataset, error) {
	comma := opt.Rune("comma", ',')
	lazy := opt.Bool("lazy_quotes", false)
	trim := opt.Bool("trim_space", true)

	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = lazy
	cr.ReuseRecord = true
	// Sources are ragged often enough that strict field counting would
	// reject real exports; short rows are padded with absent values.
	cr.FieldsPerRecord = -1

	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv: empty input, no header")
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	columns := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if records.HasEdgeSpace(h) {
			h = strings.TrimSpace(h)
		}
		columns[i] = h
	}

	ds := &records.Dataset{Columns: columns}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return ds, nil
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}

		row := make([]records.Value, len(columns))
		for i := range columns {
			if i >= len(rec) {
				row[i] = records.Missing()
				continue
			}
			v := rec[i]
			if trim && records.HasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				row[i] = records.Missing()
			} else {
				row[i] = records.String(v)
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
}

// ReadFile reads a CSV file from disk.
func ReadFile(path string, opt config.Options) (*records.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, opt)
}
