// Command inspect samples a tabular source and reports what the pipeline
// would make of it: the original-to-canonical column mapping, per-column
// value statistics, and which columns would feed each dimension axis.
//
// It is meant for sizing up a new export before writing a pipeline config:
//
//	inspect -source complaints.csv
//	inspect -source export.html -kind html
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"complaintsetl/internal/config"
	csvparser "complaintsetl/internal/parser/csv"
	htmlparser "complaintsetl/internal/parser/html"
	"complaintsetl/internal/sanitize"
	"complaintsetl/internal/star"
	"complaintsetl/pkg/records"
)

func main() {
	var (
		source = flag.String("source", "", "path of the source file")
		kind   = flag.String("kind", "csv", "source kind (csv, html)")
		comma  = flag.String("comma", ",", "CSV field separator")
	)
	flag.Parse()

	if *source == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect -source <file> [-kind csv|html]")
		os.Exit(2)
	}

	opts := config.Options{"comma": *comma}

	var (
		ds  *records.Dataset
		err error
	)
	switch *kind {
	case "csv":
		ds, err = csvparser.ReadFile(*source, opts)
	case "html":
		ds, err = htmlparser.ReadFile(*source, opts)
	default:
		err = fmt.Errorf("unsupported kind %q", *kind)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := report(os.Stdout, ds, star.Reference().WithDefaults()); err != nil {
		log.Fatalf("%v", err)
	}
}

// columnStats is the per-column summary shown in the report.
type columnStats struct {
	Original  string
	Canonical string
	Distinct  int
	Missing   int
	Axis      string // axis fed by this column, if any
}

func analyze(ds *records.Dataset, m star.Model) ([]columnStats, error) {
	// Suffix policy: inspection should describe a colliding source rather
	// than refuse to look at it.
	mapping, err := sanitize.Sanitize(ds.Columns, sanitize.CollisionSuffix)
	if err != nil {
		return nil, err
	}

	axisFor := make(map[string]string)
	for _, a := range m.Axes {
		for _, c := range a.SourceColumns {
			// First candidate present wins, matching the dimension builder.
			for _, canon := range mapping.Names {
				if canon == c {
					if _, taken := axisFor[c]; !taken {
						axisFor[c] = a.Name
					}
					break
				}
			}
			if _, ok := axisFor[c]; ok {
				break
			}
		}
	}

	stats := make([]columnStats, len(ds.Columns))
	for i, label := range ds.Columns {
		canon := mapping.Names[i]
		distinct := make(map[string]bool)
		missing := 0
		for _, row := range ds.Rows {
			v := row[i]
			if v.IsEmpty() {
				missing++
				continue
			}
			distinct[v.Text] = true
		}
		stats[i] = columnStats{
			Original:  label,
			Canonical: canon,
			Distinct:  len(distinct),
			Missing:   missing,
			Axis:      axisFor[canon],
		}
	}
	return stats, nil
}

func report(w io.Writer, ds *records.Dataset, m star.Model) error {
	stats, err := analyze(ds, m)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "rows=%d columns=%d\n\n", len(ds.Rows), len(ds.Columns))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"original", "canonical", "distinct", "missing", "axis"})
	for _, s := range stats {
		t.AppendRow(table.Row{s.Original, s.Canonical, s.Distinct, s.Missing, s.Axis})
	}
	t.Render()

	for _, a := range m.Axes {
		resolved := ""
		for _, c := range a.SourceColumns {
			for _, s := range stats {
				if s.Canonical == c {
					resolved = c
					break
				}
			}
			if resolved != "" {
				break
			}
		}
		if resolved == "" {
			fmt.Fprintf(w, "axis %s: NO SOURCE COLUMN (tried %v)\n", a.Name, a.SourceColumns)
		} else {
			fmt.Fprintf(w, "axis %s: %s -> %s\n", a.Name, resolved, a.DimensionTable)
		}
	}
	return nil
}
