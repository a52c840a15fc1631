package main

import (
	"bytes"
	"strings"
	"testing"

	"complaintsetl/internal/star"
	"complaintsetl/pkg/records"
)

func sample() *records.Dataset {
	v := records.String
	return &records.Dataset{
		Columns: []string{"Complaint ID", "Product", "Submitted via"},
		Rows: [][]records.Value{
			{v("1"), v("Loan"), v("Web")},
			{v("2"), v("Loan"), records.Missing()},
			{v("3"), v("Mortgage"), v("Phone")},
		},
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	stats, err := analyze(sample(), star.Reference().WithDefaults())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if stats[1].Canonical != "product" || stats[1].Axis != "product" {
		t.Fatalf("product stats = %+v", stats[1])
	}
	if stats[1].Distinct != 2 {
		t.Fatalf("product distinct = %d, want 2", stats[1].Distinct)
	}
	if stats[2].Missing != 1 {
		t.Fatalf("channel missing = %d, want 1", stats[2].Missing)
	}
	if stats[2].Axis != "channel" {
		t.Fatalf("channel axis = %q", stats[2].Axis)
	}
	if stats[0].Axis != "" {
		t.Fatalf("id column must not map to an axis: %+v", stats[0])
	}
}

func TestReport_Renders(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := report(&buf, sample(), star.Reference().WithDefaults()); err != nil {
		t.Fatalf("report: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"rows=3 columns=3",
		"submitted_via",
		"axis product: product -> dim_product",
		"axis channel: submitted_via -> dim_channel",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestReport_MissingAxisColumn(t *testing.T) {
	t.Parallel()

	ds := &records.Dataset{Columns: []string{"Issue"}, Rows: nil}
	var buf bytes.Buffer
	if err := report(&buf, ds, star.Reference().WithDefaults()); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(buf.String(), "axis product: NO SOURCE COLUMN") {
		t.Fatalf("expected missing-axis notice:\n%s", buf.String())
	}
}
