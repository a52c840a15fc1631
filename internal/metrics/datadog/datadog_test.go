package datadog

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"complaintsetl/internal/metrics"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
}

func (f *fakeSubmitter) SubmitMetrics(_ context.Context, body datadogV2.MetricPayload, _ ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, nil
}

func (f *fakeSubmitter) series() []datadogV2.MetricSeries {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []datadogV2.MetricSeries
	for _, p := range f.payloads {
		out = append(out, p.Series...)
	}
	return out
}

func newTestBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:    "complaints",
		FlushEvery: time.Hour, // tests flush explicitly
		now:        func() time.Time { return time.Unix(1700000000, 0) },
		submitter:  sub,
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

func TestFlush_SubmitsCountersAndPercentiles(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter("etl_step_total", 1, metrics.Labels{"step": "fact", "status": "ok"})
	b.IncCounter("etl_step_total", 1, metrics.Labels{"step": "fact", "status": "ok"})
	b.IncCounter("etl_records_total", 3, metrics.Labels{"kind": "staging"})
	b.ObserveHistogram("etl_step_duration_seconds", 0.25, metrics.Labels{"step": "fact", "status": "ok"})
	b.ObserveHistogram("etl_step_duration_seconds", 0.75, metrics.Labels{"step": "fact", "status": "ok"})

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	byMetric := map[string]datadogV2.MetricSeries{}
	for _, s := range sub.series() {
		byMetric[s.Metric] = s
	}

	step, ok := byMetric["etl.step.total"]
	if !ok {
		t.Fatal("etl.step.total not submitted")
	}
	if got := *step.Points[0].Value; got != 2 {
		t.Fatalf("etl.step.total = %v, want 2", got)
	}
	if !hasTag(step.Tags, "step:fact") || !hasTag(step.Tags, "status:ok") || !hasTag(step.Tags, "job:complaints") {
		t.Fatalf("step tags = %v", step.Tags)
	}

	recs, ok := byMetric["etl.records.total"]
	if !ok {
		t.Fatal("etl.records.total not submitted")
	}
	if got := *recs.Points[0].Value; got != 3 {
		t.Fatalf("etl.records.total = %v, want 3", got)
	}

	if _, ok := byMetric["etl.step.duration_seconds.p50"]; !ok {
		t.Fatal("duration p50 not submitted")
	}
	if max := *byMetric["etl.step.duration_seconds.max"].Points[0].Value; max != 0.75 {
		t.Fatalf("duration max = %v, want 0.75", max)
	}
	if n := *byMetric["etl.step.duration_seconds.samples"].Points[0].Value; n != 2 {
		t.Fatalf("duration samples = %v, want 2", n)
	}
}

func TestFlush_EmptyIsNoop(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(sub.payloads) != 0 {
		t.Fatalf("expected no submission, got %d payloads", len(sub.payloads))
	}
}

func TestFlush_ResetsBuffers(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter("etl_records_total", 5, metrics.Labels{"kind": "fact"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Second flush had nothing buffered.
	if len(sub.payloads) != 1 {
		t.Fatalf("payloads = %d, want 1", len(sub.payloads))
	}
}

func TestIgnoredEmissions(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter("etl_records_total", 1, metrics.Labels{}) // no kind
	b.IncCounter("unknown_metric", 1, nil)
	b.IncCounter("etl_step_total", -1, metrics.Labels{"step": "x", "status": "ok"})
	b.ObserveHistogram("etl_step_duration_seconds", -0.1, metrics.Labels{"step": "x"})
	b.ObserveHistogram("unknown_hist", 1, nil)

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(sub.payloads) != 0 {
		t.Fatalf("expected everything ignored, got %d payloads", len(sub.payloads))
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	got := ParseTagsCSV(" env:prod, service:etl ,,run:abc ")
	want := []string{"env:prod", "service:etl", "run:abc"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
