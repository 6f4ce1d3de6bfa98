package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/IshaanNene/clearancesync/internal/engine"
	"github.com/IshaanNene/clearancesync/internal/fetcher"
	"github.com/IshaanNene/clearancesync/internal/pipeline"
	"github.com/IshaanNene/clearancesync/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func sampleReport() *engine.RunReport {
	start := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	return &engine.RunReport{
		RunID:      "run-1",
		Target:     "https://www.potterybarn.com/shop/sale/open-box-deals/",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Attempts: []engine.AttemptReport{
			{Attempt: 1, Duration: time.Minute, Error: "navigation error"},
			{Attempt: 2, Duration: 30 * time.Second},
		},
		Scroll:     fetcher.ScrollStats{Scrolls: 12, Count: 96, Converged: true},
		Extraction: engine.ExtractionSummary{Elements: 100, Listings: 96, Incomplete: 3, Duplicates: 1},
		Normalize:  pipeline.NormalizeStats{Input: 96, Output: 95, Dropped: map[string]int{"dedup": 1}},
		Result:     types.SyncResult{Saved: 10, Updated: 85, Total: 95},
	}
}

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics(testLogger)
	if err := m.Record(context.Background(), sampleReport()); err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"runs success", testutil.ToFloat64(m.runsTotal.WithLabelValues("success")), 1},
		{"attempt failures", testutil.ToFloat64(m.attemptsTotal.WithLabelValues("failure")), 1},
		{"attempt successes", testutil.ToFloat64(m.attemptsTotal.WithLabelValues("success")), 1},
		{"saved", testutil.ToFloat64(m.productsSaved), 10},
		{"updated", testutil.ToFloat64(m.productsUpdated), 85},
		{"last products", testutil.ToFloat64(m.lastRunProducts), 95},
		{"duration", testutil.ToFloat64(m.lastRunDuration), 90},
		{"scrolls", testutil.ToFloat64(m.lastRunScrolls), 12},
		{"incomplete", testutil.ToFloat64(m.listingsDropped.WithLabelValues("incomplete")), 3},
		{"dedup", testutil.ToFloat64(m.listingsDropped.WithLabelValues("dedup")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
}

func TestMetricsFailedRun(t *testing.T) {
	m := NewMetrics(testLogger)
	r := sampleReport()
	r.Error = "persistence error"

	if err := m.Record(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("expected 1 failed run, got %v", got)
	}
	if got := testutil.ToFloat64(m.productsSaved); got != 0 {
		t.Errorf("failed runs must not count products, got %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(testLogger)
	_ = m.Record(context.Background(), sampleReport())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`clearancesync_runs_total{status="success"} 1`,
		`clearancesync_products_updated_total 85`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogRecorder(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := l.Record(context.Background(), sampleReport()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"run_id=run-1", "result.saved=10", "scroll.converged=true", "level=INFO"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}
