package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.FileFinished("archived")
	m.FileFinished("archived")
	m.FileFinished("quarantined")
	m.RowsWritten("RawValue", 21)
	m.RowsWritten("RawValue", 0)
	m.Compensation("ProcessedValue", true)
	m.Compensation("ProcessedValue", false)
	m.Clamped(3)

	if got := testutil.ToFloat64(m.files.WithLabelValues("archived")); got != 2 {
		t.Fatalf("archived = %v", got)
	}
	if got := testutil.ToFloat64(m.rows.WithLabelValues("RawValue")); got != 21 {
		t.Fatalf("raw rows = %v", got)
	}
	if got := testutil.ToFloat64(m.compensations.WithLabelValues("ProcessedValue", "failed")); got != 1 {
		t.Fatalf("failed compensations = %v", got)
	}
	if got := testutil.ToFloat64(m.clamped); got != 3 {
		t.Fatalf("clamped = %v", got)
	}
}

func TestNilMetricsIgnoresUpdates(t *testing.T) {
	var m *Metrics
	m.FileFinished("archived")
	m.RowsWritten("RawValue", 1)
	m.Compensation("RawValue", true)
	m.Clamped(1)
	m.BatchFinished(time.Now())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.FileFinished("archived")
	m.BatchFinished(time.Unix(1700000000, 0))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	if !strings.Contains(text, `hydroingest_files_total{outcome="archived"} 1`) {
		t.Fatalf("missing files counter in:\n%s", text)
	}
	if !strings.Contains(text, "hydroingest_last_batch_timestamp_seconds 1.7e+09") {
		t.Fatalf("missing batch gauge in:\n%s", text)
	}
}
