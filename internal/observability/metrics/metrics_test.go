package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestCatalogMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCatalogMetrics(reg)
	m.ObserveRequest("list_doctors", "ok", 0.2)
	m.ObserveRequest("list_doctors", "ok", 0.4)
	m.ObserveRequest("list_doctors", "timeout", 30)

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("list_doctors", "ok")); got != 2 {
		t.Fatalf("expected 2 ok requests, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var hist *dto.Histogram
	for _, fam := range families {
		if fam.GetName() == "agenda_catalog_request_duration_seconds" {
			hist = fam.GetMetric()[0].GetHistogram()
		}
	}
	if hist == nil {
		t.Fatal("duration histogram not registered")
	}
	if hist.GetSampleCount() != 3 {
		t.Fatalf("expected 3 samples, got %d", hist.GetSampleCount())
	}
}

func TestFloorCacheMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFloorCacheMetrics(reg)
	m.ObserveLookup("hit")
	m.ObserveLookup("miss")
	m.ObserveLookup("hit")
	if got := testutil.ToFloat64(m.lookups.WithLabelValues("hit")); got != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var c *CatalogMetrics
	c.ObserveRequest("op", "ok", 0.1)
	var f *FloorCacheMetrics
	f.ObserveLookup("hit")
}
