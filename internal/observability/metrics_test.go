package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/signalsfoundry/routeguard/model"
)

func TestObserveRouteCalculation(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRoutingCollector(reg)
	if err != nil {
		t.Fatalf("NewRoutingCollector: %v", err)
	}

	collector.ObserveRouteCalculation(model.RouteStatusComplete, 25*time.Millisecond, 340, 81.5)
	collector.ObserveRouteCalculation(model.RouteStatusNoPath, 5*time.Millisecond, 120, 0)

	if got := testutil.ToFloat64(collector.RouteCalculations.WithLabelValues("complete")); got != 1 {
		t.Fatalf("route_calculations_total{status=complete} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.RouteCalculations.WithLabelValues("no_path")); got != 1 {
		t.Fatalf("route_calculations_total{status=no_path} = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "route_calculation_duration_seconds", map[string]string{"status": "complete"}); count != 1 {
		t.Fatalf("route_calculation_duration_seconds sample_count = %d, want 1", count)
	}
	if count := histogramSampleCount(t, reg, "router_nodes_expanded", nil); count != 2 {
		t.Fatalf("router_nodes_expanded sample_count = %d, want 2", count)
	}
	// safety scores only recorded for completed routes
	if count := histogramSampleCount(t, reg, "route_safety_score", nil); count != 1 {
		t.Fatalf("route_safety_score sample_count = %d, want 1", count)
	}
}

func TestRecordRerouteCheck(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRoutingCollector(reg)
	if err != nil {
		t.Fatalf("NewRoutingCollector: %v", err)
	}

	collector.RecordRerouteCheck("kept")
	collector.RecordRerouteCheck("kept")
	collector.RecordRerouteCheck("rerouted")

	if got := testutil.ToFloat64(collector.RerouteChecks.WithLabelValues("kept")); got != 2 {
		t.Fatalf("reroute_checks_total{result=kept} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.RerouteChecks.WithLabelValues("rerouted")); got != 1 {
		t.Fatalf("reroute_checks_total{result=rerouted} = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesStoreGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRoutingCollector(reg)
	if err != nil {
		t.Fatalf("NewRoutingCollector: %v", err)
	}
	collector.SetStoreCounts(7, 11)
	collector.ObserveRouteCalculation(model.RouteStatusComplete, time.Millisecond, 10, 90)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"route_calculations_total",
		"route_calculation_duration_seconds",
		"router_nodes_expanded",
		"route_safety_score",
		"reroute_checks_total",
		"store_routes",
		"store_hazards",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
	if !strings.Contains(body, "store_routes 7") || !strings.Contains(body, "store_hazards 11") {
		t.Fatalf("/metrics output missing store gauge values: %s", body)
	}
}

func TestNewRoutingCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRoutingCollector(reg)
	if err != nil {
		t.Fatalf("NewRoutingCollector: %v", err)
	}
	second, err := NewRoutingCollector(reg)
	if err != nil {
		t.Fatalf("NewRoutingCollector on reused registry: %v", err)
	}

	first.RecordRerouteCheck("kept")
	second.RecordRerouteCheck("kept")

	if got := testutil.ToFloat64(first.RerouteChecks.WithLabelValues("kept")); got != 2 {
		t.Fatalf("collectors do not share the registered counter: got %v, want 2", got)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
