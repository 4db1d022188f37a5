package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPipelineMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)
	m.StageObserved("analyze", 25*time.Millisecond)
	m.RunCompleted("completed", 120*time.Millisecond)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.RuleFired("location_visit")
	m.SelectionCompleted(2)
	m.SelectionCompleted(0)
	m.OrderTransition("assigned", "accepted")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}

	if got := counterValue(families, "dispatch_pipeline_processed_total", "status", "completed"); got != 1 {
		t.Fatalf("processed_total{status=completed} = %v, want 1", got)
	}
	if got := counterValue(families, "dispatch_pipeline_cache_lookups_total", "result", "hit"); got != 1 {
		t.Fatalf("cache_lookups_total{result=hit} = %v, want 1", got)
	}
	if got := counterValue(families, "dispatch_orders_transitions_total", "from", "assigned"); got != 1 {
		t.Fatalf("transitions_total{from=assigned} = %v, want 1", got)
	}
}

func counterValue(families []*dto.MetricFamily, name, labelName, labelValue string) float64 {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == labelName && label.GetValue() == labelValue {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var m *PipelineMetrics
	m.StageObserved("analyze", time.Millisecond)
	m.RunCompleted("failed", time.Millisecond)
	m.CacheLookup(false)
	m.RuleFired("generic")
	m.SelectionCompleted(1)
	m.OrderTransition("new", "cancelled")
}
