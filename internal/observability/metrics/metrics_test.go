package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder()
	recorder.TurnClosed()
	recorder.TurnClosed()
	recorder.SetOpenBuckets(3)

	if got := testutil.ToFloat64(recorder.turnsClosed); got != 2 {
		t.Fatalf("expected 2 closed turns, got %v", got)
	}
	if got := testutil.ToFloat64(recorder.openBuckets); got != 3 {
		t.Fatalf("expected 3 open buckets, got %v", got)
	}
}

func TestDwellHistogramPerStage(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder()
	recorder.ObserveDwell("stt", 5)
	recorder.ObserveDwell("stt", 15)
	recorder.ObserveDwell("llm", 8)

	families, err := recorder.Registry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "pipeline_stage_dwell_ms" {
			continue
		}
		if len(family.GetMetric()) != 2 {
			t.Fatalf("expected 2 stage label sets, got %d", len(family.GetMetric()))
		}
		return
	}
	t.Fatalf("pipeline_stage_dwell_ms not gathered")
}
