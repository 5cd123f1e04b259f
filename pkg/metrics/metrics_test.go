package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordEvalUpdatesCounters(t *testing.T) {
	before := testutil.ToFloat64(ScriptEvalsTotal.WithLabelValues("ok"))
	RecordEval("ok", 2*time.Millisecond, 120)
	after := testutil.ToFloat64(ScriptEvalsTotal.WithLabelValues("ok"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestServerStartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	s.Start()
	time.Sleep(10 * time.Millisecond)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
