package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSplit(t *testing.T) {
	before := testutil.ToFloat64(splitsTotal.WithLabelValues("success"))
	restartsBefore := testutil.ToFloat64(windowRestarts)
	reductionsBefore := testutil.ToFloat64(toleranceReductions)

	ObserveSplit("success", 120*time.Millisecond, 2, 0)
	ObserveSplit("success", 80*time.Millisecond, 0, 3)

	if got := testutil.ToFloat64(splitsTotal.WithLabelValues("success")) - before; got != 2 {
		t.Errorf("splits_total delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(windowRestarts) - restartsBefore; got != 2 {
		t.Errorf("restarts delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(toleranceReductions) - reductionsBefore; got != 3 {
		t.Errorf("reductions delta = %v, want 3", got)
	}
}

func TestQueueDepthAndInit(t *testing.T) {
	Init()
	Init()
	SetQueueDepth("stream", 7)
	if got := testutil.ToFloat64(queueDepth.WithLabelValues("stream")); got != 7 {
		t.Errorf("queue depth = %v, want 7", got)
	}
}
