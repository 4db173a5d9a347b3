package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestCommandLifecycleUpdatesCounters(t *testing.T) {
	reg := New(prometheus.NewRegistry(), func() float64 { return 1 })

	reg.CommandStarted(false)
	reg.CommandStarted(true)
	if got := counterValue(t, reg.commandsTotal); got != 2 {
		t.Fatalf("commandsTotal = %v, want 2", got)
	}
	if got := counterValue(t, reg.commandsPrepared); got != 1 {
		t.Fatalf("commandsPrepared = %v, want 1", got)
	}
	if got := reg.PreparedRatio(); got != 0.5 {
		t.Fatalf("PreparedRatio = %v, want 0.5", got)
	}

	reg.CommandFinished(nil)
	reg.CommandFinished(errFailed)
	if got := counterValue(t, reg.commandsFailed); got != 1 {
		t.Fatalf("commandsFailed = %v, want 1", got)
	}
	if got := gaugeValue(t, reg.commandsCurrent); got != 0 {
		t.Fatalf("commandsCurrent = %v, want 0", got)
	}
}

func TestPoolAndMultiplexGauges(t *testing.T) {
	reg := New(prometheus.NewRegistry(), func() float64 { return 3 })

	reg.SetPoolStats(4, 2)
	if got := gaugeValue(t, reg.idleConns); got != 4 {
		t.Fatalf("idleConns = %v, want 4", got)
	}
	if got := gaugeValue(t, reg.busyConns); got != 2 {
		t.Fatalf("busyConns = %v, want 2", got)
	}

	reg.SetMultiplexStats(3.5, 120.0)
	if got := gaugeValue(t, reg.multiplexAvgCommandsPerBatch); got != 3.5 {
		t.Fatalf("multiplexAvgCommandsPerBatch = %v, want 3.5", got)
	}
	if got := gaugeValue(t, reg.multiplexAvgBatchWriteMicros); got != 120.0 {
		t.Fatalf("multiplexAvgBatchWriteMicros = %v, want 120", got)
	}
}

var errFailed = &testError{"failed"}

type testError struct{ s string }

func (e *testError) Error() string { return e.s }
