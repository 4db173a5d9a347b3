// Package metrics implements the driver's event-counter registry as
// Prometheus collectors: bytes written/read, commands per second,
// total/current/failed commands, the prepared-commands ratio,
// connection-pools count, idle/busy connection counts, and the two
// multiplexing batch averages, as one struct of typed Prometheus fields.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every process-wide oggo counter/gauge. Callers normally
// use the package-level Default() instance, created lazily on first use
// as global counter state, and safe for concurrent
// registration/observation.
type Registry struct {
	bytesWritten prometheus.Counter
	bytesRead    prometheus.Counter

	commandsTotal   prometheus.Counter
	commandsFailed  prometheus.Counter
	commandsCurrent prometheus.Gauge
	commandsPrepared prometheus.Counter

	poolsCount prometheus.GaugeFunc
	idleConns  prometheus.Gauge
	busyConns  prometheus.Gauge

	multiplexAvgCommandsPerBatch prometheus.Gauge
	multiplexAvgBatchWriteMicros prometheus.Gauge

	commandsTotalCount    int64
	commandsPreparedCount int64
}

// New builds a Registry and registers every collector with reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the process
// DefaultRegisterer; pass nil in production to register against it.
func New(reg prometheus.Registerer, poolsCount func() float64) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	const ns = "oggo"

	m := &Registry{
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "bytes_written_total",
			Help: "Total bytes written to backend sockets.",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "bytes_read_total",
			Help: "Total bytes read from backend sockets.",
		}),
		commandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "commands_total",
			Help: "Total commands submitted.",
		}),
		commandsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "commands_failed_total",
			Help: "Total commands that completed with an error.",
		}),
		commandsCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "commands_current",
			Help: "Commands currently executing.",
		}),
		commandsPrepared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "commands_prepared_total",
			Help: "Total commands executed through a promoted prepared statement.",
		}),
		idleConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "idle_connections",
			Help: "Idle connectors across all pools.",
		}),
		busyConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "busy_connections",
			Help: "Busy (rented) connectors across all pools.",
		}),
		multiplexAvgCommandsPerBatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "multiplex_avg_commands_per_batch",
			Help: "Average number of commands per multiplexing write batch.",
		}),
		multiplexAvgBatchWriteMicros: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "multiplex_avg_batch_write_microseconds",
			Help: "Average wall-clock time to write and complete one multiplexing batch, in microseconds.",
		}),
	}
	if poolsCount != nil {
		m.poolsCount = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: ns, Name: "connection_pools",
			Help: "Distinct connector pools currently registered.",
		}, poolsCount)
	}

	collectors := []prometheus.Collector{
		m.bytesWritten, m.bytesRead, m.commandsTotal, m.commandsFailed,
		m.commandsCurrent, m.commandsPrepared, m.idleConns, m.busyConns,
		m.multiplexAvgCommandsPerBatch, m.multiplexAvgBatchWriteMicros,
	}
	if m.poolsCount != nil {
		collectors = append(collectors, m.poolsCount)
	}
	reg.MustRegister(collectors...)
	return m
}

// RecordBytes adds written/read byte counts observed on a connector.
func (m *Registry) RecordBytes(written, read int64) {
	if written > 0 {
		m.bytesWritten.Add(float64(written))
	}
	if read > 0 {
		m.bytesRead.Add(float64(read))
	}
}

// CommandStarted marks one command beginning execution.
func (m *Registry) CommandStarted(prepared bool) {
	m.commandsCurrent.Inc()
	atomic.AddInt64(&m.commandsTotalCount, 1)
	m.commandsTotal.Inc()
	if prepared {
		atomic.AddInt64(&m.commandsPreparedCount, 1)
		m.commandsPrepared.Inc()
	}
}

// CommandFinished marks one command ending, incrementing the failure
// counter if err is non-nil.
func (m *Registry) CommandFinished(err error) {
	m.commandsCurrent.Dec()
	if err != nil {
		m.commandsFailed.Inc()
	}
}

// PreparedRatio returns the fraction of total commands that used a
// promoted prepared statement, the basis for the prepared-commands ratio
// counter.
func (m *Registry) PreparedRatio() float64 {
	total := atomic.LoadInt64(&m.commandsTotalCount)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&m.commandsPreparedCount)) / float64(total)
}

// SetPoolStats updates the process-wide idle/busy connector gauges.
func (m *Registry) SetPoolStats(idle, busy int) {
	m.idleConns.Set(float64(idle))
	m.busyConns.Set(float64(busy))
}

// SetMultiplexStats updates the multiplexing batch-average gauges from a
// mux.Scheduler's Metrics() snapshot.
func (m *Registry) SetMultiplexStats(avgCommandsPerBatch, avgBatchWriteMicros float64) {
	m.multiplexAvgCommandsPerBatch.Set(avgCommandsPerBatch)
	m.multiplexAvgBatchWriteMicros.Set(avgBatchWriteMicros)
}

var defaultRegistry atomic.Pointer[Registry]

// Default returns the process-wide Registry, creating one registered
// against prometheus.DefaultRegisterer on first use.
func Default() *Registry {
	if r := defaultRegistry.Load(); r != nil {
		return r
	}
	r := New(nil, nil)
	if !defaultRegistry.CompareAndSwap(nil, r) {
		return defaultRegistry.Load()
	}
	return r
}
