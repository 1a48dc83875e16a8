// Package metrics exposes thinkgraph's Prometheus metrics on a private
// registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrypster/thinkgraph/pkg/types"
)

// Namespace prefixes every metric name.
const Namespace = "thinkgraph"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collector holds all Prometheus metrics for the application. It implements
// memory.Observer and llm.BreakerObserver.
type Collector struct {
	registry *prometheus.Registry

	// Dispatch metrics
	RPCRequests *prometheus.CounterVec
	RPCDuration *prometheus.HistogramVec
	ToolCalls   *prometheus.CounterVec

	// Store metrics
	MemoryNodes         *prometheus.GaugeVec
	MemorySessions      *prometheus.GaugeVec
	MemoryConnections   *prometheus.GaugeVec
	PersistenceFailures prometheus.Counter

	// Provider metrics
	ProviderCircuit  *prometheus.GaugeVec
	ProviderFailures *prometheus.CounterVec
}

// circuitValues maps breaker states to the provider_circuit_state gauge.
var circuitValues = map[string]float64{
	"closed":    0,
	"half-open": 1,
	"open":      2,
}

// NewCollector creates a collector with its own registry, so several can
// coexist in one process (tests, multiple servers).
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		RPCRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "rpc_requests_total",
				Help:      "Total number of JSON-RPC requests dispatched",
			},
			[]string{"method", "outcome"},
		),
		RPCDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "rpc_request_duration_seconds",
				Help:      "JSON-RPC dispatch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		MemoryNodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "memory_nodes",
				Help:      "Nodes in the current library",
			},
			[]string{"library"},
		),
		MemorySessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "memory_sessions",
				Help:      "Sessions in the current library",
			},
			[]string{"library"},
		),
		MemoryConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "memory_connections",
				Help:      "Undirected node links in the current library",
			},
			[]string{"library"},
		),
		PersistenceFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "persistence_failures_total",
				Help:      "Library snapshots that could not be read, encoded or written",
			},
		),
		ProviderCircuit: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "provider_circuit_state",
				Help:      "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
			},
			[]string{"provider"},
		),
		ProviderFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "provider_failures_total",
				Help:      "Upstream failures of text generation providers",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		c.RPCRequests,
		c.RPCDuration,
		c.ToolCalls,
		c.MemoryNodes,
		c.MemorySessions,
		c.MemoryConnections,
		c.PersistenceFailures,
		c.ProviderCircuit,
		c.ProviderFailures,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveRPC records one dispatched request.
func (c *Collector) ObserveRPC(method string, failed bool, elapsed time.Duration) {
	c.RPCRequests.WithLabelValues(method, outcome(failed)).Inc()
	c.RPCDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveTool records one tool call.
func (c *Collector) ObserveTool(tool string, failed bool) {
	c.ToolCalls.WithLabelValues(tool, outcome(failed)).Inc()
}

// ObserveLibrary sets the size gauges for library. Only the current library
// is reported, so gauges for other libraries are cleared.
func (c *Collector) ObserveLibrary(library string, stats types.Stats) {
	c.MemoryNodes.Reset()
	c.MemorySessions.Reset()
	c.MemoryConnections.Reset()
	c.MemoryNodes.WithLabelValues(library).Set(float64(stats.Nodes))
	c.MemorySessions.WithLabelValues(library).Set(float64(stats.Sessions))
	c.MemoryConnections.WithLabelValues(library).Set(float64(stats.Connections))
}

// PersistenceFailed counts one failed snapshot.
func (c *Collector) PersistenceFailed() {
	c.PersistenceFailures.Inc()
}

// ProviderCircuitChanged sets the circuit gauge of provider. Unknown states
// are ignored.
func (c *Collector) ProviderCircuitChanged(provider, state string) {
	if v, ok := circuitValues[state]; ok {
		c.ProviderCircuit.WithLabelValues(provider).Set(v)
	}
}

// ProviderFailed counts one upstream failure of provider.
func (c *Collector) ProviderFailed(provider string) {
	c.ProviderFailures.WithLabelValues(provider).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func outcome(failed bool) string {
	if failed {
		return OutcomeError
	}
	return OutcomeOK
}
