// Package metrics exposes the relay's packet-level counters and queue
// depth as Prometheus metrics, wired the same optional-side-listener way
// kcptun exposes pprof behind a flag (see cmd/linksim's -metrics flag).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge the relay updates while running.
// A nil *Metrics is never constructed by callers that don't enable
// -metrics; relay code guards every use with a nil check instead.
type Metrics struct {
	PacketsSent      *prometheus.CounterVec
	PacketsDropped   *prometheus.CounterVec
	PacketsTruncated *prometheus.CounterVec
	PacketsCorrupted *prometheus.CounterVec
	PacketsDeferred  *prometheus.CounterVec
	AlienDropped     prometheus.Counter
	MalformedDropped prometheus.Counter
	QueueDepth       prometheus.Gauge
}

// New registers and returns a fresh metric set against its own registry,
// so repeated test construction never collides with a package-level
// default registry.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linksim_packets_sent_total",
			Help: "Datagrams successfully relayed, by direction.",
		}, []string{"direction"}),
		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linksim_packets_dropped_total",
			Help: "Datagrams dropped by the loss stage of the impairment pipeline, by direction.",
		}, []string{"direction"}),
		PacketsTruncated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linksim_packets_truncated_total",
			Help: "Datagrams truncated by the impairment pipeline, by direction.",
		}, []string{"direction"}),
		PacketsCorrupted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linksim_packets_corrupted_total",
			Help: "Datagrams bit-corrupted by the impairment pipeline, by direction.",
		}, []string{"direction"}),
		PacketsDeferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linksim_packets_deferred_total",
			Help: "Datagrams scheduled onto the delayed-delivery queue, by direction.",
		}, []string{"direction"}),
		AlienDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linksim_alien_packets_dropped_total",
			Help: "Datagrams dropped because their source matched neither the learned client nor the destination.",
		}),
		MalformedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linksim_malformed_packets_dropped_total",
			Help: "Datagrams dropped for being shorter than the minimum protocol packet length.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linksim_deferred_queue_depth",
			Help: "Current number of packets waiting in the delayed-delivery queue.",
		}),
	}
	reg.MustRegister(
		m.PacketsSent, m.PacketsDropped, m.PacketsTruncated, m.PacketsCorrupted,
		m.PacketsDeferred, m.AlienDropped, m.MalformedDropped, m.QueueDepth,
	)
	return m, reg
}

// Serve starts a blocking HTTP server exposing reg on /metrics. Intended
// to be run in its own goroutine, the same way kcptun backgrounds its
// pprof listener.
func Serve(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
