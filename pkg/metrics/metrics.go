package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the run's Prometheus instruments. One collector lives per
// scan and registers against its own registry, so concurrent runs in one
// process do not collide.
type Collector struct {
	registry *prometheus.Registry

	DomainsDiscovered *prometheus.CounterVec
	IterationsTotal   prometheus.Counter
	ErrorsTotal       prometheus.Counter
	QueueDepth        *prometheus.GaugeVec
	BatchSize         prometheus.Gauge
	ConcurrencyLimit  prometheus.Gauge
}

// NewCollector creates and registers the instruments.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		DomainsDiscovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostscope_domains_discovered_total",
			Help: "Domains inserted into the pool, labeled by domain type.",
		}, []string{"type"}),
		IterationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hostscope_iterations_total",
			Help: "Completed pipeline iterations.",
		}),
		ErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hostscope_errors_total",
			Help: "Discovery and crawl task failures.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hostscope_queue_depth",
			Help: "Current phase queue depth.",
		}, []string{"queue"}),
		BatchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hostscope_batch_size",
			Help: "Current adaptive batch size.",
		}),
		ConcurrencyLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hostscope_concurrency_limit",
			Help: "Current adaptive concurrency limit.",
		}),
	}

	registry.MustRegister(
		c.DomainsDiscovered,
		c.IterationsTotal,
		c.ErrorsTotal,
		c.QueueDepth,
		c.BatchSize,
		c.ConcurrencyLimit,
	)
	return c
}

// Handler returns the /metrics handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve starts a web server exposing /metrics on addr. It blocks.
func (c *Collector) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return http.ListenAndServe(addr, mux)
}
