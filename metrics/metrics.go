package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bnolan/preact-kit/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "preact_kit"

// Gauges reports live sizes that the stats counters do not track
type Gauges struct {
	CacheEntries func() int
	InFlight     func() int
	Routes       func() int
}

// Collector exposes stats and request latencies on a private registry
type Collector struct {
	registry *prometheus.Registry
	duration *prometheus.HistogramVec
}

// New registers the metrics for s and g
func New(s *stats.Stats, g Gauges) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string, load func() int64) {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(load()) })
	}
	gauge := func(name, help string, load func() int) {
		if load == nil {
			return
		}
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(load()) })
	}

	counter("requests_total", "HTTP requests served", s.TotalRequests.Load)
	counter("api_requests_total", "Requests to API routes", s.APIRequests.Load)
	counter("page_requests_total", "Requests to rendered pages", s.PageRequests.Load)
	counter("cache_hits_total", "Render data requests answered from the cache", s.CacheHits.Load)
	counter("cache_misses_total", "Render data requests that invoked a handler", s.CacheMisses.Load)
	counter("suspensions_total", "Render data requests answered with a pending call", s.Suspensions.Load)
	counter("deduped_requests_total", "Render data requests that joined a call in flight", s.DedupedRequests.Load)
	counter("handler_invocations_total", "In-process handler invocations", s.HandlerInvocations.Load)
	counter("handler_failures_total", "Failed in-process handler invocations", s.HandlerFailures.Load)
	counter("render_passes_total", "Page render passes", s.RenderPasses.Load)
	counter("render_failures_total", "Page renders that failed", s.RenderFailures.Load)
	counter("rate_limited_total", "Requests rejected by the rate limiter", s.RateLimitExceeded.Load)

	gauge("cache_entries", "Entries in the response cache", g.CacheEntries)
	gauge("inflight_calls", "Handler invocations in flight", g.InFlight)
	gauge("api_routes", "Registered API routes", g.Routes)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the stats were first started",
	}, func() float64 { return s.Uptime().Seconds() })

	return &Collector{
		registry: reg,
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by endpoint kind",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"kind", "code"}),
	}
}

// Observe records one request's latency
func (c *Collector) Observe(kind string, code int, d time.Duration) {
	c.duration.WithLabelValues(kind, strconv.Itoa(code)).Observe(d.Seconds())
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
