package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route pattern, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)

	// Plans counts planning runs by result (ok, error).
	Plans = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dronenav_plans_total", Help: "Planning runs by result."},
		[]string{"result"},
	)
	// Flights counts committed drone flights.
	Flights = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dronenav_flights_total", Help: "Committed drone flights."},
	)
	// Orders counts planned orders by outcome (delivered, dropped, evicted).
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dronenav_orders_total", Help: "Orders by planning outcome."},
		[]string{"outcome"},
	)
	// PlanGroupDuration records how long one date group took to plan.
	PlanGroupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "dronenav_plan_group_duration_seconds", Help: "Planning time per date group.", Buckets: prometheus.DefBuckets},
	)
	// PathExpansions records node expansions per A* search by result (found, unreachable, capped).
	PathExpansions = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "dronenav_path_expansions", Help: "Nodes expanded per path search.", Buckets: prometheus.ExponentialBuckets(10, 4, 9)},
		[]string{"result"},
	)
	// PathCache counts leg cache lookups by result (hit, miss).
	PathCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dronenav_path_cache_lookups_total", Help: "Path leg cache lookups."},
		[]string{"result"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		Registry.MustRegister(Plans, Flights, Orders, PlanGroupDuration, PathExpansions, PathCache)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// Handler exposes Registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveGroup records the outcome of one planned date group.
func ObserveGroup(flights, delivered, dropped, evicted int, took time.Duration) {
	Flights.Add(float64(flights))
	Orders.WithLabelValues("delivered").Add(float64(delivered))
	Orders.WithLabelValues("dropped").Add(float64(dropped))
	Orders.WithLabelValues("evicted").Add(float64(evicted))
	PlanGroupDuration.Observe(took.Seconds())
}

// ObservePathSearch records one A* search.
func ObservePathSearch(expanded int, found, capped bool) {
	result := "unreachable"
	switch {
	case found:
		result = "found"
	case capped:
		result = "capped"
	}
	PathExpansions.WithLabelValues(result).Observe(float64(expanded))
}

// ObservePathCache adds a run's leg cache counters.
func ObservePathCache(hits, misses int64) {
	PathCache.WithLabelValues("hit").Add(float64(hits))
	PathCache.WithLabelValues("miss").Add(float64(misses))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack passes websocket upgrades through.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%T does not support hijacking", r.ResponseWriter)
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Instrument counts and times requests. The path label is the matched mux
// pattern so that ids do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		labels := []string{r.Method, path, strconv.Itoa(rec.status)}
		HTTPRequests.WithLabelValues(labels...).Inc()
		HTTPDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}
