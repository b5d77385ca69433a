package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pos"

// Metrics groups the service collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	Requests    *prometheus.CounterVec
	LatencyMS   *prometheus.HistogramVec
	Settlements *prometheus.CounterVec
	CartCache   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_total",
		Help:      "Payment settlement attempts by outcome.",
	}, []string{"outcome"})
	cartCache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_cache_lookups_total",
		Help:      "Cart cache lookups by result.",
	}, []string{"result"})

	reg.MustRegister(requests, latency, settlements, cartCache)
	return &Metrics{
		Requests:    requests,
		LatencyMS:   latency,
		Settlements: settlements,
		CartCache:   cartCache,
	}
}

func (m *Metrics) ObserveRequest(route string, method string, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, method, status).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) ObserveSettlement(outcome string) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCartCache(result string) {
	if m == nil {
		return
	}
	m.CartCache.WithLabelValues(result).Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
