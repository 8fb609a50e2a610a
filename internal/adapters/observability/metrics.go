package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ratecascade", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ratecascade", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	CascadeNodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ratecascade", Name: "cascade_nodes_total", Help: "Cascade nodes computed."},
		[]string{"phase", "method"},
	)
	CascadeSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ratecascade", Name: "cascade_skips_total", Help: "Cascade nodes skipped."},
		[]string{"reason"}, // reason: visited|depth|missing
	)
	RedundantDrops = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "ratecascade", Name: "redundant_writes_dropped_total", Help: "No-op rows dropped before persistence."},
	)
	PriceWrites = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "ratecascade", Name: "daily_price_writes_total", Help: "Daily price rows written."},
	)
	PMSPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ratecascade", Name: "pms_push_total", Help: "PMS push task outcomes."},
		[]string{"status"}, // status: queued|pushed|deferred|failed
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ratecascade", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"},
	)
)

// Serve exposes the default /metrics endpoint on its own listener. An
// empty addr disables it.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, CascadeNodes, CascadeSkips,
		RedundantDrops, PriceWrites, PMSPushes, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveCascadeNode(phase, method string) {
	CascadeNodes.WithLabelValues(phase, method).Inc()
}

func ObserveCascadeSkip(reason string) {
	CascadeSkips.WithLabelValues(reason).Inc()
}

func ObserveRedundantDrops(n int) {
	if n > 0 {
		RedundantDrops.Add(float64(n))
	}
}

func ObservePriceWrites(n int) {
	if n > 0 {
		PriceWrites.Add(float64(n))
	}
}

func ObservePMSPush(status string) {
	PMSPushes.WithLabelValues(status).Inc()
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}
