// Package metrics exposes Prometheus collectors for the social core and the
// HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "socialfeed"

// Metrics owns a registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	friendToggles    *prometheus.CounterVec
	likeToggles      *prometheus.CounterVec
	signRequests     prometheus.Counter
	signFailures     prometheus.Counter
	partialMutations prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers every collector on a fresh registry. Process and Go runtime
// collectors are included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	m := &Metrics{
		registry: reg,
		friendToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "friend_toggles_total",
			Help:      "Friend toggles by resulting action.",
		}, []string{"action"}),
		likeToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "like_toggles_total",
			Help:      "Like toggles by resulting action.",
		}, []string{"action"}),
		signRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_sign_requests_total",
			Help:      "Signed URL requests issued to the object store.",
		}),
		signFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_sign_failures_total",
			Help:      "Signed URL requests that failed and left a field undecorated.",
		}),
		partialMutations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "friend_partial_mutations_total",
			Help:      "Friend toggles that persisted only one side.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		m.friendToggles,
		m.likeToggles,
		m.signRequests,
		m.signFailures,
		m.partialMutations,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func action(on bool, yes, no string) string {
	if on {
		return yes
	}
	return no
}

// FriendToggled records a friend toggle.
func (m *Metrics) FriendToggled(added bool) {
	m.friendToggles.WithLabelValues(action(added, "added", "removed")).Inc()
}

// LikeToggled records a like toggle.
func (m *Metrics) LikeToggled(liked bool) {
	m.likeToggles.WithLabelValues(action(liked, "liked", "unliked")).Inc()
}

// MediaSigned records one decoration batch.
func (m *Metrics) MediaSigned(requested, failed int) {
	m.signRequests.Add(float64(requested))
	m.signFailures.Add(float64(failed))
}

// PartialMutation records a friend toggle that broke symmetry.
func (m *Metrics) PartialMutation() {
	m.partialMutations.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware observes request counts and latency. The route label is the chi
// route pattern so ids do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
