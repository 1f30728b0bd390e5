package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TimurManjosov/hostmatch/internal/matching"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	matchEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_evaluations_total",
			Help: "Attribute matching evaluations by outcome",
		},
		[]string{"outcome"},
	)
	matchDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "match_duration_seconds",
		Help:    "Attribute matching duration in seconds",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
	matchedMembers = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "match_matched_members",
		Help:    "Members matched per evaluation",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
	ruleConfigErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rule_config_errors_total",
		Help: "Rules that could not be bound to the attribute catalog",
	})
)

func Init() {
	prometheus.MustRegister(httpReqs, httpDur, matchEvaluations, matchDur, matchedMembers, ruleConfigErrors)
}

// MatchObserver records matching.Matcher measurements in the collectors
// registered by Init.
type MatchObserver struct{}

var _ matching.Observer = MatchObserver{}

func (MatchObserver) ObserveMatch(outcome matching.Outcome, members int, d time.Duration) {
	matchEvaluations.WithLabelValues(string(outcome)).Inc()
	matchDur.Observe(d.Seconds())
	matchedMembers.Observe(float64(members))
}

func (MatchObserver) ObserveRuleErrors(n int) {
	ruleConfigErrors.Add(float64(n))
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		// chi fills the pattern in while routing, so read it afterwards
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
