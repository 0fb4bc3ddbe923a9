package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "maintenance_tracker"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	fetchDuration     *prom.HistogramVec
	fetchResults      *prom.CounterVec
	creates           *prom.CounterVec
	transportDuration *prom.HistogramVec
	notifications     *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		fetchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "store_fetch_duration_seconds",
			Help:      "Duration of store fetches from issue to resolution",
			Buckets:   prom.DefBuckets,
		}, []string{"store", "outcome"}),
		fetchResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "store_fetch_results_total",
			Help:      "Store fetch results by outcome (success, failure, stale)",
		}, []string{"store", "outcome"}),
		creates: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "request_creates_total",
			Help:      "Create calls by result",
		}, []string{"result"}),
		transportDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "transport_request_duration_seconds",
			Help:      "Duration of HTTP calls to the backend",
			Buckets:   prom.DefBuckets,
		}, []string{"method", "route", "status"}),
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "change_notifications_total",
			Help:      "Change notifications published or received, by kind",
		}, []string{"kind"}),
	}

	reg.MustRegister(pr.fetchDuration, pr.fetchResults, pr.creates, pr.transportDuration, pr.notifications)
	return pr
}

func (p *PrometheusRecorder) ObserveFetch(store string, outcome Outcome, d time.Duration) {
	if p == nil {
		return
	}
	p.fetchDuration.WithLabelValues(store, string(outcome)).Observe(d.Seconds())
	p.fetchResults.WithLabelValues(store, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncCreate(success bool) {
	if p == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	p.creates.WithLabelValues(result).Inc()
}

// ObserveTransport records one HTTP call. status 0 means the call never got a response.
func (p *PrometheusRecorder) ObserveTransport(method, route string, status int, d time.Duration) {
	if p == nil {
		return
	}
	p.transportDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncNotification(kind string) {
	if p == nil {
		return
	}
	p.notifications.WithLabelValues(kind).Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
