package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics are registered on a private registry so several servers can
// coexist in one process
type metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	predictions *prometheus.CounterVec
	latency     prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishdetect_http_requests_total",
			Help: "Total number of prediction requests by outcome",
		}, []string{"code"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishdetect_predictions_total",
			Help: "Total number of messages classified by label",
		}, []string{"label"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "phishdetect_prediction_duration_seconds",
			Help:    "Time spent classifying one uploaded message",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.predictions,
		m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
