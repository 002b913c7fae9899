package middleware

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus instruments a handler with request counters, durations and
// sizes named camfs_<label>_*. The collectors are registered with reg.
func Prometheus(label string, reg prometheus.Registerer) func(http.Handler) http.Handler {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: `camfs_` + label + `_requests_total`,
		Help: `A counter of total requests`,
	}, []string{`code`, `method`})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    `camfs_` + label + `_duration_seconds`,
		Help:    `A histogram of request duration`,
		Buckets: []float64{.01, .05, .25, 1, 5, 30},
	}, []string{`code`, `method`})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: `camfs_` + label + `_in_flight`,
		Help: `A gauge of requests currently in flight`,
	})
	requestSize := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    `camfs_` + label + `_request_size_bytes`,
		Help:    `A histogram of request size`,
		Buckets: []float64{200, 500, 900, 1500},
	}, []string{})
	responseSize := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    `camfs_` + label + `_response_size_bytes`,
		Help:    `A histogram of response size`,
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	}, []string{})
	reg.MustRegister(counter, duration, inFlight, requestSize, responseSize)

	return func(next http.Handler) http.Handler {
		return promhttp.InstrumentHandlerInFlight(inFlight,
			promhttp.InstrumentHandlerDuration(duration,
				promhttp.InstrumentHandlerCounter(counter,
					promhttp.InstrumentHandlerResponseSize(responseSize,
						promhttp.InstrumentHandlerRequestSize(requestSize, next),
					))))
	}
}
