package client

import (
	"time"

	"github.com/org/stockdesk/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockdesk_client_requests_total",
		Help: "Backend calls by resource and envelope outcome.",
	}, []string{"resource", "outcome"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockdesk_client_request_duration_seconds",
		Help:    "Backend call duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource"})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration)
}

func observe(resource string, success bool, kind models.ErrorKind, dur time.Duration) {
	outcome := "success"
	if !success {
		outcome = string(kind)
	}
	requestsTotal.WithLabelValues(resource, outcome).Inc()
	requestDuration.WithLabelValues(resource).Observe(dur.Seconds())
}
