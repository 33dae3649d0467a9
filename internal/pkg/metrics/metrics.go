package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seaport_settlements_total",
		Help: "The total number of settlement calls processed",
	}, []string{"flow", "status"})

	ExecutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seaport_executions_total",
		Help: "Total item transfers executed across all settlements",
	})

	OrdersSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seaport_orders_skipped_total",
		Help: "Orders skipped as unavailable in fulfill-available flows",
	}, []string{"reason"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seaport_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
