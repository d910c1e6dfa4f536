package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker throughput counters, exported on the shared /metrics endpoint.
var (
	sentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_deliveries_sent_total",
		Help: "Delivery tasks completed with a successful gateway send.",
	})

	retriedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_deliveries_retried_total",
		Help: "Delivery tasks rescheduled after a transient gateway failure.",
	})

	deadLetteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_deliveries_dead_lettered_total",
		Help: "Delivery tasks moved to the dead-letter table.",
	})
)
