// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts processed scans by outcome (time_in, time_out,
	// not_registered).
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dormwatch_scans_total",
		Help: "Scans processed, labelled by outcome.",
	}, []string{"outcome"})

	// ViolationsTotal counts curfew violations recorded.
	ViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dormwatch_curfew_violations_total",
		Help: "Curfew violations recorded.",
	})

	// FeedSubscribers tracks live dashboard connections.
	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dormwatch_feed_subscribers",
		Help: "Live dashboard subscribers currently connected.",
	})
)
