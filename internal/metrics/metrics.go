// Package metrics holds the relay's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EventsTotal counts events seen by the classifier, by kind
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prwatch_events_total",
			Help: "Chat events received, by kind.",
		},
		[]string{"kind"},
	)

	// EventsDropped counts events dropped before handling, by reason
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prwatch_events_dropped_total",
			Help: "Chat events dropped, by reason.",
		},
		[]string{"reason"},
	)

	// RelaysSent counts ping messages posted to subscribers
	RelaysSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prwatch_relays_sent_total",
			Help: "Ping messages posted for watched resources.",
		},
	)

	// ConfirmationsSent counts watch/unwatch confirmations
	ConfirmationsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prwatch_confirmations_sent_total",
			Help: "Watch and unwatch confirmations posted.",
		},
	)

	// SubscriptionOps counts registry mutations, by op
	SubscriptionOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prwatch_subscription_ops_total",
			Help: "Subscription registry mutations, by op.",
		},
		[]string{"op"},
	)

	// BackendErrors counts failed chat backend calls, by op
	BackendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prwatch_backend_errors_total",
			Help: "Failed chat backend calls, by op.",
		},
		[]string{"op"},
	)

	// ConnectFailures counts failed transport connections
	ConnectFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prwatch_connect_failures_total",
			Help: "Failed chat transport connection attempts.",
		},
	)
)

func init() {
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(RelaysSent)
	prometheus.MustRegister(ConfirmationsSent)
	prometheus.MustRegister(SubscriptionOps)
	prometheus.MustRegister(BackendErrors)
	prometheus.MustRegister(ConnectFailures)
}

// RegisterWatchedKeys exposes the number of watched resource keys
func RegisterWatchedKeys(count func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "prwatch_watched_keys",
			Help: "Resource keys with at least one subscriber.",
		},
		func() float64 { return float64(count()) },
	))
}
