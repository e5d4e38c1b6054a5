package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	EscrowEventsObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_escrow_events_observed_total",
		Help: "The total number of escrow creation events observed per chain and side",
	}, []string{"chain", "side"})

	SecretsRevealed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coordinator_secrets_revealed_total",
		Help: "The total number of secrets released by the finality gate",
	})

	RevealLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coordinator_reveal_latency_seconds",
		Help:    "Time from the later escrow observation to secret release",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	IntentsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_intents_expired_total",
		Help: "Intents force-expired by the recovery scheduler, by reason",
	}, []string{"reason"})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_status_transitions_total",
		Help: "Intent status transitions applied through the state machine",
	}, []string{"from", "to"})

	TransitionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coordinator_transition_conflicts_total",
		Help: "Transitions dropped because the precondition status changed concurrently",
	})

	PollFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_poll_failures_total",
		Help: "Chain poll cycles that failed, per chain",
	}, []string{"chain"})

	PollLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coordinator_poll_latency_seconds",
		Help:    "Duration of a chain poll cycle",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"chain"})

	NonTerminalIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coordinator_non_terminal_intents",
		Help: "Number of intents that have not reached a terminal status",
	})

	WatcherReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_watcher_reconnects_total",
		Help: "Reconnection attempts made by chain watchers",
	}, []string{"chain"})

	CorrelationDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_correlation_drops_total",
		Help: "Escrow events dropped because no intent matched the order hash or hashlock",
	}, []string{"chain"})
)
