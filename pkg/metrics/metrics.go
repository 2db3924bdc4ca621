// Package metrics exposes Prometheus collectors for matchmaking and sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stakepong"

var (
	// QueueDepth number of players waiting per stake tier
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "matchmaking",
		Name:      "queue_depth",
		Help:      "Players waiting in each stake tier queue.",
	}, []string{"stake"})

	PendingMatches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "matchmaking",
		Name:      "pending_matches",
		Help:      "Matches awaiting stake confirmation.",
	})

	MatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "matchmaking",
		Name:      "matches_created_total",
		Help:      "Pending matches formed by pairing.",
	})

	MatchesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "matchmaking",
		Name:      "matches_expired_total",
		Help:      "Pending matches expired before both stakes were confirmed.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "active",
		Help:      "Sessions currently held by the registry.",
	})

	SessionsFinished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "finished_total",
		Help:      "Sessions that reached the finished state.",
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "tick_duration_seconds",
		Help:      "Time spent computing one simulation tick.",
		Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
	})

	// SettlementFailures failed outbound settlement calls by operation
	SettlementFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "failures_total",
		Help:      "Settlement gateway calls that failed.",
	}, []string{"operation"})
)
