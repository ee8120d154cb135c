package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HealthStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "monitor",
		Name:      "health",
		Help:      "Bridge health: 0 healthy, 1 degraded, 2 critical.",
	})
	FailureRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "monitor",
		Name:      "failure_ratio",
		Help:      "Share of failed transactions created inside the health window.",
	})
	StuckTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "monitor",
		Name:      "stuck_transactions",
		Help:      "Number of non-terminal transactions older than the stuck threshold.",
	})
	ExpiredTransactions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "monitor",
		Name:      "expired_total",
		Help:      "Count of transactions force-failed after their validity window.",
	})
	AutomaticActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "monitor",
		Name:      "automatic_actions_total",
		Help:      "Count of retries and refunds invoked by the monitor, per action and result.",
	}, []string{"action", "result"})
)
