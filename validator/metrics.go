package validator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignedTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "validator",
		Name:      "signed_total",
		Help:      "Count of transactions signed by the validator.",
	}, []string{"validator"})
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "validator",
		Name:      "validation_failures_total",
		Help:      "Count of failed validation checks, per check.",
	}, []string{"validator", "check"})
	LastHeartbeat = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "validator",
		Name:      "last_heartbeat_timestamp",
		Help:      "Unix time of the latest heartbeat accepted by the registry.",
	}, []string{"validator"})
	LiveValidators = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "registry",
		Name:      "live_validators",
		Help:      "Number of validators with a heartbeat inside the liveness window.",
	})
)
