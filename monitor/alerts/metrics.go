package alerts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertStuckTransaction = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "alert",
		Subsystem: "bridge",
		Name:      "stuck_transaction",
		Help:      "Shows bridge transactions that did not change status for longer than the stuck threshold. The value is the age in seconds.",
	}, []string{"tx_id", "status", "source_chain", "destination_chain", "retry_count"})
	AlertUnrefundedFailure = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "alert",
		Subsystem: "bridge",
		Name:      "unrefunded_failure",
		Help:      "Shows failed inbound transactions holding locked funds that were not refunded yet.",
	}, []string{"tx_id", "source_chain", "source_address", "amount"})
	AlertSilentValidator = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "alert",
		Subsystem: "bridge",
		Name:      "silent_validator",
		Help:      "Shows active validators without a heartbeat inside the liveness window. The value is seconds since the last heartbeat, -1 if none was ever seen.",
	}, []string{"validator"})
)
