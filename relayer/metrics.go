package relayer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProcessedTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "relayer",
		Name:      "processed_total",
		Help:      "Count of destination submissions attempted by the relayer.",
	}, []string{"destination_chain"})
	SucceededTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "relayer",
		Name:      "succeeded_total",
		Help:      "Count of transactions completed on the destination chain.",
	}, []string{"destination_chain"})
	FailedTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "relayer",
		Name:      "failed_total",
		Help:      "Count of transactions failed by the relayer, per reason.",
	}, []string{"destination_chain", "reason"})
)
