package ethclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "rpc",
		Name:      "request_results_total",
		Help:      "Results of ledger RPC requests, labeled by chain, method and outcome.",
	}, []string{"chain_id", "query", "status"})

	RequestDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bridge",
		Subsystem: "rpc",
		Name:      "request_duration_seconds",
		Help:      "Duration of ledger RPC requests.",
		Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 20},
	}, []string{"chain_id", "query"})
)

// ObserveError is shared with the non-EVM ledger adapters so every chain reports the same series.
func ObserveError(chainID, query string, err error) {
	if err != nil {
		var rpcErr rpc.Error
		if errors.Is(err, context.DeadlineExceeded) {
			RequestResults.WithLabelValues(chainID, query, "timeout").Inc()
		} else if errors.As(err, &rpcErr) {
			RequestResults.WithLabelValues(chainID, query, fmt.Sprintf("error-%d", rpcErr.ErrorCode())).Inc()
		} else {
			RequestResults.WithLabelValues(chainID, query, "error").Inc()
		}
	} else {
		RequestResults.WithLabelValues(chainID, query, "ok").Inc()
	}
}

func ObserveDuration(chainID, query string) func() time.Duration {
	return prometheus.NewTimer(RequestDurations.WithLabelValues(chainID, query)).ObserveDuration
}
