package alerts_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/logging"
	"github.com/xbridge/bridge-coordinator/monitor/alerts"
)

func TestConvertToAlertMetricValues(t *testing.T) {
	t.Parallel()

	values, err := alerts.ConvertToAlertMetricValues([]alerts.StuckTransaction{
		{
			ID:               "tx-1",
			Status:           entity.StatusMinting,
			SourceChain:      "xrpl",
			DestinationChain: "ethereum",
			RetryCount:       2,
			Age:              3600,
		},
	})
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.Equal(t, prometheus.Labels{
		"tx_id":             "tx-1",
		"status":            "MINTING",
		"source_chain":      "xrpl",
		"destination_chain": "ethereum",
		"retry_count":       "2",
	}, values[0].Labels())
	require.Equal(t, 3600.0, values[0].Value())

	values, err = alerts.ConvertToAlertMetricValues([]alerts.UnrefundedFailure{
		{ID: "tx-2", SourceChain: "xrpl", SourceAddress: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", Amount: entity.MustParseAmount("12.5"), Age: 60},
	})
	require.NoError(t, err)
	require.Equal(t, "12.5", values[0].Labels()["amount"])

	values, err = alerts.ConvertToAlertMetricValues([]alerts.SilentValidator{})
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestAlertMetricValues_MissingValue(t *testing.T) {
	t.Parallel()

	v := alerts.AlertMetricValues{"validator": "0x01"}
	require.Zero(t, v.Value())
	require.Equal(t, prometheus.Labels{"validator": "0x01"}, v.Labels())
}

func TestNewAlertManager_UnknownAlert(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Registry: new(config.RegistryConfig),
		Monitor: &config.MonitorConfig{
			Alerts: map[string]*config.AlertConfig{"stuck_transactions": nil, "lost_messages": nil},
		},
	}
	_, err := alerts.NewAlertManager(logging.NewNop(), nil, cfg)
	require.ErrorContains(t, err, "lost_messages")
}
