package config_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
)

const testCfg = `
chains:
  xrpl:
    kind: native
    rpc:
      host: https://s1.ripple.com:51234
      timeout: 20s
    bridge_address: rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh
    block_confirmations: 1
  ethereum:
    kind: evm
    chain_id: 1
    rpc:
      host: https://mainnet.infura.io/v3/${INFURA_PROJECT_KEY}
    bridge_address: 0x4aa42145Aa6Ebf72e164C9bBC74fbD3788045016
    block_confirmations: 12
    fee:
      base: 10
      percentage_bps: 10
      minimum: 10
      maximum: 5000
  solana:
    kind: solana
    rpc:
      host: https://api.mainnet-beta.solana.com
    fee:
      base: 0.5
      percentage_bps: 5
      minimum: 0.5
      maximum: 100
bridge:
  required_validations: 3
  min_amount: 100
  max_amount: 1000000
registry:
  liveness_window: 90s
  validators:
    - 0x73cA9C4e72fF109259cf7374F038faf950949C51
monitor:
  auto_refund: true
  alerts:
    stuck_transactions:
    silent_validators:
      interval: 2m
postgres:
  user: test_user
  password: test_password
  host: test_host
  port: 5432
  database: test_db
log_level: info
presenter:
  host: 0.0.0.0:3333
`

//nolint:paralleltest
func TestReadConfigWithEnv(t *testing.T) {
	t.Setenv("INFURA_PROJECT_KEY", "12345678")
	t.Setenv("BRIDGE_VALIDATOR_KEY", "deadbeef")
	cfg, err := config.ReadConfigWithEnv([]byte(testCfg))
	require.NoError(t, err)

	require.Equal(t, &config.ChainConfig{
		ID:      "ethereum",
		Kind:    entity.ChainKindEVM,
		ChainID: "1",
		RPC: &config.RPCConfig{
			Host:    "https://mainnet.infura.io/v3/12345678",
			Timeout: 30 * time.Second,
		},
		BridgeAddress:      "0x4aa42145Aa6Ebf72e164C9bBC74fbD3788045016",
		BlockConfirmations: 12,
		Fee: &config.FeeConfig{
			Base:          entity.NewAmount(10),
			PercentageBps: 10,
			Minimum:       entity.NewAmount(10),
			Maximum:       entity.NewAmount(5000),
		},
	}, cfg.Chains["ethereum"])
	require.Equal(t, entity.Amount(500_000), cfg.Chains["solana"].Fee.Base)
	require.Equal(t, "xrpl", cfg.NativeChain().ID)
	require.Equal(t, 20*time.Second, cfg.NativeChain().RPC.Timeout)

	require.Equal(t, &config.BridgeConfig{
		RequiredValidations: 3,
		MinAmount:           entity.NewAmount(100),
		MaxAmount:           entity.NewAmount(1000000),
		ValidityWindow:      24 * time.Hour,
		MaxRetries:          3,
	}, cfg.Bridge)
	require.Equal(t, 90*time.Second, cfg.Registry.LivenessWindow)
	require.Equal(t, []string{"0x73cA9C4e72fF109259cf7374F038faf950949C51"}, cfg.Registry.Validators)
	require.True(t, cfg.Monitor.AutoRefund)
	require.False(t, cfg.Monitor.AutoRetry)
	require.Equal(t, 30*time.Minute, cfg.Monitor.StuckThreshold)
	require.Nil(t, cfg.Monitor.Alerts["stuck_transactions"])
	require.Equal(t, 2*time.Minute, cfg.Monitor.Alerts["silent_validators"].Interval)
	require.Equal(t, uint64(50), cfg.Validator.BatchSize)
	require.Equal(t, 5*time.Minute, cfg.Relayer.ConfirmationTimeout)
	require.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	require.Equal(t, "0.0.0.0:3333", cfg.Presenter.Host)
	require.Nil(t, cfg.Redis)
	require.Equal(t, "deadbeef", cfg.Secrets.ValidatorKey)
	require.Equal(t, &config.DBConfig{
		User:     "test_user",
		Password: "test_password",
		Host:     "test_host",
		Port:     5432,
		DB:       "test_db",
	}, cfg.DBConfig)
}

func TestReadConfig_Invalid(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name string
		Cfg  string
	}{
		{
			Name: "no native chain",
			Cfg: `
chains:
  ethereum:
    kind: evm
    rpc: {host: http://localhost:8545}
    fee: {base: 1, percentage_bps: 1, minimum: 1, maximum: 2}
bridge: {min_amount: 1, max_amount: 10}
`,
		},
		{
			Name: "missing fee policy",
			Cfg: `
chains:
  xrpl: {kind: native, rpc: {host: http://localhost:5005}}
  ethereum: {kind: evm, rpc: {host: http://localhost:8545}}
bridge: {min_amount: 1, max_amount: 10}
`,
		},
		{
			Name: "inverted amount bounds",
			Cfg: `
chains:
  xrpl: {kind: native, rpc: {host: http://localhost:5005}}
bridge: {min_amount: 100, max_amount: 10}
`,
		},
		{
			Name: "negative fee percentage",
			Cfg: `
chains:
  xrpl: {kind: native, rpc: {host: http://localhost:5005}}
  ethereum:
    kind: evm
    rpc: {host: http://localhost:8545}
    fee: {base: 1, percentage_bps: -5, minimum: 1, maximum: 2}
bridge: {min_amount: 1, max_amount: 10}
`,
		},
		{
			Name: "fee percentage above the whole amount",
			Cfg: `
chains:
  xrpl: {kind: native, rpc: {host: http://localhost:5005}}
  ethereum:
    kind: evm
    rpc: {host: http://localhost:8545}
    fee: {base: 1, percentage_bps: 10001, minimum: 1, maximum: 2}
bridge: {min_amount: 1, max_amount: 10}
`,
		},
		{
			Name: "fee minimum above maximum",
			Cfg: `
chains:
  xrpl: {kind: native, rpc: {host: http://localhost:5005}}
  ethereum:
    kind: evm
    rpc: {host: http://localhost:8545}
    fee: {base: 1, percentage_bps: 1, minimum: 3, maximum: 2}
bridge: {min_amount: 1, max_amount: 10}
`,
		},
		{
			Name: "unknown chain kind",
			Cfg: `
chains:
  xrpl: {kind: native, rpc: {host: http://localhost:5005}}
  cosmos: {kind: tendermint, rpc: {host: http://localhost:26657}, fee: {base: 1, maximum: 1}}
bridge: {min_amount: 1, max_amount: 10}
`,
		},
	} {
		_, err := config.ReadConfig([]byte(test.Cfg))
		require.ErrorIs(t, err, config.ErrInvalidConfig, test.Name)
	}
}

func TestReadConfig_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.ReadConfig([]byte("unknown_section: {}\n"))
	require.Error(t, err)
}

func TestReadConfig_UncappedFee(t *testing.T) {
	t.Parallel()

	cfg, err := config.ReadConfig([]byte(`
chains:
  xrpl: {kind: native, rpc: {host: http://localhost:5005}}
  ethereum:
    kind: evm
    rpc: {host: http://localhost:8545}
    fee: {base: 1, percentage_bps: 10000, minimum: 2}
bridge: {min_amount: 1, max_amount: 10}
`))
	require.NoError(t, err)
	require.EqualValues(t, 10000, cfg.Chains["ethereum"].Fee.PercentageBps)
	require.Zero(t, cfg.Chains["ethereum"].Fee.Maximum)
}
