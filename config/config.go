package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xbridge/bridge-coordinator/entity"
)

const (
	defaultRPCTimeout               = 30 * time.Second
	defaultBlockConfirmations       = 1
	defaultRequiredValidations      = 3
	defaultValidityWindow           = 24 * time.Hour
	defaultMaxRetries               = 3
	defaultLivenessWindow           = 2 * time.Minute
	defaultValidatorPollInterval    = 10 * time.Second
	defaultHeartbeatInterval        = 30 * time.Second
	defaultBatchSize                = 50
	defaultRelayerPollInterval      = 10 * time.Second
	defaultRelayerBatchSize         = 20
	defaultConfirmationTimeout      = 5 * time.Minute
	defaultConfirmationPollInterval = 5 * time.Second
	defaultMonitorInterval          = time.Minute
	defaultStuckThreshold           = 30 * time.Minute
	defaultHealthWindow             = time.Hour
	defaultDegradedFailureRatio     = 0.05
	defaultCriticalFailureRatio     = 0.25
	defaultRedisChannel             = "bridge:events"
)

var ErrInvalidConfig = errors.New("invalid config")

type RPCConfig struct {
	Host    string        `yaml:"host"`
	Timeout time.Duration `yaml:"timeout"`
}

const maxPercentageBps = 10_000

// FeeConfig is a destination chain's fee policy. A zero Maximum leaves the fee uncapped.
type FeeConfig struct {
	Base          entity.Amount `yaml:"base"`
	PercentageBps int64         `yaml:"percentage_bps"`
	Minimum       entity.Amount `yaml:"minimum"`
	Maximum       entity.Amount `yaml:"maximum"`
}

type ChainConfig struct {
	ID                 string           `yaml:"-"`
	Kind               entity.ChainKind `yaml:"kind"`
	ChainID            string           `yaml:"chain_id"`
	RPC                *RPCConfig       `yaml:"rpc"`
	BridgeAddress      string           `yaml:"bridge_address"`
	BlockConfirmations uint64           `yaml:"block_confirmations"`
	Fee                *FeeConfig       `yaml:"fee"`
}

func (c *ChainConfig) IsEVM() bool {
	return c.Kind == entity.ChainKindEVM
}

type BridgeConfig struct {
	RequiredValidations uint          `yaml:"required_validations"`
	MinAmount           entity.Amount `yaml:"min_amount"`
	MaxAmount           entity.Amount `yaml:"max_amount"`
	ValidityWindow      time.Duration `yaml:"validity_window"`
	MaxRetries          uint          `yaml:"max_retries"`
}

type RegistryConfig struct {
	LivenessWindow time.Duration `yaml:"liveness_window"`
	Validators     []string      `yaml:"validators"`
}

type ValidatorConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	BatchSize         uint64        `yaml:"batch_size"`
}

type RelayerConfig struct {
	PollInterval             time.Duration `yaml:"poll_interval"`
	BatchSize                uint64        `yaml:"batch_size"`
	ConfirmationTimeout      time.Duration `yaml:"confirmation_timeout"`
	ConfirmationPollInterval time.Duration `yaml:"confirmation_poll_interval"`
}

type AlertConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type MonitorConfig struct {
	Interval             time.Duration           `yaml:"interval"`
	StuckThreshold       time.Duration           `yaml:"stuck_threshold"`
	HealthWindow         time.Duration           `yaml:"health_window"`
	DegradedFailureRatio float64                 `yaml:"degraded_failure_ratio"`
	CriticalFailureRatio float64                 `yaml:"critical_failure_ratio"`
	AutoRetry            bool                    `yaml:"auto_retry"`
	AutoRefund           bool                    `yaml:"auto_refund"`
	Alerts               map[string]*AlertConfig `yaml:"alerts"`
}

type DBConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"database"`
}

type RedisConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Channel string `yaml:"channel"`
}

type PresenterConfig struct {
	Host string `yaml:"host"`
}

// Secrets never come from the YAML file.
type Secrets struct {
	ValidatorKey string `envconfig:"VALIDATOR_KEY"`
	RelayerKey   string `envconfig:"RELAYER_KEY"`
	DoorSecret   string `envconfig:"DOOR_SECRET"`
}

type Config struct {
	Chains    map[string]*ChainConfig `yaml:"chains"`
	Bridge    *BridgeConfig           `yaml:"bridge"`
	Registry  *RegistryConfig         `yaml:"registry"`
	Validator *ValidatorConfig        `yaml:"validator"`
	Relayer   *RelayerConfig          `yaml:"relayer"`
	Monitor   *MonitorConfig          `yaml:"monitor"`
	DBConfig  *DBConfig               `yaml:"postgres"`
	Redis     *RedisConfig            `yaml:"redis"`
	Presenter *PresenterConfig        `yaml:"presenter"`
	LogLevel  logrus.Level            `yaml:"log_level"`
	Secrets   Secrets                 `yaml:"-"`
}

func readYamlConfig(blob []byte) (*Config, error) {
	cfg := new(Config)
	if err := parseYaml(cfg, blob); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) init() error {
	if cfg.Bridge == nil {
		cfg.Bridge = new(BridgeConfig)
	}
	if cfg.Registry == nil {
		cfg.Registry = new(RegistryConfig)
	}
	if cfg.Validator == nil {
		cfg.Validator = new(ValidatorConfig)
	}
	if cfg.Relayer == nil {
		cfg.Relayer = new(RelayerConfig)
	}
	if cfg.Monitor == nil {
		cfg.Monitor = new(MonitorConfig)
	}
	if cfg.Redis != nil && cfg.Redis.Channel == "" {
		cfg.Redis.Channel = defaultRedisChannel
	}

	nativeChains := 0
	for id, chain := range cfg.Chains {
		chain.ID = id
		if !chain.Kind.Valid() {
			return fmt.Errorf("chain %s has unknown kind %q: %w", id, chain.Kind, ErrInvalidConfig)
		}
		if chain.Kind == entity.ChainKindNative {
			nativeChains++
		} else if chain.Fee == nil {
			return fmt.Errorf("chain %s has no fee policy: %w", id, ErrInvalidConfig)
		}
		if chain.RPC == nil {
			return fmt.Errorf("chain %s has no rpc config: %w", id, ErrInvalidConfig)
		}
		setDefault(&chain.RPC.Timeout, defaultRPCTimeout)
		setDefault(&chain.BlockConfirmations, defaultBlockConfirmations)
		if chain.Fee != nil {
			if chain.Fee.PercentageBps < 0 || chain.Fee.PercentageBps > maxPercentageBps {
				return fmt.Errorf("chain %s fee percentage_bps %d is outside [0, %d]: %w",
					id, chain.Fee.PercentageBps, maxPercentageBps, ErrInvalidConfig)
			}
			if chain.Fee.Maximum != 0 && chain.Fee.Minimum > chain.Fee.Maximum {
				return fmt.Errorf("chain %s fee minimum exceeds maximum: %w", id, ErrInvalidConfig)
			}
		}
	}
	if nativeChains != 1 {
		return fmt.Errorf("exactly one native chain is required, got %d: %w", nativeChains, ErrInvalidConfig)
	}

	setDefault(&cfg.Bridge.RequiredValidations, defaultRequiredValidations)
	setDefault(&cfg.Bridge.ValidityWindow, defaultValidityWindow)
	setDefault(&cfg.Bridge.MaxRetries, defaultMaxRetries)
	if cfg.Bridge.MaxAmount == 0 || cfg.Bridge.MinAmount > cfg.Bridge.MaxAmount {
		return fmt.Errorf("bridge amount bounds [%s, %s] are invalid: %w", cfg.Bridge.MinAmount, cfg.Bridge.MaxAmount, ErrInvalidConfig)
	}

	setDefault(&cfg.Registry.LivenessWindow, defaultLivenessWindow)

	setDefault(&cfg.Validator.PollInterval, defaultValidatorPollInterval)
	setDefault(&cfg.Validator.HeartbeatInterval, defaultHeartbeatInterval)
	setDefault(&cfg.Validator.BatchSize, defaultBatchSize)

	setDefault(&cfg.Relayer.PollInterval, defaultRelayerPollInterval)
	setDefault(&cfg.Relayer.BatchSize, defaultRelayerBatchSize)
	setDefault(&cfg.Relayer.ConfirmationTimeout, defaultConfirmationTimeout)
	setDefault(&cfg.Relayer.ConfirmationPollInterval, defaultConfirmationPollInterval)

	setDefault(&cfg.Monitor.Interval, defaultMonitorInterval)
	setDefault(&cfg.Monitor.StuckThreshold, defaultStuckThreshold)
	setDefault(&cfg.Monitor.HealthWindow, defaultHealthWindow)
	setDefault(&cfg.Monitor.DegradedFailureRatio, defaultDegradedFailureRatio)
	setDefault(&cfg.Monitor.CriticalFailureRatio, defaultCriticalFailureRatio)
	return nil
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

func (cfg *Config) NativeChain() *ChainConfig {
	for _, chain := range cfg.Chains {
		if chain.Kind == entity.ChainKindNative {
			return chain
		}
	}
	return nil
}

func (cfg *Config) GetChainConfig(id string) *ChainConfig {
	return cfg.Chains[id]
}

// ReadConfig parses the YAML config without touching the environment.
func ReadConfig(blob []byte) (*Config, error) {
	cfg, err := readYamlConfig(blob)
	if err != nil {
		return nil, err
	}
	if err = cfg.init(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadConfigWithEnv expands ${VAR} references and loads secrets from BRIDGE_* variables.
func ReadConfigWithEnv(blob []byte) (*Config, error) {
	cfg, err := ReadConfig([]byte(os.ExpandEnv(string(blob))))
	if err != nil {
		return nil, err
	}
	if err = parseEnv(&cfg.Secrets); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}
	return ReadConfigWithEnv(blob)
}
