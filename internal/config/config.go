// Package config loads node configuration from a JSON file with environment
// overrides for deploy-specific values and secrets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"` // console or json
	DataDir   string `json:"dataDir"`
	APIListen string `json:"apiListen"`
	// AdminKey guards the admin API endpoints; empty disables them.
	AdminKey string `json:"adminKey"`

	Vault    VaultConfig    `json:"vault"`
	Venue    VenueConfig    `json:"venue"`
	Swap     SwapConfig     `json:"swap"`
	Operator OperatorConfig `json:"operator"`
}

type VaultConfig struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	Guardian string `json:"guardian"`
	Account  string `json:"account"`

	DepositSymbol      string `json:"depositSymbol"`
	DepositDecimals    uint8  `json:"depositDecimals"`
	SettlementSymbol   string `json:"settlementSymbol"`
	SettlementDecimals uint8  `json:"settlementDecimals"`

	NAVCooldownSeconds uint64 `json:"navCooldownSeconds"`
	MaxNAVChangeBps    uint64 `json:"maxNavChangeBps"`
	KeepRatioBps       uint64 `json:"keepRatioBps"`
	WithdrawFeeBps     uint64 `json:"withdrawFeeBps"`
	FeeRecipient       string `json:"feeRecipient"`
}

type VenueConfig struct {
	BaseURL         string `json:"baseUrl"`
	APIKey          string `json:"apiKey"`
	APISecret       string `json:"apiSecret"`
	Market          string `json:"market"`
	WithdrawAddress string `json:"withdrawAddress"`
}

type SwapConfig struct {
	// Mode selects the executor: "local" for the in-process fixture pool,
	// "router" for an external aggregator.
	Mode      string `json:"mode"`
	RouterURL string `json:"routerUrl"`
	FeeBps    uint64 `json:"feeBps"`
}

type OperatorConfig struct {
	DepositIntervalSeconds    uint64 `json:"depositIntervalSeconds"`
	WithdrawalIntervalSeconds uint64 `json:"withdrawalIntervalSeconds"`
	NAVIntervalSeconds        uint64 `json:"navIntervalSeconds"`
	PositionIntervalSeconds   uint64 `json:"positionIntervalSeconds"`
	BatchSize                 int    `json:"batchSize"`
	RebalanceThresholdBps     uint64 `json:"rebalanceThresholdBps"`
	MarginRatioLimit          string `json:"marginRatioLimit"`
}

// Default is the starting point every load mutates from.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "console",
		DataDir:   "data",
		APIListen: ":8080",
		Vault: VaultConfig{
			Owner:              "owner",
			Operator:           "operator",
			Account:            "vault",
			DepositSymbol:      "WBTC",
			DepositDecimals:    8,
			SettlementSymbol:   "USDC",
			SettlementDecimals: 6,
			NAVCooldownSeconds: 3600,
			MaxNAVChangeBps:    500,
			KeepRatioBps:       5000,
		},
		Venue: VenueConfig{Market: "BTC-USD"},
		Swap:  SwapConfig{Mode: "local"},
	}
}

// Load reads path (optional), then applies environment overrides, then
// validates. An empty path loads defaults plus environment only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides deploy-specific values. Secrets are expected to arrive
// this way rather than through the config file.
func applyEnv(cfg *Config) {
	envStr("UNBOUND_LOG_LEVEL", &cfg.LogLevel)
	envStr("UNBOUND_LOG_FORMAT", &cfg.LogFormat)
	envStr("UNBOUND_DATA_DIR", &cfg.DataDir)
	envStr("UNBOUND_API_LISTEN", &cfg.APIListen)
	envStr("UNBOUND_ADMIN_KEY", &cfg.AdminKey)
	envStr("UNBOUND_VENUE_URL", &cfg.Venue.BaseURL)
	envStr("UNBOUND_VENUE_API_KEY", &cfg.Venue.APIKey)
	envStr("UNBOUND_VENUE_API_SECRET", &cfg.Venue.APISecret)
	envStr("UNBOUND_VENUE_MARKET", &cfg.Venue.Market)
	envStr("UNBOUND_SWAP_ROUTER_URL", &cfg.Swap.RouterURL)
	envUint("UNBOUND_KEEP_RATIO_BPS", &cfg.Vault.KeepRatioBps)
}

func envStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envUint(key string, dst *uint64) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = parsed
		}
	}
}

func (c Config) Validate() error {
	if c.Vault.Owner == "" {
		return fmt.Errorf("config: vault.owner required")
	}
	if c.Vault.KeepRatioBps >= 10_000 {
		return fmt.Errorf("config: vault.keepRatioBps must be below 10000")
	}
	if c.Vault.WithdrawFeeBps > 1000 {
		return fmt.Errorf("config: vault.withdrawFeeBps above 1000")
	}
	switch c.Swap.Mode {
	case "local":
	case "router":
		if c.Swap.RouterURL == "" {
			return fmt.Errorf("config: swap.routerUrl required in router mode")
		}
	default:
		return fmt.Errorf("config: unknown swap.mode %q", c.Swap.Mode)
	}
	if c.Venue.BaseURL != "" && (c.Venue.APIKey == "" || c.Venue.APISecret == "") {
		return fmt.Errorf("config: venue credentials required when venue.baseUrl is set")
	}
	return nil
}
