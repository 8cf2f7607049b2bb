package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full agent configuration.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Trading TradingConfig `yaml:"trading"`
	Social  SocialConfig  `yaml:"social"`
	Chain   ChainConfig   `yaml:"chain"`
	Brain   BrainConfig   `yaml:"brain"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// AgentConfig controls the tick loop.
type AgentConfig struct {
	LoopMinutes  int  `yaml:"loop_minutes"`
	PostReceipts bool `yaml:"post_receipts"`
}

// TradingConfig is the guardrail policy. MaxSpendEthPerTrade stays a
// decimal string; the decision engine parses it and a bad value degrades
// to "never trade" rather than crashing the loop.
type TradingConfig struct {
	Enabled             bool   `yaml:"enabled"`
	KillSwitch          bool   `yaml:"kill_switch"`
	DryRun              bool   `yaml:"dry_run"`
	DailyTradeCap       int    `yaml:"daily_trade_cap"`
	MinIntervalMinutes  int    `yaml:"min_interval_minutes"`
	MaxSpendEthPerTrade string `yaml:"max_spend_eth_per_trade"`
	SellFractionBps     int    `yaml:"sell_fraction_bps"`
	SlippageBps         int    `yaml:"slippage_bps"`
}

// SocialConfig controls posting. DryRun here is deliberately separate from
// the trading dry run: it gates only outbound posts.
type SocialConfig struct {
	DryRun              bool    `yaml:"dry_run"`
	MinIntervalMinutes  int     `yaml:"min_interval_minutes"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	SimilarityLookback  int     `yaml:"similarity_lookback"`

	Moltbook MoltbookConfig `yaml:"moltbook"`
	X        XConfig        `yaml:"x"`
}

// MoltbookConfig is the Moltbook channel. APIKey comes from the
// MOLTBOOK_API_KEY env var, never from YAML.
type MoltbookConfig struct {
	Enabled bool   `yaml:"enabled"`
	Base    string `yaml:"base"`
	Submolt string `yaml:"submolt"`
	APIKey  string `yaml:"-"`
}

// XConfig is the X channel. BearerToken comes from X_BEARER_TOKEN.
type XConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Base        string `yaml:"base"`
	BearerToken string `yaml:"-"`
}

// ChainConfig describes the watched wallet and the DEX router. PrivateKey
// comes from WALLET_PRIVATE_KEY. Router type/address both present means
// "router configured" for the guardrails.
type ChainConfig struct {
	RPCURL           string `yaml:"rpc_url"`
	ChainID          int64  `yaml:"chain_id"`
	WalletAddress    string `yaml:"wallet_address"`
	TokenAddress     string `yaml:"token_address"`
	RouterType       string `yaml:"router_type"` // e.g. "uniswap_v2"
	RouterAddress    string `yaml:"router_address"`
	MinEthDeltaWei   string `yaml:"min_eth_delta_wei"`
	MinTokenDeltaRaw string `yaml:"min_token_delta_raw"`
	PrivateKey       string `yaml:"-"`
}

// RouterConfigured reports whether both router fields are present.
func (c ChainConfig) RouterConfigured() bool {
	return c.RouterType != "" && c.RouterAddress != ""
}

// BrainConfig selects the proposal source. With an empty base URL the
// heuristic proposer runs alone. APIKey comes from LLM_API_KEY.
type BrainConfig struct {
	Base   string `yaml:"base"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"-"`
}

// StorageConfig controls where AgentState persists.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config and the .env file if present. Secrets and a
// few operational switches always come from the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// LoopInterval returns the tick interval as a time.Duration.
func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.Agent.LoopMinutes) * time.Minute
}

// applyEnvOverrides pulls secrets and operator switches from the
// environment.
func applyEnvOverrides(cfg *Config) {
	cfg.Social.Moltbook.APIKey = os.Getenv("MOLTBOOK_API_KEY")
	cfg.Social.X.BearerToken = os.Getenv("X_BEARER_TOKEN")
	cfg.Chain.PrivateKey = os.Getenv("WALLET_PRIVATE_KEY")
	cfg.Brain.APIKey = os.Getenv("LLM_API_KEY")

	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Chain.RPCURL = v
	}
	// KILL_SWITCH=true flips the hard stop without touching config files.
	if v := os.Getenv("KILL_SWITCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Trading.KillSwitch = b
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults keeps required knobs at safe values.
func setDefaults(cfg *Config) {
	if cfg.Agent.LoopMinutes <= 0 {
		cfg.Agent.LoopMinutes = 15
	}
	if cfg.Trading.SellFractionBps < 0 {
		cfg.Trading.SellFractionBps = 0
	}
	if cfg.Trading.SellFractionBps > 10000 {
		cfg.Trading.SellFractionBps = 10000
	}
	if cfg.Trading.SlippageBps <= 0 {
		cfg.Trading.SlippageBps = 100 // 1%
	}
	if cfg.Social.MinIntervalMinutes <= 0 {
		cfg.Social.MinIntervalMinutes = 30
	}
	if cfg.Social.SimilarityThreshold <= 0 {
		cfg.Social.SimilarityThreshold = 0.8
	}
	if cfg.Social.SimilarityLookback <= 0 {
		cfg.Social.SimilarityLookback = 5
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "moltagent.db"
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9153"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
