package config

import "fmt"

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level" mapstructure:"log_level"`     // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format" mapstructure:"log_format"`   // "json" or "console"
	LogSampler bool   `json:"log_sampler" mapstructure:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home" mapstructure:"node_home"` // Node home directory (default: ~/.mvtip)

	// Tip routing
	TargetChainID  int64  `json:"target_chain_id" mapstructure:"target_chain_id"`   // Chain every tip settles on (default: 5003)
	PlatformFeeBps int64  `json:"platform_fee_bps" mapstructure:"platform_fee_bps"` // Platform fee shown in quotes, in basis points
	WalletKeyHex   string `json:"wallet_private_key_hex" mapstructure:"wallet_private_key_hex"`

	// Chains known to the registry
	Chains []ChainConfig `json:"chains" mapstructure:"chains"`

	// Bridge (LI.FI) configuration
	LiFi LiFiConfig `json:"lifi" mapstructure:"lifi"`

	// Bridge settlement polling
	Settlement SettlementConfig `json:"settlement" mapstructure:"settlement"`

	// Receipt waiting for locally submitted transactions
	Receipt ReceiptConfig `json:"receipt" mapstructure:"receipt"`

	// Query Server Config
	QueryServerPort int `json:"query_server_port" mapstructure:"query_server_port"` // Port for HTTP query server (default: 8080)

	// Local tip journal
	History HistoryConfig `json:"history" mapstructure:"history"`
}

// ChainConfig describes one chain the client can tip from or to
type ChainConfig struct {
	ChainID      int64    `json:"chain_id" mapstructure:"chain_id"`
	Name         string   `json:"name" mapstructure:"name"`
	NativeSymbol string   `json:"native_symbol" mapstructure:"native_symbol"`
	USDCAddress  string   `json:"usdc_address" mapstructure:"usdc_address"`
	TipContract  string   `json:"tip_contract,omitempty" mapstructure:"tip_contract"` // Only required on the target chain
	RPCURLs      []string `json:"rpc_urls,omitempty" mapstructure:"rpc_urls"`
	ExplorerURL  string   `json:"explorer_url,omitempty" mapstructure:"explorer_url"`
	Testnet      bool     `json:"testnet,omitempty" mapstructure:"testnet"`
}

type LiFiConfig struct {
	BaseURL               string  `json:"base_url" mapstructure:"base_url"`
	APIKey                string  `json:"api_key,omitempty" mapstructure:"api_key"`
	Integrator            string  `json:"integrator" mapstructure:"integrator"`
	Slippage              float64 `json:"slippage" mapstructure:"slippage"`
	RequestTimeoutSeconds int     `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
}

type SettlementConfig struct {
	MaxAttempts    int     `json:"max_attempts" mapstructure:"max_attempts"`
	InitialDelayMs int     `json:"initial_delay_ms" mapstructure:"initial_delay_ms"`
	MaxDelayMs     int     `json:"max_delay_ms" mapstructure:"max_delay_ms"`
	Multiplier     float64 `json:"multiplier" mapstructure:"multiplier"`
}

type ReceiptConfig struct {
	PollIntervalMs int `json:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

type HistoryConfig struct {
	Enabled                bool `json:"enabled" mapstructure:"enabled"`
	CleanupIntervalSeconds int  `json:"cleanup_interval_seconds" mapstructure:"cleanup_interval_seconds"`
	RetentionPeriodSeconds int  `json:"retention_period_seconds" mapstructure:"retention_period_seconds"`
}

// ChainByID returns the configuration for a chain
func (c *Config) ChainByID(chainID int64) (*ChainConfig, error) {
	for i := range c.Chains {
		if c.Chains[i].ChainID == chainID {
			return &c.Chains[i], nil
		}
	}
	return nil, fmt.Errorf("no config found for chain %d", chainID)
}
