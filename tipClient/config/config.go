package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/megavibe/megavibe-node/tipClient/constant"
)

// envPrefix scopes environment overrides, e.g. MVTIP_WALLET_PRIVATE_KEY_HEX.
const envPrefix = "MVTIP"

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.PlatformFeeBps < 0 || cfg.PlatformFeeBps > 10_000 {
		return fmt.Errorf("platform fee must be between 0 and 10000 bps")
	}

	// Initialize chains from the embedded defaults if none were provided
	if len(cfg.Chains) == 0 {
		var defaultCfg Config
		if err := json.Unmarshal(defaultConfigJSON, &defaultCfg); err == nil {
			cfg.Chains = defaultCfg.Chains
		}
	}

	seen := make(map[int64]struct{}, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		if chain.ChainID <= 0 {
			return fmt.Errorf("chain id must be positive, got %d", chain.ChainID)
		}
		if _, dup := seen[chain.ChainID]; dup {
			return fmt.Errorf("duplicate chain id %d", chain.ChainID)
		}
		seen[chain.ChainID] = struct{}{}
	}

	if cfg.TargetChainID == 0 {
		cfg.TargetChainID = 5003
	}
	if _, ok := seen[cfg.TargetChainID]; !ok {
		return fmt.Errorf("target chain %d is not configured", cfg.TargetChainID)
	}

	// Set defaults for LI.FI
	if cfg.LiFi.BaseURL == "" {
		cfg.LiFi.BaseURL = "https://li.quest/v1"
	}
	if cfg.LiFi.Integrator == "" {
		cfg.LiFi.Integrator = "megavibe"
	}
	if cfg.LiFi.Slippage == 0 {
		cfg.LiFi.Slippage = 0.005
	}
	if cfg.LiFi.Slippage < 0 || cfg.LiFi.Slippage >= 1 {
		return fmt.Errorf("lifi slippage must be in [0, 1)")
	}
	if cfg.LiFi.RequestTimeoutSeconds == 0 {
		cfg.LiFi.RequestTimeoutSeconds = 20
	}

	// Set defaults for settlement polling
	if cfg.Settlement.MaxAttempts == 0 {
		cfg.Settlement.MaxAttempts = 40
	}
	if cfg.Settlement.InitialDelayMs == 0 {
		cfg.Settlement.InitialDelayMs = 5000
	}
	if cfg.Settlement.MaxDelayMs == 0 {
		cfg.Settlement.MaxDelayMs = 30000
	}
	if cfg.Settlement.Multiplier == 0 {
		cfg.Settlement.Multiplier = 1.5
	}
	if cfg.Settlement.Multiplier < 1 {
		return fmt.Errorf("settlement multiplier must be >= 1")
	}

	// Set defaults for receipt waiting
	if cfg.Receipt.PollIntervalMs == 0 {
		cfg.Receipt.PollIntervalMs = 2000
	}
	if cfg.Receipt.TimeoutSeconds == 0 {
		cfg.Receipt.TimeoutSeconds = 120
	}

	// Set defaults for query server
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = 8080
	}

	// Set defaults for journal cleanup
	if cfg.History.CleanupIntervalSeconds == 0 {
		cfg.History.CleanupIntervalSeconds = 3600
	}
	if cfg.History.RetentionPeriodSeconds == 0 {
		cfg.History.RetentionPeriodSeconds = 30 * 86400
	}

	return nil
}

// Validate applies defaults and checks the config.
func Validate(cfg *Config) error {
	return validateConfig(cfg)
}

// Save writes the given config to <NodeDir>/config/mvtip_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads and returns the config from <BasePath>/config/mvtip_config.json.
// Values can be overridden with MVTIP_* environment variables.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)

	v := viper.New()
	v.SetConfigFile(filepath.Clean(configFile))
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// secrets are usually absent from the file, bind them explicitly
	_ = v.BindEnv("wallet_private_key_hex")
	_ = v.BindEnv("lifi.api_key")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}
