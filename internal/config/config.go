// Package config provides configuration management for the basket
// trading application.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading     TradingConfig  `mapstructure:"trading"`
	SIP         SIPConfig      `mapstructure:"sip"`
	Database    DatabaseConfig `mapstructure:"database"`
	UI          UIConfig       `mapstructure:"ui"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately
}

// TradingConfig holds trading-related configuration.
type TradingConfig struct {
	Mode               string  `mapstructure:"mode"`                // "live", "paper"
	DefaultExchange    string  `mapstructure:"default_exchange"`    // NSE, BSE
	RebalanceThreshold float64 `mapstructure:"rebalance_threshold"` // deviation band in percent
	PaperBalance       float64 `mapstructure:"paper_balance"`
}

// SIPConfig holds systematic investment plan scheduler configuration.
type SIPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CronSpec string `mapstructure:"cron_spec"` // when the daily sweep fires, IST
}

// DatabaseConfig holds persistence configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// Credentials holds API credentials.
type Credentials struct {
	Zerodha ZerodhaCredentials `mapstructure:"zerodha"`
}

// ZerodhaCredentials holds Zerodha API credentials.
type ZerodhaCredentials struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	UserID    string `mapstructure:"user_id"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/basket-trader"
	}
	return filepath.Join(home, ".config", "basket-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("trading.mode", "paper")
	v.SetDefault("trading.default_exchange", "NSE")
	v.SetDefault("trading.rebalance_threshold", 5.0)
	v.SetDefault("trading.paper_balance", 1000000.0)
	v.SetDefault("sip.enabled", true)
	v.SetDefault("sip.cron_spec", "30 9 * * 1-5")
	v.SetDefault("database.path", filepath.Join(configDir, "basket-trader.db"))
	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if werr := createTemplateConfig(configDir); werr != nil {
				return werr
			}
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ZERODHA_API_KEY"); v != "" {
		cfg.Credentials.Zerodha.APIKey = v
	}
	if v := os.Getenv("ZERODHA_API_SECRET"); v != "" {
		cfg.Credentials.Zerodha.APISecret = v
	}
	if v := os.Getenv("ZERODHA_USER_ID"); v != "" {
		cfg.Credentials.Zerodha.UserID = v
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "" && c.Trading.Mode != "live" && c.Trading.Mode != "paper" {
		return fmt.Errorf("invalid trading mode: %s (must be 'live' or 'paper')", c.Trading.Mode)
	}
	if c.Trading.DefaultExchange != "" && c.Trading.DefaultExchange != "NSE" && c.Trading.DefaultExchange != "BSE" {
		return fmt.Errorf("invalid default exchange: %s (must be 'NSE' or 'BSE')", c.Trading.DefaultExchange)
	}
	if c.Trading.RebalanceThreshold < 0 || c.Trading.RebalanceThreshold > 100 {
		return fmt.Errorf("rebalance_threshold must be between 0 and 100")
	}
	if c.Trading.PaperBalance < 0 {
		return fmt.Errorf("paper_balance must be non-negative")
	}
	return nil
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode == "paper"
}

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	template := `# Basket trader configuration

[trading]
mode = "paper"              # "live" or "paper"
default_exchange = "NSE"
rebalance_threshold = 5.0   # deviation band in percent
paper_balance = 1000000.0

[sip]
enabled = true
cron_spec = "30 9 * * 1-5"  # 9:30 IST on weekdays

[database]
# path = "~/.config/basket-trader/basket-trader.db"

[ui]
color_enabled = true
date_format = "2006-01-02"
`

	path := filepath.Join(configDir, "config.toml")
	return os.WriteFile(path, []byte(template), 0600)
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	template := `# Zerodha Kite Connect credentials
# Get these from https://developers.kite.trade/

[zerodha]
api_key = ""
api_secret = ""
user_id = ""
`

	path := filepath.Join(configDir, "credentials.toml")
	return os.WriteFile(path, []byte(template), 0600)
}
