// Package config provides configuration management for the account watcher.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Monitor     MonitorConfig `mapstructure:"monitor"`
	Logging     LoggingConfig `mapstructure:"logging"`
	Journal     JournalConfig `mapstructure:"journal"`
	Credentials Credentials   `mapstructure:"-"` // Loaded separately
}

// MonitorConfig holds reconciliation loop configuration.
type MonitorConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	ConfirmationDelay  time.Duration `mapstructure:"confirmation_delay"`
	SummaryMinInterval time.Duration `mapstructure:"summary_min_interval"`
	ReconnectDelay     time.Duration `mapstructure:"reconnect_delay"`
	SymbolSuffix       string        `mapstructure:"symbol_suffix"` // broker suffix stripped from symbols
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// JournalConfig holds ledger archive configuration.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// Credentials holds API credentials.
type Credentials struct {
	Broker   BrokerCredentials   `mapstructure:"broker"`
	Telegram TelegramCredentials `mapstructure:"telegram"`
}

// BrokerCredentials holds broker terminal API credentials.
type BrokerCredentials struct {
	Token     string `mapstructure:"token"`
	AccountID string `mapstructure:"account_id"`
	BaseURL   string `mapstructure:"base_url"`
}

// TelegramCredentials holds Telegram bot credentials.
type TelegramCredentials struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/metawatch"
	}
	return filepath.Join(home, ".config", "metawatch")
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
	applyDefaults(cfg)

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

	v.SetDefault("monitor.poll_interval", "1s")
	v.SetDefault("monitor.confirmation_delay", "3s")
	v.SetDefault("monitor.summary_min_interval", "2s")
	v.SetDefault("monitor.reconnect_delay", "5s")
	v.SetDefault("monitor.symbol_suffix", ".s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("journal.enabled", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template
			return createTemplateConfig(configDir)
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
	if v := os.Getenv("METAAPI_TOKEN"); v != "" {
		cfg.Credentials.Broker.Token = v
	}
	if v := os.Getenv("METAAPI_ACCOUNT_ID"); v != "" {
		cfg.Credentials.Broker.AccountID = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Credentials.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Credentials.Telegram.ChatID = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Monitor.PollInterval <= 0 {
		cfg.Monitor.PollInterval = time.Second
	}
	if cfg.Monitor.ConfirmationDelay <= 0 {
		cfg.Monitor.ConfirmationDelay = 3 * time.Second
	}
	if cfg.Monitor.SummaryMinInterval <= 0 {
		cfg.Monitor.SummaryMinInterval = 2 * time.Second
	}
	if cfg.Monitor.ReconnectDelay <= 0 {
		cfg.Monitor.ReconnectDelay = 5 * time.Second
	}
	if cfg.Journal.DBPath == "" {
		cfg.Journal.DBPath = filepath.Join(DefaultConfigDir(), "journal.db")
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = filepath.Join(DefaultConfigDir(), "logs", "metawatch.log")
	}
	if cfg.Logging.MaxSize <= 0 {
		cfg.Logging.MaxSize = 100
	}
	if cfg.Logging.MaxBackups <= 0 {
		cfg.Logging.MaxBackups = 7
	}
	if cfg.Logging.MaxAge <= 0 {
		cfg.Logging.MaxAge = 30
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Monitor.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("poll_interval must be at least 100ms")
	}
	if c.Monitor.ConfirmationDelay < 0 {
		return fmt.Errorf("confirmation_delay must be non-negative")
	}
	if c.Monitor.SummaryMinInterval < 0 {
		return fmt.Errorf("summary_min_interval must be non-negative")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// HasBrokerCredentials reports whether broker credentials are configured.
func (c *Config) HasBrokerCredentials() bool {
	return c.Credentials.Broker.Token != "" && c.Credentials.Broker.AccountID != ""
}

// HasTelegramCredentials reports whether Telegram credentials are configured.
func (c *Config) HasTelegramCredentials() bool {
	return c.Credentials.Telegram.BotToken != "" && c.Credentials.Telegram.ChatID != ""
}
