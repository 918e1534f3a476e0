// Package config provides configuration management for the journal.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "trading-journal/internal/errors"
	"trading-journal/internal/logging"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Config holds all application configuration.
type Config struct {
	Journal JournalConfig `mapstructure:"journal" json:"journal"`
	Store   StoreConfig   `mapstructure:"store" json:"store"`
	Logging LoggingConfig `mapstructure:"logging" json:"logging"`
	UI      UIConfig      `mapstructure:"ui" json:"ui"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-" json:"dir"`
}

// JournalConfig holds journal-wide settings.
type JournalConfig struct {
	Owner    string `mapstructure:"owner" json:"owner"`
	Timezone string `mapstructure:"timezone" json:"timezone"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend    string       `mapstructure:"backend" json:"backend"`
	SQLitePath string       `mapstructure:"sqlite_path" json:"sqlite_path"`
	DynamoDB   DynamoConfig `mapstructure:"dynamodb" json:"dynamodb"`
}

// DynamoConfig holds DynamoDB table settings.
type DynamoConfig struct {
	Region            string `mapstructure:"region" json:"region"`
	Endpoint          string `mapstructure:"endpoint" json:"endpoint,omitempty"`
	TradesTable       string `mapstructure:"trades_table" json:"trades_table"`
	StrategiesTable   string `mapstructure:"strategies_table" json:"strategies_table"`
	FundAccountsTable string `mapstructure:"fund_accounts_table" json:"fund_accounts_table"`
}

// LoggingConfig mirrors logging.LogConfig in config-file form.
type LoggingConfig struct {
	Level      string `mapstructure:"level" json:"level"`
	Console    bool   `mapstructure:"console" json:"console"`
	File       bool   `mapstructure:"file" json:"file"`
	FilePath   string `mapstructure:"file_path" json:"file_path"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled" json:"color_enabled"`
	DateFormat   string `mapstructure:"date_format" json:"date_format"`
	TimeFormat   string `mapstructure:"time_format" json:"time_format"`
	Currency     string `mapstructure:"currency" json:"currency"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/trading-journal"
	}
	return filepath.Join(home, ".config", "trading-journal")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by the commented template and loading continues.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("journal.owner", "default")
	v.SetDefault("journal.timezone", "Local")
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.sqlite_path", "journal.db")
	v.SetDefault("store.dynamodb.region", "us-east-1")
	v.SetDefault("store.dynamodb.trades_table", "journal_trades")
	v.SetDefault("store.dynamodb.strategies_table", "journal_strategies")
	v.SetDefault("store.dynamodb.fund_accounts_table", "journal_fund_accounts")

	defaults := logging.DefaultLogConfig()
	v.SetDefault("logging.level", defaults.Level)
	v.SetDefault("logging.console", defaults.Console)
	v.SetDefault("logging.file", defaults.File)
	v.SetDefault("logging.file_path", "logs/journal.log")
	v.SetDefault("logging.max_size", defaults.MaxSize)
	v.SetDefault("logging.max_backups", defaults.MaxBackups)
	v.SetDefault("logging.max_age", defaults.MaxAge)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")
	v.SetDefault("ui.time_format", "15:04")
	v.SetDefault("ui.currency", "$")
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JOURNAL_OWNER"); v != "" {
		cfg.Journal.Owner = v
	}
	if v := os.Getenv("JOURNAL_STORE"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("JOURNAL_DB"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("JOURNAL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Journal.Owner) == "" {
		return fmt.Errorf("%w: journal.owner must not be empty", apperrors.ErrConfigInvalid)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: journal.timezone: %v", apperrors.ErrConfigInvalid, err)
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("%w: store.sqlite_path must be set for the sqlite backend", apperrors.ErrConfigInvalid)
		}
	case BackendDynamoDB:
		d := c.Store.DynamoDB
		if d.TradesTable == "" || d.StrategiesTable == "" || d.FundAccountsTable == "" {
			return fmt.Errorf("%w: store.dynamodb table names must be set", apperrors.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: invalid store backend: %s (must be 'sqlite' or 'dynamodb')", apperrors.ErrConfigInvalid, c.Store.Backend)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("%w: invalid log level: %s", apperrors.ErrConfigInvalid, c.Logging.Level)
	}
	if c.Logging.MaxSize < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAge < 0 {
		return fmt.Errorf("%w: log rotation limits must be non-negative", apperrors.ErrConfigInvalid)
	}

	return nil
}

// Path returns the path of the main config file.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, "config.toml")
}

// Location returns the journal timezone used to read and print times.
func (c *Config) Location() (*time.Location, error) {
	switch c.Journal.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Journal.Timezone)
	}
}

// SQLitePath resolves the database path. Relative paths are taken relative
// to the config directory.
func (c *Config) SQLitePath() string {
	return c.resolve(c.Store.SQLitePath)
}

// LogConfig converts the logging section to a logging.LogConfig.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.resolve(c.Logging.FilePath),
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}

func (c *Config) resolve(path string) string {
	if path == "" || path == ":memory:" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir, path)
}
