package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artpar/deployer/internal/core/crypto"
	"github.com/artpar/deployer/internal/shell/chain"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Chain     ChainConfig     `mapstructure:"chain"`
	Manifest  ManifestConfig  `mapstructure:"manifest"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Report    ReportConfig    `mapstructure:"report"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
}

// Chain modes.
const (
	ChainModeEVM       = "evm"
	ChainModeSimulated = "simulated"
)

// ChainConfig holds chain client configuration.
type ChainConfig struct {
	// Mode is "evm" for a JSON-RPC node or "simulated" for an in-process
	// chain with a generated deployer key.
	Mode string `mapstructure:"mode"`

	RPCURL string `mapstructure:"rpc_url"`

	// PrivateKey is the hex deployer key, or a sealed key (see -seal-key).
	// Set via DEPLOYER_CHAIN_PRIVATE_KEY.
	PrivateKey string `mapstructure:"private_key"`

	// KeyPassphrase opens a sealed PrivateKey.
	KeyPassphrase string `mapstructure:"key_passphrase"`

	// ChainID guards against deploying to the wrong network. 0 disables the check.
	ChainID uint64 `mapstructure:"chain_id"`

	Confirmations   uint64        `mapstructure:"confirmations"`
	FinalizeTimeout time.Duration `mapstructure:"finalize_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
}

// EVMConfig converts to the chain client's configuration.
func (c ChainConfig) EVMConfig() chain.EVMConfig {
	return chain.EVMConfig{
		RPCURL:          c.RPCURL,
		PrivateKey:      c.PrivateKey,
		ChainID:         c.ChainID,
		Confirmations:   c.Confirmations,
		FinalizeTimeout: c.FinalizeTimeout,
		PollInterval:    c.PollInterval,
		GasLimit:        c.GasLimit,
	}
}

// ResolvePrivateKey returns the plain hex deployer key, opening it first
// when it is sealed.
func (c ChainConfig) ResolvePrivateKey() (string, error) {
	if !crypto.IsSealed(c.PrivateKey) {
		return c.PrivateKey, nil
	}
	key, err := crypto.Open(c.PrivateKey, c.KeyPassphrase)
	if err != nil {
		return "", fmt.Errorf("open sealed chain.private_key: %w", err)
	}
	return string(key), nil
}

// ManifestConfig holds the deployment manifest location.
type ManifestConfig struct {
	// Path to a YAML or TOML manifest. Empty uses the built-in manifest.
	Path string `mapstructure:"path"`
}

// ArtifactsConfig holds compiled contract artifact configuration.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir"`
}

// ReportConfig holds output configuration.
type ReportConfig struct {
	Format      string `mapstructure:"format"` // table or log
	AddressBook string `mapstructure:"address_book"`
}

// StoreConfig holds run history configuration.
type StoreConfig struct {
	// DSN of the SQLite history database. Empty disables history.
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("chain.mode", ChainModeEVM)
	v.SetDefault("chain.rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("chain.private_key", "")
	v.SetDefault("chain.key_passphrase", "")
	v.SetDefault("chain.chain_id", 0)
	v.SetDefault("chain.confirmations", 1)
	v.SetDefault("chain.finalize_timeout", "5m")
	v.SetDefault("chain.poll_interval", "2s")
	v.SetDefault("chain.gas_limit", 0)
	v.SetDefault("manifest.path", "")
	v.SetDefault("artifacts.dir", "./artifacts")
	v.SetDefault("report.format", "table")
	v.SetDefault("report.address_book", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// A named config file must exist; falling back to defaults would point
	// the deployment at the local RPC endpoint.
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("DEPLOYER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Chain.Mode {
	case ChainModeEVM:
		if c.Chain.RPCURL == "" {
			return fmt.Errorf("chain.rpc_url is required in %s mode", ChainModeEVM)
		}
		if c.Chain.PrivateKey == "" {
			return fmt.Errorf("chain.private_key is required in %s mode (set DEPLOYER_CHAIN_PRIVATE_KEY)", ChainModeEVM)
		}
		if crypto.IsSealed(c.Chain.PrivateKey) && c.Chain.KeyPassphrase == "" {
			return fmt.Errorf("chain.private_key is sealed but chain.key_passphrase is empty")
		}
	case ChainModeSimulated:
	default:
		return fmt.Errorf("unknown chain.mode %q (want %s or %s)", c.Chain.Mode, ChainModeEVM, ChainModeSimulated)
	}

	if c.Chain.Confirmations == 0 {
		return fmt.Errorf("chain.confirmations must be at least 1")
	}
	if c.Chain.PollInterval <= 0 {
		return fmt.Errorf("chain.poll_interval must be positive")
	}

	switch strings.ToLower(c.Report.Format) {
	case "table", "log":
	default:
		return fmt.Errorf("unknown report.format %q (want table or log)", c.Report.Format)
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format writing
// to w. Standard output is left to the deployment report.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// =============================================================================
// Key Sealing
// =============================================================================

// SealPrivateKey seals the configured plain private key with the configured
// passphrase. The result can replace chain.private_key.
func SealPrivateKey(cfg *Config) (string, error) {
	key := strings.TrimSpace(cfg.Chain.PrivateKey)
	if key == "" {
		return "", fmt.Errorf("chain.private_key is empty")
	}
	if crypto.IsSealed(key) {
		return "", fmt.Errorf("chain.private_key is already sealed")
	}
	if _, err := chain.ParsePrivateKey(key); err != nil {
		return "", err
	}
	return crypto.Seal([]byte(key), cfg.Chain.KeyPassphrase)
}
