// Package config defines orderwatch's top-level configuration and
// provides validation helpers, following the same TOML-plus-env-override
// layering as the rest of the corpus.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ORDERWATCH_* environment
// variables.
type Config struct {
	Chain    ChainConfig   `toml:"chain"`
	Wallet   WalletConfig  `toml:"wallet"`
	Watcher  WatcherConfig `toml:"watcher"`
	Metrics  MetricsConfig `toml:"metrics"`
	LogLevel string        `toml:"log_level"`
}

// ChainConfig holds the RPC endpoint and contract addresses orderwatch
// reads from.
type ChainConfig struct {
	RPCURL          string `toml:"rpc_url"`
	ExchangeAddress string `toml:"exchange_address"`
	TransferProxy   string `toml:"transfer_proxy_address"`
	NetworkID       int    `toml:"network_id"`
	StateLayer      string `toml:"state_layer"`
}

// WalletConfig holds the signing key used by the sign-demo CLI subcommand.
// It has no bearing on the watcher itself, which never submits orders.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// WatcherConfig holds the Watcher's tunable timers, four of spec.md §6's
// five configuration keys; the fifth, state_layer, lives in ChainConfig.
type WatcherConfig struct {
	PollIntervalMs           int64 `toml:"event_polling_interval_ms"`
	ExpirationPollIntervalMs int64 `toml:"order_expiration_checking_interval_ms"`
	ExpirationMarginMs       int64 `toml:"expiration_margin_ms"`
	CleanupIntervalMs        int64 `toml:"cleanup_job_interval_ms"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Defaults returns the built-in configuration Load starts from before
// applying the TOML file and environment overrides.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			StateLayer: "latest",
		},
		Watcher: WatcherConfig{
			PollIntervalMs:           3_000,
			ExpirationPollIntervalMs: 50,
			ExpirationMarginMs:       0,
			CleanupIntervalMs:        3_600_000,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validStateLayers = map[string]bool{
	"latest":    true,
	"finalized": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ExchangeAddress == "" {
		errs = append(errs, "chain: exchange_address must not be empty")
	}
	if c.Chain.TransferProxy == "" {
		errs = append(errs, "chain: transfer_proxy_address must not be empty")
	}
	if !validStateLayers[strings.ToLower(c.Chain.StateLayer)] {
		errs = append(errs, fmt.Sprintf("chain: unknown state_layer %q (valid: latest, finalized)", c.Chain.StateLayer))
	}

	if c.Watcher.PollIntervalMs <= 0 {
		errs = append(errs, "watcher: event_polling_interval_ms must be positive")
	}
	if c.Watcher.ExpirationPollIntervalMs <= 0 {
		errs = append(errs, "watcher: order_expiration_checking_interval_ms must be positive")
	}
	if c.Watcher.ExpirationMarginMs < 0 {
		errs = append(errs, "watcher: expiration_margin_ms must not be negative")
	}
	if c.Watcher.CleanupIntervalMs <= 0 {
		errs = append(errs, "watcher: cleanup_job_interval_ms must be positive")
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %d validation error(s): %s", len(errs), strings.Join(errs, "; "))
}
