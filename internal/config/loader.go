package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ORDERWATCH_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ORDERWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set, so
// operators can inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "ORDERWATCH_CHAIN_RPC_URL")
	setStr(&cfg.Chain.ExchangeAddress, "ORDERWATCH_CHAIN_EXCHANGE_ADDRESS")
	setStr(&cfg.Chain.TransferProxy, "ORDERWATCH_CHAIN_TRANSFER_PROXY_ADDRESS")
	setInt(&cfg.Chain.NetworkID, "ORDERWATCH_CHAIN_NETWORK_ID")
	setStr(&cfg.Chain.StateLayer, "ORDERWATCH_CHAIN_STATE_LAYER")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "ORDERWATCH_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "ORDERWATCH_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "ORDERWATCH_WALLET_KEY_PASSWORD")

	// ── Watcher ──
	setInt64(&cfg.Watcher.PollIntervalMs, "ORDERWATCH_WATCHER_EVENT_POLLING_INTERVAL_MS")
	setInt64(&cfg.Watcher.ExpirationPollIntervalMs, "ORDERWATCH_WATCHER_EXPIRATION_CHECKING_INTERVAL_MS")
	setInt64(&cfg.Watcher.ExpirationMarginMs, "ORDERWATCH_WATCHER_EXPIRATION_MARGIN_MS")
	setInt64(&cfg.Watcher.CleanupIntervalMs, "ORDERWATCH_WATCHER_CLEANUP_JOB_INTERVAL_MS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "ORDERWATCH_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "ORDERWATCH_METRICS_ADDR")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ORDERWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
