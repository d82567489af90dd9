package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/orderwatch/internal/config"
)

func validConfig() config.Config {
	cfg := config.Defaults()
	cfg.Chain.RPCURL = "https://rpc.example.com"
	cfg.Chain.ExchangeAddress = "0xexchange"
	cfg.Chain.TransferProxy = "0xproxy"
	return cfg
}

func TestDefaultsProducesConsistentStateLayerAndLogLevel(t *testing.T) {
	cfg := config.Defaults()
	assert.Equal(t, "latest", cfg.Chain.StateLayer)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(3_000), cfg.Watcher.PollIntervalMs)
}

func TestValidateAccumulatesEveryError(t *testing.T) {
	var cfg config.Config // zero value: fails everything

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "rpc_url")
	assert.Contains(t, msg, "exchange_address")
	assert.Contains(t, msg, "transfer_proxy_address")
	assert.Contains(t, msg, "state_layer")
	assert.Contains(t, msg, "event_polling_interval_ms")
	assert.Contains(t, msg, "order_expiration_checking_interval_ms")
	assert.Contains(t, msg, "cleanup_job_interval_ms")
	assert.Contains(t, msg, "log_level")
}

func TestValidateAcceptsDefaultsPlusRequiredChainFields(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsNegativeExpirationMargin(t *testing.T) {
	cfg := validConfig()
	cfg.Watcher.ExpirationMarginMs = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expiration_margin_ms")
}

func TestValidateRejectsUnknownStateLayer(t *testing.T) {
	cfg := validConfig()
	cfg.Chain.StateLayer = "pending"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state_layer")
}

func TestValidateRequiresKeyPasswordWithEncryptedKeyPath(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.EncryptedKeyPath = "/tmp/key.json"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password")

	cfg.Wallet.KeyPassword = "hunter2"
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesTOMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
log_level = "debug"

[chain]
rpc_url = "https://rpc.example.com"
exchange_address = "0xexchange"
transfer_proxy_address = "0xproxy"

[watcher]
cleanup_job_interval_ms = 1000
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://rpc.example.com", cfg.Chain.RPCURL)
	assert.Equal(t, int64(1000), cfg.Watcher.CleanupIntervalMs)
	// Untouched default survives the merge.
	assert.Equal(t, int64(3_000), cfg.Watcher.PollIntervalMs)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[chain]
rpc_url = "https://rpc.example.com"
exchange_address = "0xexchange"
transfer_proxy_address = "0xproxy"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	t.Setenv("ORDERWATCH_CHAIN_RPC_URL", "https://override.example.com")
	t.Setenv("ORDERWATCH_METRICS_ENABLED", "true")
	t.Setenv("ORDERWATCH_WATCHER_EXPIRATION_MARGIN_MS", "250")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.Chain.RPCURL)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, int64(250), cfg.Watcher.ExpirationMarginMs)
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	assert.Error(t, err)
}

func TestRedactedConfigHidesWalletSecretsOnly(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.PrivateKey = "0xsecret"
	cfg.Wallet.KeyPassword = "hunter2"
	cfg.Wallet.EncryptedKeyPath = "/tmp/key.json"

	redacted := config.RedactedConfig(&cfg)
	assert.Equal(t, "***", redacted.Wallet.PrivateKey)
	assert.Equal(t, "***", redacted.Wallet.KeyPassword)
	assert.Equal(t, "/tmp/key.json", redacted.Wallet.EncryptedKeyPath)
	assert.Equal(t, cfg.Chain.RPCURL, redacted.Chain.RPCURL)

	// The original config is untouched.
	assert.Equal(t, "0xsecret", cfg.Wallet.PrivateKey)
}

func TestRedactedConfigLeavesEmptySecretsEmpty(t *testing.T) {
	cfg := validConfig()
	redacted := config.RedactedConfig(&cfg)
	assert.Empty(t, redacted.Wallet.PrivateKey)
	assert.Empty(t, redacted.Wallet.KeyPassword)
}
