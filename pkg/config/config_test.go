package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionplus-hq/coordinator/pkg/logger"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("EVM_RPC_URL", "https://eth.example.org")
	t.Setenv("EVM_FACTORY_ADDRESS", "0x999fce149FD078DCFaa2C681e060e00F528552f4")
	t.Setenv("APTOS_NODE_URL", "https://fullnode.mainnet.aptoslabs.com")
	t.Setenv("APTOS_MODULE_ADDRESS", "0xabc")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, uint64(3), cfg.EVM.Confirmations)
	assert.Equal(t, uint64(512), cfg.EVM.BlockBatch)
	assert.Equal(t, uint64(10), cfg.EVM.SafetyWindow)
	assert.Equal(t, 50, cfg.Aptos.PageLimit)
	assert.Equal(t, uint64(10), cfg.Aptos.VersionDelta)
	assert.Equal(t, 5*time.Second, cfg.Aptos.PollInterval)
	assert.Equal(t, "0xabc::escrow_factory::EscrowStore", cfg.Aptos.EventHandle)
	assert.Equal(t, "escrow_created_events", cfg.Aptos.EventField)
	assert.Equal(t, 10*time.Second, cfg.Coordinator.EVMPollInterval)
	assert.Equal(t, 30*time.Second, cfg.Coordinator.RecoveryInterval)
	assert.Equal(t, time.Hour, cfg.Coordinator.StuckAfter)
	assert.Equal(t, int64(10), cfg.DefaultFinalityLock)
	assert.True(t, cfg.CircuitBreaker.Enabled)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EVM_FACTORY_ADDRESS", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("EVM_FACTORY_ADDRESS", "not-an-address")
	_, err := LoadConfig()
	assert.Error(t, err)

	setRequiredEnv(t)
	t.Setenv("APTOS_POLL_INTERVAL", "0")
	_, err = LoadConfig()
	assert.Error(t, err)

	t.Setenv("APTOS_POLL_INTERVAL", "5")
	t.Setenv("STUCK_THRESHOLD", "soon")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestGetEnvLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	level, err := GetEnvLogLevel()
	require.NoError(t, err)
	assert.Equal(t, logger.DebugLevel, level)

	t.Setenv("LOG_LEVEL", "loud")
	_, err = GetEnvLogLevel()
	assert.Error(t, err)
}
