package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fusionplus-hq/coordinator/pkg/chains"
	"github.com/fusionplus-hq/coordinator/pkg/logger"
)

const (
	// DefaultHTTPPort defines the default port for the API and metrics server
	DefaultHTTPPort = "8080"

	// DefaultRedisAddr defines the default Redis address for the intent store
	DefaultRedisAddr = "localhost:6379"

	// DefaultEVMPollInterval defines the EVM scan interval in seconds
	DefaultEVMPollInterval = 10

	// DefaultEVMConfirmations defines the block depth an EVM event needs
	DefaultEVMConfirmations = 3

	// DefaultEVMBlockBatch defines the maximum block span per log scan
	DefaultEVMBlockBatch = 512

	// DefaultEVMSafetyWindow defines how far behind head a fresh cursor starts
	DefaultEVMSafetyWindow = 10

	// DefaultAptosPollInterval defines the fullnode poll interval in seconds
	DefaultAptosPollInterval = 5

	// DefaultAptosPageLimit defines the number of events fetched per poll
	DefaultAptosPageLimit = 50

	// DefaultAptosVersionDelta defines the ledger version depth an Aptos
	// destination event needs before it is accepted
	DefaultAptosVersionDelta = 10

	// DefaultAptosMaxReconnects defines the backoff attempt budget before the
	// Aptos watcher is declared down
	DefaultAptosMaxReconnects = 5

	// DefaultAptosBackoffBase defines the first retry delay in seconds
	DefaultAptosBackoffBase = 1

	// DefaultAptosEventField defines the event field name on the escrow store
	DefaultAptosEventField = "escrow_created_events"

	// DefaultFinalityLockSeconds applies when an intent carries no finality lock
	DefaultFinalityLockSeconds = 10

	// DefaultRecoveryInterval defines the recovery sweep interval in seconds
	DefaultRecoveryInterval = 30

	// DefaultStuckThreshold defines how long an intent may sit in processing
	DefaultStuckThreshold = time.Hour

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 15
)

// GetEnvHTTPPort returns the API server port from environment variables
func GetEnvHTTPPort() (string, error) {
	httpPort := os.Getenv("HTTP_PORT")
	if httpPort == "" {
		return DefaultHTTPPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(httpPort); err != nil {
		return "", fmt.Errorf("invalid HTTP_PORT value: %s, must be a valid integer", httpPort)
	}
	return httpPort, nil
}

// GetEnvRedisAddr returns the Redis host:port from environment variables
func GetEnvRedisAddr() (string, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return DefaultRedisAddr, nil
	}
	return addr, nil
}

// GetEnvEVMConfig returns the EVM chain client configuration from environment variables
func GetEnvEVMConfig() (chains.EVMConfig, error) {
	cfg := chains.EVMConfig{
		RPCURL:         os.Getenv("EVM_RPC_URL"),
		FactoryAddress: os.Getenv("EVM_FACTORY_ADDRESS"),
	}

	if cfg.RPCURL != "" {
		if _, err := url.ParseRequestURI(cfg.RPCURL); err != nil {
			return chains.EVMConfig{}, fmt.Errorf("invalid EVM_RPC_URL value: %s, must be a valid URL", cfg.RPCURL)
		}
	}
	if cfg.FactoryAddress != "" && !common.IsHexAddress(cfg.FactoryAddress) {
		return chains.EVMConfig{}, fmt.Errorf("invalid EVM_FACTORY_ADDRESS value: %s, must be a valid Ethereum address", cfg.FactoryAddress)
	}

	confirmations, err := getEnvUint("EVM_CONFIRMATIONS", DefaultEVMConfirmations)
	if err != nil {
		return chains.EVMConfig{}, err
	}
	cfg.Confirmations = confirmations

	batch, err := getEnvUint("EVM_BLOCK_BATCH", DefaultEVMBlockBatch)
	if err != nil {
		return chains.EVMConfig{}, err
	}
	if batch == 0 {
		return chains.EVMConfig{}, fmt.Errorf("EVM_BLOCK_BATCH must be greater than 0")
	}
	cfg.BlockBatch = batch

	safety, err := getEnvUint("EVM_SAFETY_WINDOW", DefaultEVMSafetyWindow)
	if err != nil {
		return chains.EVMConfig{}, err
	}
	cfg.SafetyWindow = safety

	return cfg, nil
}

// GetEnvAptosConfig returns the Aptos fullnode client configuration from environment variables
func GetEnvAptosConfig() (chains.AptosConfig, error) {
	cfg := chains.AptosConfig{
		NodeURL:       os.Getenv("APTOS_NODE_URL"),
		ModuleAddress: os.Getenv("APTOS_MODULE_ADDRESS"),
		EventHandle:   os.Getenv("APTOS_EVENT_HANDLE"),
		EventField:    os.Getenv("APTOS_EVENT_FIELD"),
	}

	if cfg.NodeURL != "" {
		if _, err := url.ParseRequestURI(cfg.NodeURL); err != nil {
			return chains.AptosConfig{}, fmt.Errorf("invalid APTOS_NODE_URL value: %s, must be a valid URL", cfg.NodeURL)
		}
	}
	if cfg.EventHandle == "" && cfg.ModuleAddress != "" {
		cfg.EventHandle = cfg.ModuleAddress + "::escrow_factory::EscrowStore"
	}
	if cfg.EventField == "" {
		cfg.EventField = DefaultAptosEventField
	}

	pageLimit, err := getEnvInt("APTOS_PAGE_LIMIT", DefaultAptosPageLimit)
	if err != nil {
		return chains.AptosConfig{}, err
	}
	if pageLimit <= 0 {
		return chains.AptosConfig{}, fmt.Errorf("APTOS_PAGE_LIMIT must be greater than 0")
	}
	cfg.PageLimit = pageLimit

	delta, err := getEnvUint("APTOS_VERSION_DELTA", DefaultAptosVersionDelta)
	if err != nil {
		return chains.AptosConfig{}, err
	}
	cfg.VersionDelta = delta

	pollSeconds, err := getEnvInt("APTOS_POLL_INTERVAL", DefaultAptosPollInterval)
	if err != nil {
		return chains.AptosConfig{}, err
	}
	if pollSeconds <= 0 {
		return chains.AptosConfig{}, fmt.Errorf("APTOS_POLL_INTERVAL must be greater than 0")
	}
	cfg.PollInterval = time.Duration(pollSeconds) * time.Second

	maxReconnects, err := getEnvInt("APTOS_MAX_RECONNECTS", DefaultAptosMaxReconnects)
	if err != nil {
		return chains.AptosConfig{}, err
	}
	if maxReconnects <= 0 {
		return chains.AptosConfig{}, fmt.Errorf("APTOS_MAX_RECONNECTS must be greater than 0")
	}
	cfg.MaxReconnects = maxReconnects

	backoffSeconds, err := getEnvInt("APTOS_BACKOFF_BASE", DefaultAptosBackoffBase)
	if err != nil {
		return chains.AptosConfig{}, err
	}
	if backoffSeconds <= 0 {
		return chains.AptosConfig{}, fmt.Errorf("APTOS_BACKOFF_BASE must be greater than 0")
	}
	cfg.BackoffBase = time.Duration(backoffSeconds) * time.Second

	return cfg, nil
}

// GetEnvEVMPollInterval returns the EVM scan interval from environment variables
func GetEnvEVMPollInterval() (time.Duration, error) {
	return getEnvSeconds("EVM_POLL_INTERVAL", DefaultEVMPollInterval)
}

// GetEnvRecoveryInterval returns the recovery sweep interval from environment variables
func GetEnvRecoveryInterval() (time.Duration, error) {
	return getEnvSeconds("RECOVERY_INTERVAL", DefaultRecoveryInterval)
}

// GetEnvStuckThreshold returns the stuck-in-processing threshold from environment variables
func GetEnvStuckThreshold() (time.Duration, error) {
	threshold := os.Getenv("STUCK_THRESHOLD")
	if threshold == "" {
		return DefaultStuckThreshold, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid STUCK_THRESHOLD value: %s, must be a valid duration string", threshold)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("STUCK_THRESHOLD must be greater than 0")
	}
	return parsed, nil
}

// GetEnvDefaultFinalityLock returns the fallback finality lock in seconds from environment variables
func GetEnvDefaultFinalityLock() (int64, error) {
	lock := os.Getenv("FINALITY_LOCK")
	if lock == "" {
		return DefaultFinalityLockSeconds, nil
	}

	seconds, err := strconv.ParseInt(lock, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid FINALITY_LOCK value: %s, must be an integer", lock)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("FINALITY_LOCK must be greater than or equal to 0")
	}
	return seconds, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "", "info":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be 'debug', 'info', 'notice' or 'error'", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}

func getEnvInt(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be an integer", name, raw)
	}
	return value, nil
}

func getEnvUint(name string, def uint64) (uint64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a non-negative integer", name, raw)
	}
	return value, nil
}

func getEnvSeconds(name string, def int) (time.Duration, error) {
	seconds, err := getEnvInt(name, def)
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", name)
	}
	return time.Duration(seconds) * time.Second, nil
}
