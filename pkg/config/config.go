package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/fusionplus-hq/coordinator/pkg/chains"
	"github.com/fusionplus-hq/coordinator/pkg/coordinator"
	"github.com/fusionplus-hq/coordinator/pkg/logger"
)

// Config holds the configuration for the coordinator service
type Config struct {
	HTTPPort   string
	MetricsKey string
	RedisAddr  string

	EVM   chains.EVMConfig
	Aptos chains.AptosConfig

	Coordinator coordinator.Options

	// DefaultFinalityLock is applied to incoming intents that do not carry
	// their own finality lock, in seconds.
	DefaultFinalityLock int64

	CircuitBreaker CircuitBreakerConfig
	LoggerConfig   LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	httpPort, err := GetEnvHTTPPort()
	if err != nil {
		return nil, err
	}

	redisAddr, err := GetEnvRedisAddr()
	if err != nil {
		return nil, err
	}

	evmCfg, err := GetEnvEVMConfig()
	if err != nil {
		return nil, err
	}

	aptosCfg, err := GetEnvAptosConfig()
	if err != nil {
		return nil, err
	}

	evmPoll, err := GetEnvEVMPollInterval()
	if err != nil {
		return nil, err
	}

	recoveryInterval, err := GetEnvRecoveryInterval()
	if err != nil {
		return nil, err
	}

	stuckThreshold, err := GetEnvStuckThreshold()
	if err != nil {
		return nil, err
	}

	finalityLock, err := GetEnvDefaultFinalityLock()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:   httpPort,
		MetricsKey: os.Getenv("METRICS_KEY"),
		RedisAddr:  redisAddr,
		EVM:        evmCfg,
		Aptos:      aptosCfg,
		Coordinator: coordinator.Options{
			EVMPollInterval:   evmPoll,
			AptosPollInterval: aptosCfg.PollInterval,
			RecoveryInterval:  recoveryInterval,
			StuckAfter:        stuckThreshold,
		},
		DefaultFinalityLock: finalityLock,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.EVM.RPCURL == "" {
		return fmt.Errorf("EVM_RPC_URL environment variable is required")
	}
	if cfg.EVM.FactoryAddress == "" {
		return fmt.Errorf("EVM_FACTORY_ADDRESS environment variable is required")
	}
	if cfg.Aptos.NodeURL == "" {
		return fmt.Errorf("APTOS_NODE_URL environment variable is required")
	}
	if cfg.Aptos.ModuleAddress == "" {
		return fmt.Errorf("APTOS_MODULE_ADDRESS environment variable is required")
	}
	return nil
}
