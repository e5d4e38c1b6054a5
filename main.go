package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fusionplus-hq/coordinator/pkg/api"
	"github.com/fusionplus-hq/coordinator/pkg/chains"
	"github.com/fusionplus-hq/coordinator/pkg/circuitbreaker"
	"github.com/fusionplus-hq/coordinator/pkg/config"
	"github.com/fusionplus-hq/coordinator/pkg/coordinator"
	"github.com/fusionplus-hq/coordinator/pkg/logger"
	"github.com/fusionplus-hq/coordinator/pkg/store"
)

var errNotConnected = errors.New("EVM client not connected")

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Intent store backed by Redis
	backend := store.NewRedisBackend(cfg.RedisAddr)
	defer backend.Close()
	if err := backend.Ping(); err != nil {
		log.Fatalf("Failed to reach Redis at %s: %v", cfg.RedisAddr, err)
	}
	st := store.New(backend)

	// One circuit breaker per chain so an outage on one side never stalls the
	// other side's watcher
	evmBreaker := circuitbreaker.New("evm", cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold, cfg.CircuitBreaker.WindowDuration, cfg.CircuitBreaker.ResetTimeout, logg)
	aptosBreaker := circuitbreaker.New("aptos", cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold, cfg.CircuitBreaker.WindowDuration, cfg.CircuitBreaker.ResetTimeout, logg)

	evmClient := chains.NewEVMClient(cfg.EVM, evmBreaker, logg)
	aptosClient := chains.NewAptosClient(cfg.Aptos, aptosBreaker, logg)

	// Create the coordinator service
	svc := coordinator.NewService(st, evmClient, aptosClient, evmBreaker, aptosBreaker, logg, cfg.Coordinator)

	// HTTP API, with readiness tied to the store and the EVM connection
	apiServer := api.NewServer(api.Config{
		Port:                cfg.HTTPPort,
		MetricsKey:          cfg.MetricsKey,
		DefaultFinalityLock: cfg.DefaultFinalityLock,
		Ready: func() error {
			if err := backend.Ping(); err != nil {
				return err
			}
			if !evmClient.Connected() {
				return errNotConnected
			}
			return nil
		},
	}, st, logg)

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		logg.Notice("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	// Start the service
	if err := svc.Start(ctx); err != nil {
		log.Fatalf("Failed to start coordinator service: %v", err)
	}

	go func() {
		if err := apiServer.Start(); err != nil {
			logg.Error("API server error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logg.Error("API server shutdown: %v", err)
	}
	svc.Stop()
}
