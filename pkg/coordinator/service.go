// Package coordinator runs the swap lifecycle: it watches both chains for
// escrow creation, releases the maker's secret once the finality window has
// passed on the later escrow, and recovers intents that stall or run out
// their timelocks. All status changes route through the store's
// read-modify-write cycle so concurrent writers cannot skip edges.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/fusionplus-hq/coordinator/pkg/chains"
	"github.com/fusionplus-hq/coordinator/pkg/circuitbreaker"
	"github.com/fusionplus-hq/coordinator/pkg/logger"
	"github.com/fusionplus-hq/coordinator/pkg/models"
	"github.com/fusionplus-hq/coordinator/pkg/store"
)

// Store cursor names for the chain scan positions.
const (
	cursorEVMLastBlock     = "evm:last_block"
	cursorAptosLastVersion = "aptos:last_version"
)

// EVMSource is the EVM-side boundary the watcher polls.
type EVMSource interface {
	Connect() error
	Connected() bool
	Config() chains.EVMConfig
	LatestBlock(ctx context.Context) (uint64, error)
	FilterEscrowLogs(ctx context.Context, from, to uint64) ([]models.EscrowEvent, error)
}

// AptosSource is the Aptos-side boundary the watcher polls.
type AptosSource interface {
	Config() chains.AptosConfig
	LedgerVersion(ctx context.Context) (uint64, error)
	EscrowEvents(ctx context.Context) ([]chains.AptosObservation, error)
}

var (
	_ EVMSource   = (*chains.EVMClient)(nil)
	_ AptosSource = (*chains.AptosClient)(nil)
)

// Options tunes the coordinator's loops. Zero values fall back to the
// reference defaults.
type Options struct {
	EVMPollInterval   time.Duration
	AptosPollInterval time.Duration
	RecoveryInterval  time.Duration
	// StuckAfter is how long an intent may sit in processing without an
	// update before recovery fails it.
	StuckAfter time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service owns the watcher, gate and recovery loops.
type Service struct {
	store        *store.Store
	evm          EVMSource
	aptos        AptosSource
	evmBreaker   *circuitbreaker.CircuitBreaker
	aptosBreaker *circuitbreaker.CircuitBreaker
	logger       logger.Logger
	opts         Options
	now          func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu sync.Mutex
	// states caches per-order dual-chain progress. The store record is the
	// authority; this exists so the gate can short-circuit repeat work.
	states map[string]*models.DualChainState
	// aptosSeen dedupes fullnode events by (version, sequence), keyed to the
	// version so entries below the persisted cursor can be pruned.
	aptosSeen map[string]uint64
}

// NewService wires the coordinator. Breakers may be nil when the caller does
// not want trip-based poll skipping.
func NewService(st *store.Store, evm EVMSource, aptos AptosSource,
	evmBreaker, aptosBreaker *circuitbreaker.CircuitBreaker,
	log logger.Logger, opts Options) *Service {

	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if opts.EVMPollInterval <= 0 {
		opts.EVMPollInterval = 10 * time.Second
	}
	if opts.AptosPollInterval <= 0 {
		opts.AptosPollInterval = 5 * time.Second
	}
	if opts.RecoveryInterval <= 0 {
		opts.RecoveryInterval = 30 * time.Second
	}
	if opts.StuckAfter <= 0 {
		opts.StuckAfter = time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:        st,
		evm:          evm,
		aptos:        aptos,
		evmBreaker:   evmBreaker,
		aptosBreaker: aptosBreaker,
		logger:       log,
		opts:         opts,
		now:          now,
		states:       make(map[string]*models.DualChainState),
		aptosSeen:    make(map[string]uint64),
	}
}

// Start connects the EVM client and launches the watcher and recovery loops.
// It returns immediately; Stop tears everything down.
func (s *Service) Start(ctx context.Context) error {
	if !s.evm.Connected() {
		if err := s.evm.Connect(); err != nil {
			return err
		}
	}

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(3)
	go s.evmLoop(ctx)
	go s.aptosLoop(ctx)
	go s.recoveryLoop(ctx)

	s.logger.Info("coordinator started (evm poll %s, aptos poll %s, recovery sweep %s)",
		s.opts.EVMPollInterval, s.opts.AptosPollInterval, s.opts.RecoveryInterval)
	return nil
}

// Stop cancels the loops and waits for them to exit.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("coordinator stopped")
}

// state returns the cached dual-chain aggregate for an order, creating it on
// first use.
func (s *Service) state(orderHash string) *models.DualChainState {
	st, ok := s.states[orderHash]
	if !ok {
		st = &models.DualChainState{OrderHash: orderHash}
		s.states[orderHash] = st
	}
	return st
}
