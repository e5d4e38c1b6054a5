// Package chains holds the boundary clients for the two watched chains. Raw
// SDK payloads are decoded into models.EscrowEvent here and never propagate
// further in.
package chains

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fusionplus-hq/coordinator/pkg/circuitbreaker"
	"github.com/fusionplus-hq/coordinator/pkg/logger"
	"github.com/fusionplus-hq/coordinator/pkg/models"
)

// Escrow factory event signatures. Source escrows are announced keyed by
// order hash, destination escrows keyed by hashlock.
var (
	TopicSrcEscrowCreated = crypto.Keccak256Hash([]byte("SrcEscrowCreated(bytes32,address,bytes)"))
	TopicDstEscrowCreated = crypto.Keccak256Hash([]byte("DstEscrowCreated(bytes32,address,bytes)"))
)

const evmRPCTimeout = 10 * time.Second

// EVMConfig holds the connection parameters for the EVM side.
type EVMConfig struct {
	RPCURL         string
	FactoryAddress string
	Confirmations  uint64
	BlockBatch     uint64
	SafetyWindow   uint64
}

// EVMClient wraps an ethclient and decodes escrow factory logs.
type EVMClient struct {
	cfg     EVMConfig
	client  *ethclient.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger
}

// NewEVMClient builds a client; Connect must be called before use.
func NewEVMClient(cfg EVMConfig, breaker *circuitbreaker.CircuitBreaker, log logger.Logger) *EVMClient {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &EVMClient{cfg: cfg, breaker: breaker, logger: log}
}

// Connect establishes the RPC connection.
func (c *EVMClient) Connect() error {
	client, err := ethclient.Dial(c.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to EVM client: %v", err)
	}
	c.client = client
	return nil
}

// Connected reports whether the RPC connection has been established.
func (c *EVMClient) Connected() bool {
	return c.client != nil
}

// Config returns the client's connection parameters.
func (c *EVMClient) Config() EVMConfig {
	return c.cfg
}

// LatestBlock gets the current chain head number.
func (c *EVMClient) LatestBlock(ctx context.Context) (uint64, error) {
	if c.client == nil {
		return 0, fmt.Errorf("EVM client not connected")
	}
	ctx, cancel := context.WithTimeout(ctx, evmRPCTimeout)
	defer cancel()

	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		c.breaker.RecordFailure()
		return 0, fmt.Errorf("eth_blockNumber: %v", err)
	}
	c.breaker.RecordSuccess()
	return n, nil
}

// FilterEscrowLogs scans [from, to] for escrow creation events on the factory
// and decodes them. Malformed logs are skipped with a warning, not fatal.
func (c *EVMClient) FilterEscrowLogs(ctx context.Context, from, to uint64) ([]models.EscrowEvent, error) {
	if c.client == nil {
		return nil, fmt.Errorf("EVM client not connected")
	}
	ctx, cancel := context.WithTimeout(ctx, evmRPCTimeout)
	defer cancel()

	logs, err := c.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{common.HexToAddress(c.cfg.FactoryAddress)},
		Topics:    [][]common.Hash{{TopicSrcEscrowCreated, TopicDstEscrowCreated}},
	})
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("eth_getLogs: %v", err)
	}
	c.breaker.RecordSuccess()

	events := make([]models.EscrowEvent, 0, len(logs))
	for _, l := range logs {
		ev, err := decodeEscrowLog(l)
		if err != nil {
			c.logger.ErrorWithChain(logger.EVM, "skipping malformed escrow log in tx %s: %v", l.TxHash.Hex(), err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// decodeEscrowLog converts a raw factory log into the canonical event shape.
func decodeEscrowLog(l ethtypes.Log) (models.EscrowEvent, error) {
	if len(l.Topics) < 3 {
		return models.EscrowEvent{}, fmt.Errorf("expected 3 topics, got %d", len(l.Topics))
	}

	ev := models.EscrowEvent{
		Chain:         models.ChainEVM,
		EscrowAddress: common.HexToAddress(l.Topics[2].Hex()).Hex(),
		BlockNumber:   l.BlockNumber,
		TxHash:        l.TxHash.Hex(),
		ObservedAt:    time.Now().Unix(),
		Immutables:    hexutil.Encode(l.Data),
	}

	switch l.Topics[0] {
	case TopicSrcEscrowCreated:
		ev.OrderHash = l.Topics[1].Hex()
	case TopicDstEscrowCreated:
		ev.Hashlock = l.Topics[1].Hex()
	default:
		return models.EscrowEvent{}, fmt.Errorf("unknown event topic %s", l.Topics[0].Hex())
	}
	return ev, nil
}
