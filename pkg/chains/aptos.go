package chains

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fusionplus-hq/coordinator/pkg/circuitbreaker"
	"github.com/fusionplus-hq/coordinator/pkg/logger"
	"github.com/fusionplus-hq/coordinator/pkg/models"
)

const aptosHTTPTimeout = 5 * time.Second

// AptosConfig holds the connection parameters for the Aptos side. The
// fullnode API is REST, so events are polled rather than subscribed to.
type AptosConfig struct {
	NodeURL       string
	ModuleAddress string
	EventHandle   string
	EventField    string
	PageLimit     int
	VersionDelta  uint64
	PollInterval  time.Duration
	MaxReconnects int
	BackoffBase   time.Duration
}

// AptosClient is a fullnode REST client for the escrow module's events.
type AptosClient struct {
	cfg     AptosConfig
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger
}

// NewAptosClient builds a REST client with sane timeouts.
func NewAptosClient(cfg AptosConfig, breaker *circuitbreaker.CircuitBreaker, log logger.Logger) *AptosClient {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 50
	}
	return &AptosClient{
		cfg: cfg,
		http: &http.Client{
			Timeout: aptosHTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: breaker,
		logger:  log,
	}
}

// Config returns the client's connection parameters.
func (c *AptosClient) Config() AptosConfig {
	return c.cfg
}

type ledgerInfo struct {
	LedgerVersion string `json:"ledger_version"`
	ChainID       int    `json:"chain_id"`
}

// aptosEvent is the raw fullnode event envelope. Only the fields the
// coordinator needs are decoded.
type aptosEvent struct {
	Version        string `json:"version"`
	SequenceNumber string `json:"sequence_number"`
	Type           string `json:"type"`
	Data           struct {
		OrderHash     string `json:"order_hash"`
		Hashlock      string `json:"hashlock"`
		EscrowAddress string `json:"escrow_address"`
		TxHash        string `json:"tx_hash"`
	} `json:"data"`
}

// LedgerVersion returns the node's current ledger version, used for
// confirmation-depth computation.
func (c *AptosClient) LedgerVersion(ctx context.Context) (uint64, error) {
	var info ledgerInfo
	if err := c.get(ctx, "/v1", &info); err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(info.LedgerVersion, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad ledger version %q: %v", info.LedgerVersion, err)
	}
	return v, nil
}

// AptosObservation pairs a decoded event with its dedupe identity.
type AptosObservation struct {
	Event          models.EscrowEvent
	Version        uint64
	SequenceNumber uint64
}

// EscrowEvents polls the module's escrow creation events, most recent first.
// Malformed entries are logged and skipped.
func (c *AptosClient) EscrowEvents(ctx context.Context) ([]AptosObservation, error) {
	path := fmt.Sprintf("/v1/accounts/%s/events/%s/%s?limit=%d",
		c.cfg.ModuleAddress, c.cfg.EventHandle, c.cfg.EventField, c.cfg.PageLimit)

	var raw []aptosEvent
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	out := make([]AptosObservation, 0, len(raw))
	for _, e := range raw {
		obs, err := decodeAptosEvent(e)
		if err != nil {
			c.logger.ErrorWithChain(logger.Aptos, "skipping malformed event (version %s): %v", e.Version, err)
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

func decodeAptosEvent(e aptosEvent) (AptosObservation, error) {
	version, err := strconv.ParseUint(e.Version, 10, 64)
	if err != nil {
		return AptosObservation{}, fmt.Errorf("bad version %q: %v", e.Version, err)
	}
	seq, err := strconv.ParseUint(e.SequenceNumber, 10, 64)
	if err != nil {
		return AptosObservation{}, fmt.Errorf("bad sequence number %q: %v", e.SequenceNumber, err)
	}
	if e.Data.OrderHash == "" && e.Data.Hashlock == "" {
		return AptosObservation{}, fmt.Errorf("event carries neither order hash nor hashlock")
	}

	raw, _ := json.Marshal(e.Data)
	return AptosObservation{
		Event: models.EscrowEvent{
			OrderHash:     e.Data.OrderHash,
			Hashlock:      e.Data.Hashlock,
			EscrowAddress: e.Data.EscrowAddress,
			Chain:         models.ChainAptos,
			BlockNumber:   version,
			TxHash:        e.Data.TxHash,
			ObservedAt:    time.Now().Unix(),
			Immutables:    string(raw),
		},
		Version:        version,
		SequenceNumber: seq,
	}, nil
}

// get performs a GET against the fullnode and decodes the JSON body into out.
func (c *AptosClient) get(ctx context.Context, path string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, aptosHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.NodeURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %v", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("aptos fullnode request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("aptos fullnode returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("failed to decode fullnode response: %v", err)
	}
	c.breaker.RecordSuccess()
	return nil
}
