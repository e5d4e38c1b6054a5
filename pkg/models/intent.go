package models

import (
	"time"
)

// ChainTag identifies which of the two watched chains an observation came from.
type ChainTag string

const (
	ChainEVM   ChainTag = "evm"
	ChainAptos ChainTag = "aptos"
)

// Intent is a maker's signed request to perform a cross-chain swap under
// Fusion+ terms. Amounts are decimal strings in the asset's smallest unit.
type Intent struct {
	ID        string `json:"id"`
	OrderHash string `json:"order_hash"`

	Maker            string `json:"maker"`
	MakerAsset       string `json:"maker_asset"`
	TakerAsset       string `json:"taker_asset"`
	MakingAmount     string `json:"making_amount"`
	TakingAmount     string `json:"taking_amount"`
	SourceChain      string `json:"source_chain"`
	DestinationChain string `json:"destination_chain"`

	// Dutch auction terms. Rates are decimal strings; "0" on both means the
	// order is not a Dutch auction.
	AuctionStartTime int64  `json:"auction_start_time"`
	AuctionDuration  int64  `json:"auction_duration"`
	StartRate        string `json:"start_rate"`
	EndRate          string `json:"end_rate"`

	// Atomic swap terms.
	SecretHash     string `json:"secret_hash"`
	SecretTreeRoot string `json:"secret_tree_root,omitempty"`
	FillThresholds []int  `json:"fill_thresholds,omitempty"`

	// Timelock terms, all in seconds. SrcTimelock must exceed DstTimelock so
	// source funds stay lockable longer than destination funds.
	SrcTimelock      int64  `json:"src_timelock"`
	DstTimelock      int64  `json:"dst_timelock"`
	FinalityLock     int64  `json:"finality_lock"`
	SrcSafetyDeposit string `json:"src_safety_deposit"`
	DstSafetyDeposit string `json:"dst_safety_deposit"`

	SrcWithdrawAddress string `json:"src_withdraw_address"`
	DstWithdrawAddress string `json:"dst_withdraw_address"`

	Status Status `json:"status"`

	// Escrow references, one per chain at most; a second event for the same
	// chain updates the reference in place.
	SrcEscrow *EscrowEvent `json:"src_escrow,omitempty"`
	DstEscrow *EscrowEvent `json:"dst_escrow,omitempty"`

	// Populated only after the finality gate fires.
	Secret           string `json:"secret,omitempty"`
	SecretRevealedAt int64  `json:"secret_revealed_at,omitempty"`

	SrcTxHash string `json:"src_tx_hash,omitempty"`
	DstTxHash string `json:"dst_tx_hash,omitempty"`

	ExpiresAt int64  `json:"expires_at"`
	Message   string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EscrowEvent is an observation of on-chain escrow creation. It is created
// by the watcher on detection and never mutated afterwards.
type EscrowEvent struct {
	OrderHash     string   `json:"order_hash"`
	Hashlock      string   `json:"hashlock,omitempty"`
	EscrowAddress string   `json:"escrow_address"`
	Chain         ChainTag `json:"chain"`
	// Block number on EVM, transaction version on Aptos.
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	ObservedAt  int64  `json:"observed_at"`
	// Raw immutables payload, chain-specific, kept for audit only.
	Immutables string `json:"immutables,omitempty"`
}

// DualChainState is the watcher's in-memory aggregate for one order. It is
// an optimization: the store record is the authority on reveal state. The
// gate uses FinalityAt to skip re-reads before the window can have closed.
type DualChainState struct {
	OrderHash    string
	SrcEscrow    *EscrowEvent
	DstEscrow    *EscrowEvent
	FinalityAt   int64
	SecretShared bool
}

// Ready reports whether both escrow references have been observed.
func (s *DualChainState) Ready() bool {
	return s.SrcEscrow != nil && s.DstEscrow != nil
}
