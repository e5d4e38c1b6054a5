package models

import (
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"strings"
)

// ValidationError is a synchronous rejection at the intake boundary. Field
// names the offending order field so callers can self-correct.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var (
	evmAddressRe   = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	aptosAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)
	hash32Re       = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// IsEVMAddress reports whether s is a 20-byte hex address.
func IsEVMAddress(s string) bool {
	return evmAddressRe.MatchString(s)
}

// IsAptosAddress accepts an account address or a fully qualified module path
// (addr::module::name).
func IsAptosAddress(s string) bool {
	if aptosAddressRe.MatchString(s) {
		return true
	}
	parts := strings.Split(s, "::")
	if len(parts) < 2 {
		return false
	}
	return aptosAddressRe.MatchString(parts[0])
}

// validAddressFor checks an address against the given chain's format.
func validAddressFor(chain ChainTag, addr string) bool {
	switch chain {
	case ChainEVM:
		return IsEVMAddress(addr)
	case ChainAptos:
		return IsAptosAddress(addr)
	default:
		return false
	}
}

// ChainTagOf maps a chain identifier from an order to a watched chain tag.
func ChainTagOf(chain string) (ChainTag, bool) {
	switch ChainTag(strings.ToLower(chain)) {
	case ChainEVM:
		return ChainEVM, true
	case ChainAptos:
		return ChainAptos, true
	}
	return "", false
}

func positiveAmount(s string) bool {
	v, ok := new(big.Int).SetString(s, 10)
	return ok && v.Sign() > 0
}

func nonNegativeAmount(s string) bool {
	if s == "" {
		return true
	}
	v, ok := new(big.Int).SetString(s, 10)
	return ok && v.Sign() >= 0
}

// NormalizeFillThresholds dedupes, sorts ascending and injects the 100%
// threshold when missing, so an order is always fully fillable.
func NormalizeFillThresholds(thresholds []int) ([]int, error) {
	seen := make(map[int]bool)
	out := make([]int, 0, len(thresholds)+1)
	for _, t := range thresholds {
		if t <= 0 || t > 100 {
			return nil, &ValidationError{Field: "fill_thresholds", Reason: fmt.Sprintf("threshold %d out of range (1-100)", t)}
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	if !seen[100] {
		out = append(out, 100)
	}
	sort.Ints(out)
	return out, nil
}

// ValidateIntent checks all order terms synchronously. The first violation is
// returned; nothing is partially applied. On success the intent's fill
// thresholds are normalized in place.
func ValidateIntent(in *Intent) error {
	srcChain, ok := ChainTagOf(in.SourceChain)
	if !ok {
		return &ValidationError{Field: "source_chain", Reason: fmt.Sprintf("unsupported chain %q", in.SourceChain)}
	}
	dstChain, ok := ChainTagOf(in.DestinationChain)
	if !ok {
		return &ValidationError{Field: "destination_chain", Reason: fmt.Sprintf("unsupported chain %q", in.DestinationChain)}
	}
	if srcChain == dstChain {
		return &ValidationError{Field: "destination_chain", Reason: "source and destination chains must differ"}
	}

	if in.Maker == "" || !validAddressFor(srcChain, in.Maker) {
		return &ValidationError{Field: "maker", Reason: fmt.Sprintf("not a valid %s address", srcChain)}
	}
	if !positiveAmount(in.MakingAmount) {
		return &ValidationError{Field: "making_amount", Reason: "must be a positive integer"}
	}
	if !positiveAmount(in.TakingAmount) {
		return &ValidationError{Field: "taking_amount", Reason: "must be a positive integer"}
	}

	if !hash32Re.MatchString(in.SecretHash) {
		return &ValidationError{Field: "secret_hash", Reason: "must be 0x-prefixed 32-byte hex"}
	}
	if in.SecretTreeRoot != "" && !hash32Re.MatchString(in.SecretTreeRoot) {
		return &ValidationError{Field: "secret_tree_root", Reason: "must be 0x-prefixed 32-byte hex"}
	}

	if in.SrcTimelock <= 0 || in.DstTimelock <= 0 {
		return &ValidationError{Field: "timelocks", Reason: "timelocks must be positive"}
	}
	if in.SrcTimelock <= in.DstTimelock {
		return &ValidationError{Field: "src_timelock", Reason: "source timelock must exceed destination timelock"}
	}
	if in.FinalityLock < 0 {
		return &ValidationError{Field: "finality_lock", Reason: "must be non-negative"}
	}
	if !nonNegativeAmount(in.SrcSafetyDeposit) {
		return &ValidationError{Field: "src_safety_deposit", Reason: "must be a non-negative integer"}
	}
	if !nonNegativeAmount(in.DstSafetyDeposit) {
		return &ValidationError{Field: "dst_safety_deposit", Reason: "must be a non-negative integer"}
	}

	if in.SrcWithdrawAddress != "" && !validAddressFor(srcChain, in.SrcWithdrawAddress) {
		return &ValidationError{Field: "src_withdraw_address", Reason: fmt.Sprintf("not a valid %s address", srcChain)}
	}
	if in.DstWithdrawAddress != "" && !validAddressFor(dstChain, in.DstWithdrawAddress) {
		return &ValidationError{Field: "dst_withdraw_address", Reason: fmt.Sprintf("not a valid %s address", dstChain)}
	}

	if err := validateAuctionTerms(in); err != nil {
		return err
	}

	thresholds, err := NormalizeFillThresholds(in.FillThresholds)
	if err != nil {
		return err
	}
	in.FillThresholds = thresholds

	return nil
}

// validateAuctionTerms enforces rate ordering. The "0"/"0" pair is the
// not-a-Dutch-auction sentinel and skips the decay checks.
func validateAuctionTerms(in *Intent) error {
	start, ok := new(big.Rat).SetString(in.StartRate)
	if !ok {
		return &ValidationError{Field: "start_rate", Reason: "not a decimal number"}
	}
	end, ok := new(big.Rat).SetString(in.EndRate)
	if !ok {
		return &ValidationError{Field: "end_rate", Reason: "not a decimal number"}
	}
	if start.Sign() == 0 && end.Sign() == 0 {
		return nil
	}
	if start.Cmp(end) <= 0 {
		return &ValidationError{Field: "start_rate", Reason: "start rate must exceed end rate for a decaying auction"}
	}
	if in.AuctionDuration <= 0 {
		return &ValidationError{Field: "auction_duration", Reason: "must be positive"}
	}
	return nil
}
