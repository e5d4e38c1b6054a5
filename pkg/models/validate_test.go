package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestIntent() *Intent {
	return &Intent{
		ID:                 "intent1",
		Maker:              "0x1111111111111111111111111111111111111111",
		MakerAsset:         "0x2222222222222222222222222222222222222222",
		TakerAsset:         "0x1::aptos_coin::AptosCoin",
		MakingAmount:       "1000000",
		TakingAmount:       "990000",
		SourceChain:        "evm",
		DestinationChain:   "aptos",
		StartRate:          "1.05",
		EndRate:            "1.00",
		AuctionDuration:    180,
		SecretHash:         "0x" + repeatHex("ab", 32),
		SrcTimelock:        120,
		DstTimelock:        100,
		FinalityLock:       10,
		SrcSafetyDeposit:   "1000",
		DstSafetyDeposit:   "1000",
		DstWithdrawAddress: "0x" + repeatHex("cd", 32),
	}
}

func repeatHex(b string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += b
	}
	return out
}

func TestValidateIntentAccepted(t *testing.T) {
	in := validTestIntent()
	require.NoError(t, ValidateIntent(in))
	// 100 injected into empty threshold set
	assert.Equal(t, []int{100}, in.FillThresholds)
}

func TestValidateIntentTimelockOrdering(t *testing.T) {
	in := validTestIntent()
	in.SrcTimelock = 100
	in.DstTimelock = 100
	err := ValidateIntent(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source timelock must exceed destination timelock")

	in.SrcTimelock = 90
	err = ValidateIntent(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source timelock must exceed destination timelock")
}

func TestValidateIntentAuctionRateOrdering(t *testing.T) {
	in := validTestIntent()
	in.StartRate = "1.00"
	in.EndRate = "1.05"
	assert.Error(t, ValidateIntent(in))

	// equal rates are not a decaying auction either
	in.EndRate = "1.00"
	assert.Error(t, ValidateIntent(in))

	// zero sentinel means not a Dutch auction, skips decay checks
	in.StartRate = "0"
	in.EndRate = "0"
	in.AuctionDuration = 0
	assert.NoError(t, ValidateIntent(in))
}

func TestValidateIntentAmounts(t *testing.T) {
	in := validTestIntent()
	in.MakingAmount = "0"
	assert.Error(t, ValidateIntent(in))

	in = validTestIntent()
	in.TakingAmount = "-5"
	assert.Error(t, ValidateIntent(in))

	in = validTestIntent()
	in.TakingAmount = "not-a-number"
	assert.Error(t, ValidateIntent(in))
}

func TestValidateIntentAddressFormats(t *testing.T) {
	in := validTestIntent()
	in.Maker = "0x123" // too short for an EVM source
	assert.Error(t, ValidateIntent(in))

	in = validTestIntent()
	in.DstWithdrawAddress = "0x" + repeatHex("ff", 40) // 80 hex chars, too long for Aptos
	assert.Error(t, ValidateIntent(in))

	in = validTestIntent()
	in.DstWithdrawAddress = "0x1::escrow::Vault"
	assert.NoError(t, ValidateIntent(in))
}

func TestValidateIntentSecretHashFormat(t *testing.T) {
	in := validTestIntent()
	in.SecretHash = "abcd"
	assert.Error(t, ValidateIntent(in))

	in = validTestIntent()
	in.SecretHash = "0x" + repeatHex("ab", 31)
	assert.Error(t, ValidateIntent(in))
}

func TestNormalizeFillThresholds(t *testing.T) {
	out, err := NormalizeFillThresholds([]int{50, 25, 50, 75})
	require.NoError(t, err)
	assert.Equal(t, []int{25, 50, 75, 100}, out)

	out, err = NormalizeFillThresholds([]int{100, 25})
	require.NoError(t, err)
	assert.Equal(t, []int{25, 100}, out)

	out, err = NormalizeFillThresholds(nil)
	require.NoError(t, err)
	assert.Equal(t, []int{100}, out)

	_, err = NormalizeFillThresholds([]int{0})
	assert.Error(t, err)
	_, err = NormalizeFillThresholds([]int{101})
	assert.Error(t, err)
}
