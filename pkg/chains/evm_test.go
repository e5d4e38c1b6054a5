package chains

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionplus-hq/coordinator/pkg/models"
)

func escrowLog(topic0 common.Hash) ethtypes.Log {
	return ethtypes.Log{
		Topics: []common.Hash{
			topic0,
			common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111"),
			common.HexToHash("0x0000000000000000000000002222222222222222222222222222222222222222"),
		},
		Data:        []byte{0xde, 0xad},
		BlockNumber: 42,
		TxHash:      common.HexToHash("0x3333333333333333333333333333333333333333333333333333333333333333"),
	}
}

func TestDecodeSrcEscrowLog(t *testing.T) {
	ev, err := decodeEscrowLog(escrowLog(TopicSrcEscrowCreated))
	require.NoError(t, err)

	assert.Equal(t, models.ChainEVM, ev.Chain)
	assert.Equal(t, "0x1111111111111111111111111111111111111111111111111111111111111111", ev.OrderHash)
	assert.Empty(t, ev.Hashlock)
	assert.Equal(t, common.HexToAddress("0x2222222222222222222222222222222222222222").Hex(), ev.EscrowAddress)
	assert.Equal(t, uint64(42), ev.BlockNumber)
	assert.Equal(t, "0xdead", ev.Immutables)
	assert.NotZero(t, ev.ObservedAt)
}

func TestDecodeDstEscrowLog(t *testing.T) {
	ev, err := decodeEscrowLog(escrowLog(TopicDstEscrowCreated))
	require.NoError(t, err)

	assert.Empty(t, ev.OrderHash)
	assert.Equal(t, "0x1111111111111111111111111111111111111111111111111111111111111111", ev.Hashlock)
}

func TestDecodeEscrowLogRejectsMalformed(t *testing.T) {
	// missing topics
	_, err := decodeEscrowLog(ethtypes.Log{Topics: []common.Hash{TopicSrcEscrowCreated}})
	assert.Error(t, err)

	// unknown topic
	l := escrowLog(common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"))
	_, err = decodeEscrowLog(l)
	assert.Error(t, err)
}

func TestEventTopicsDistinct(t *testing.T) {
	assert.NotEqual(t, TopicSrcEscrowCreated, TopicDstEscrowCreated)
}
