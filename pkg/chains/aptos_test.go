package chains

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionplus-hq/coordinator/pkg/circuitbreaker"
	"github.com/fusionplus-hq/coordinator/pkg/models"
)

func testAptosClient(t *testing.T, handler http.HandlerFunc) (*AptosClient, *circuitbreaker.CircuitBreaker) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cb := circuitbreaker.New("aptos", true, 3, time.Minute, time.Minute, nil)
	client := NewAptosClient(AptosConfig{
		NodeURL:       srv.URL,
		ModuleAddress: "0xabc",
		EventHandle:   "0xabc::escrow_factory::EscrowStore",
		EventField:    "escrow_created_events",
		PageLimit:     50,
	}, cb, nil)
	return client, cb
}

func TestLedgerVersion(t *testing.T) {
	client, _ := testAptosClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chain_id":1,"ledger_version":"123456"}`))
	})

	v, err := client.LedgerVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), v)
}

func TestEscrowEventsDecoding(t *testing.T) {
	client, _ := testAptosClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v1/accounts/0xabc/events/")
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"version":"1001","sequence_number":"7","type":"escrow_created",
			 "data":{"order_hash":"0xaa","escrow_address":"0xbb","tx_hash":"0xcc"}},
			{"version":"1002","sequence_number":"8","type":"escrow_created",
			 "data":{"hashlock":"0xdd","escrow_address":"0xee"}},
			{"version":"not-a-number","sequence_number":"9","type":"escrow_created",
			 "data":{"order_hash":"0xff"}}
		]`))
	})

	obs, err := client.EscrowEvents(context.Background())
	require.NoError(t, err)
	// the malformed third entry is skipped, not fatal
	require.Len(t, obs, 2)

	assert.Equal(t, uint64(1001), obs[0].Version)
	assert.Equal(t, uint64(7), obs[0].SequenceNumber)
	assert.Equal(t, "0xaa", obs[0].Event.OrderHash)
	assert.Equal(t, models.ChainAptos, obs[0].Event.Chain)
	assert.Equal(t, uint64(1001), obs[0].Event.BlockNumber)

	assert.Equal(t, "0xdd", obs[1].Event.Hashlock)
	assert.Empty(t, obs[1].Event.OrderHash)
}

func TestAptosErrorRecordsBreakerFailure(t *testing.T) {
	client, cb := testAptosClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "node overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.EscrowEvents(context.Background())
	assert.Error(t, err)

	count, _ := cb.State()
	assert.Equal(t, 1, count)
}

func TestAptosSuccessResetsBreaker(t *testing.T) {
	fail := true
	client, cb := testAptosClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"chain_id":1,"ledger_version":"5"}`))
	})

	_, err := client.LedgerVersion(context.Background())
	assert.Error(t, err)

	fail = false
	_, err = client.LedgerVersion(context.Background())
	require.NoError(t, err)

	count, tripped := cb.State()
	assert.Zero(t, count)
	assert.False(t, tripped)
}
