package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionplus-hq/coordinator/pkg/models"
)

func newTestStore() *Store {
	return New(NewMemoryBackend())
}

func pendingIntent(id string) models.Intent {
	return models.Intent{
		ID:         id,
		OrderHash:  "0xorder_" + id,
		SecretHash: "0xhashlock_" + id,
		Status:     models.StatusPending,
	}
}

func TestCreateAndGetIntent(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateIntent(pendingIntent("a")))

	got, err := s.GetIntent("a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetIntent("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// duplicate IDs rejected
	assert.Error(t, s.CreateIntent(pendingIntent("a")))
}

func TestTransitionLegalAndIllegal(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateIntent(pendingIntent("a")))

	got, err := s.Transition("a", models.StatusPending, models.StatusProcessing, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)

	// illegal edge rejected, stored status unchanged
	_, err = s.Transition("a", models.StatusProcessing, models.StatusSecretRevealed, nil)
	require.Error(t, err)
	var terr *models.TransitionError
	assert.True(t, errors.As(err, &terr))

	cur, err := s.GetIntent("a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, cur.Status)
}

// The loser of a concurrent write race sees ErrConflict because the
// freshly-read status no longer matches its expectation.
func TestTransitionConflictOnStaleExpectation(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateIntent(pendingIntent("a")))

	_, err := s.Transition("a", models.StatusPending, models.StatusProcessing, nil)
	require.NoError(t, err)

	_, err = s.Transition("a", models.StatusPending, models.StatusExpired, nil)
	assert.ErrorIs(t, err, ErrConflict)

	cur, err := s.GetIntent("a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, cur.Status)
}

func TestMutateAbortsWithoutWrite(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateIntent(pendingIntent("a")))

	boom := errors.New("boom")
	_, err := s.Mutate("a", func(in *models.Intent) error {
		in.Message = "should not persist"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	cur, err := s.GetIntent("a")
	require.NoError(t, err)
	assert.Empty(t, cur.Message)
}

func TestListByStatusAndNonTerminal(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateIntent(pendingIntent("a")))
	require.NoError(t, s.CreateIntent(pendingIntent("b")))

	_, err := s.Transition("b", models.StatusPending, models.StatusCancelled, nil)
	require.NoError(t, err)

	pending, err := s.ListByStatus(models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].ID)

	open, err := s.ListNonTerminal()
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Equal(t, "a", open[0].ID)
}

func TestFindByOrderHashAndHashlock(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateIntent(pendingIntent("a")))

	got, err := s.FindByOrderHash("0xorder_a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	got, err = s.FindByHashlock("0xhashlock_a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	_, err = s.FindByOrderHash("0xnope")
	assert.ErrorIs(t, err, ErrNotFound)
}

// Hex hashes arrive in whatever casing the chain client emits; lookups must
// not depend on it.
func TestFindByHashIgnoresCase(t *testing.T) {
	s := newTestStore()
	in := pendingIntent("a")
	in.OrderHash = "0xABCDEF"
	in.SecretHash = "0xFEEDBEEF"
	require.NoError(t, s.CreateIntent(in))

	got, err := s.FindByOrderHash("0xabcdef")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	got, err = s.FindByHashlock("0xfeedbeef")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}

func TestWhitelist(t *testing.T) {
	s := newTestStore()

	// empty whitelist admits everyone
	ok, err := s.IsWhitelisted("0xresolver")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.AddToWhitelist("0xresolver"))
	require.NoError(t, s.AddToWhitelist("0xresolver")) // idempotent

	ok, err = s.IsWhitelisted("0xresolver")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsWhitelisted("0xother")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCursors(t *testing.T) {
	s := newTestStore()

	v, err := s.GetCursor("evm:last_block")
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, s.SetCursor("evm:last_block", 12345))
	v, err = s.GetCursor("evm:last_block")
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), v)
}

func TestAppendSecret(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AppendSecret(SecretRecord{IntentID: "a", Secret: "0xs", RevealedAt: 1}))

	doc, err := NewMemoryBackend().Read()
	require.NoError(t, err)
	assert.Empty(t, doc.Secrets) // fresh backend untouched

	// backend snapshot semantics: mutating a returned doc does not leak
	got, err := s.GetIntent("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, got)
}

func TestSecretCustodyAndReveal(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AppendSecret(SecretRecord{IntentID: "a", OrderHash: "0xo", Secret: "0xs"}))

	rec, err := s.GetSecret("a")
	require.NoError(t, err)
	assert.Equal(t, "0xs", rec.Secret)
	assert.Zero(t, rec.RevealedAt)

	_, err = s.GetSecret("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.MarkSecretRevealed("a", 100))
	// the first reveal time wins
	require.NoError(t, s.MarkSecretRevealed("a", 200))

	rec, err = s.GetSecret("a")
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.RevealedAt)

	assert.ErrorIs(t, s.MarkSecretRevealed("missing", 1), ErrNotFound)
}
