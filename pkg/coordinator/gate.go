package coordinator

import (
	"errors"

	"github.com/fusionplus-hq/coordinator/pkg/metrics"
	"github.com/fusionplus-hq/coordinator/pkg/models"
	"github.com/fusionplus-hq/coordinator/pkg/store"
)

// gateSweep evaluates every intent waiting on finality. It runs after each
// poll cycle, so the gate fires on elapsed time even when no new events
// arrive.
func (s *Service) gateSweep() {
	intents, err := s.store.ListByStatus(models.StatusEscrowDstCreated)
	if err != nil {
		s.logger.Error("gate sweep: listing intents: %v", err)
		return
	}
	for i := range intents {
		s.tryRelease(&intents[i])
	}
}

// tryRelease shares the maker's secret once both escrows have sat out the
// finality window. The release is a single status transition on the store, so
// a concurrent second invocation loses the race, sees ErrConflict and quietly
// backs off. The in-process latch only saves the re-read on repeats.
func (s *Service) tryRelease(in *models.Intent) {
	s.mu.Lock()
	var cachedFinality int64
	if st, ok := s.states[in.OrderHash]; ok {
		if st.SecretShared {
			s.mu.Unlock()
			return
		}
		cachedFinality = st.FinalityAt
	}
	s.mu.Unlock()

	now := s.now().Unix()
	if cachedFinality > 0 && now < cachedFinality {
		return
	}

	if in.SrcEscrow == nil || in.DstEscrow == nil {
		return
	}
	later := in.SrcEscrow.ObservedAt
	if in.DstEscrow.ObservedAt > later {
		later = in.DstEscrow.ObservedAt
	}
	earliestRelease := later + in.FinalityLock
	if now < earliestRelease {
		return
	}

	rec, err := s.store.GetSecret(in.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Error("order %s passed finality but no secret is in custody", in.OrderHash)
			return
		}
		s.logger.Error("reading secret for intent %s: %v", in.ID, err)
		return
	}

	_, err = s.store.Transition(in.ID, models.StatusEscrowDstCreated, models.StatusSecretRevealed,
		func(m *models.Intent) {
			m.Secret = rec.Secret
			m.SecretRevealedAt = now
		})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			metrics.TransitionConflicts.Inc()
			return
		}
		var terr *models.TransitionError
		if errors.As(err, &terr) {
			return
		}
		s.logger.Error("releasing secret for intent %s: %v", in.ID, err)
		return
	}

	if err := s.store.MarkSecretRevealed(in.ID, now); err != nil {
		s.logger.Error("stamping secret reveal for intent %s: %v", in.ID, err)
	}

	s.mu.Lock()
	s.state(in.OrderHash).SecretShared = true
	s.mu.Unlock()

	metrics.SecretsRevealed.Inc()
	metrics.StatusTransitions.WithLabelValues(
		string(models.StatusEscrowDstCreated), string(models.StatusSecretRevealed)).Inc()
	metrics.RevealLatency.Observe(float64(now - later))

	s.logger.Notice("secret released for order %s, %ds after the later escrow", in.OrderHash, now-later)
}
