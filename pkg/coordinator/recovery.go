package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/fusionplus-hq/coordinator/pkg/metrics"
	"github.com/fusionplus-hq/coordinator/pkg/models"
	"github.com/fusionplus-hq/coordinator/pkg/store"
)

// Expiry reasons recorded in the intent's audit message and the expiry
// metric.
const (
	reasonDeadline = "deadline exceeded"
	reasonTimelock = "timelock exceeded while escrowed"
	reasonStuck    = "stuck in processing"
)

func (s *Service) recoveryLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.RecoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.recoverySweep()
		}
	}
}

// recoverySweep closes out intents that can no longer complete: past their
// explicit deadline, escrowed past their timelock budget, or sitting in
// processing with no progress. Intents that can still legally expire do;
// everything else fails with the reason recorded.
func (s *Service) recoverySweep() {
	intents, err := s.store.ListNonTerminal()
	if err != nil {
		s.logger.Error("recovery sweep: listing intents: %v", err)
		return
	}
	metrics.NonTerminalIntents.Set(float64(len(intents)))

	now := s.now()
	for i := range intents {
		if reason := s.expiryReason(&intents[i], now); reason != "" {
			s.expire(&intents[i], reason)
		}
	}
}

// expiryReason returns why the intent should be closed, or "" to leave it.
func (s *Service) expiryReason(in *models.Intent, now time.Time) string {
	if in.ExpiresAt > 0 && now.Unix() >= in.ExpiresAt {
		return reasonDeadline
	}

	switch in.Status {
	case models.StatusEscrowSrcCreated, models.StatusEscrowDstCreated, models.StatusSecretRevealed:
		budget := in.SrcTimelock
		if in.DstTimelock > budget {
			budget = in.DstTimelock
		}
		budget += in.FinalityLock
		if now.Sub(in.CreatedAt) > time.Duration(budget)*time.Second {
			return reasonTimelock
		}
	case models.StatusProcessing:
		if now.Sub(in.UpdatedAt) > s.opts.StuckAfter {
			return reasonStuck
		}
	}
	return ""
}

// expire routes the close through the state machine. Statuses with no legal
// expired edge fail instead, carrying the same reason. A losing race is a
// no-op.
func (s *Service) expire(in *models.Intent, reason string) {
	target := models.StatusExpired
	if models.ValidateTransition(in.Status, models.StatusExpired) != nil {
		target = models.StatusFailed
	}

	_, err := s.store.Transition(in.ID, in.Status, target, func(m *models.Intent) {
		m.Message = reason
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
		s.logger.Error("recovery: closing intent %s: %v", in.ID, err)
		return
	}

	metrics.IntentsExpired.WithLabelValues(reason).Inc()
	metrics.StatusTransitions.WithLabelValues(string(in.Status), string(target)).Inc()
	s.logger.Notice("intent %s (order %s) closed as %s: %s", in.ID, in.OrderHash, target, reason)
}
