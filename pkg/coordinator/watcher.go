package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/fusionplus-hq/coordinator/pkg/logger"
	"github.com/fusionplus-hq/coordinator/pkg/metrics"
	"github.com/fusionplus-hq/coordinator/pkg/models"
	"github.com/fusionplus-hq/coordinator/pkg/store"
)

// evmLoop scans the escrow factory for creation logs on a fixed ticker. The
// scan window trails the head by the confirmation depth, so every event it
// sees is already final for gating purposes.
func (s *Service) evmLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.EVMPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if s.evmBreaker != nil && s.evmBreaker.IsOpen() {
			s.logger.DebugWithChain(logger.EVM, "circuit breaker open, skipping poll")
			continue
		}

		start := time.Now()
		if err := s.pollEVM(ctx); err != nil {
			metrics.PollFailures.WithLabelValues(string(models.ChainEVM)).Inc()
			s.logger.ErrorWithChain(logger.EVM, "poll failed: %v", err)
			continue
		}
		metrics.PollLatency.WithLabelValues(string(models.ChainEVM)).Observe(time.Since(start).Seconds())

		s.gateSweep()
	}
}

// pollEVM advances the persisted block cursor through [cursor+1, head] in
// batches, where head trails the chain tip by the confirmation depth. A fresh
// cursor starts a safety window behind head so a restart cannot miss recent
// escrows.
func (s *Service) pollEVM(ctx context.Context) error {
	cfg := s.evm.Config()

	latest, err := s.evm.LatestBlock(ctx)
	if err != nil {
		return err
	}
	if latest < cfg.Confirmations {
		return nil
	}
	head := latest - cfg.Confirmations

	cursor, err := s.store.GetCursor(cursorEVMLastBlock)
	if err != nil {
		return err
	}
	from := cursor + 1
	if cursor == 0 {
		from = 0
		if head > cfg.SafetyWindow {
			from = head - cfg.SafetyWindow
		}
	}
	if from > head {
		return nil
	}
	to := head
	if cfg.BlockBatch > 0 && to-from+1 > cfg.BlockBatch {
		to = from + cfg.BlockBatch - 1
	}

	events, err := s.evm.FilterEscrowLogs(ctx, from, to)
	if err != nil {
		return err
	}
	for _, ev := range events {
		s.handleEscrowEvent(ev)
	}
	return s.store.SetCursor(cursorEVMLastBlock, to)
}

// aptosLoop polls the fullnode event stream. Failures back off exponentially;
// after the configured attempt budget the watcher is declared down and drops
// back to the regular interval, recovering on the next successful poll. The
// EVM side is unaffected either way.
func (s *Service) aptosLoop(ctx context.Context) {
	defer s.wg.Done()

	cfg := s.aptos.Config()
	maxAttempts := cfg.MaxReconnects
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	failures := 0
	down := false
	timer := time.NewTimer(s.opts.AptosPollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if s.aptosBreaker != nil && s.aptosBreaker.IsOpen() {
			s.logger.DebugWithChain(logger.Aptos, "circuit breaker open, skipping poll")
			timer.Reset(s.opts.AptosPollInterval)
			continue
		}

		start := time.Now()
		err := s.pollAptos(ctx)
		if err == nil {
			if down {
				s.logger.NoticeWithChain(logger.Aptos, "watcher recovered")
			}
			failures, down = 0, false
			metrics.PollLatency.WithLabelValues(string(models.ChainAptos)).Observe(time.Since(start).Seconds())
			s.gateSweep()
			timer.Reset(s.opts.AptosPollInterval)
			continue
		}

		failures++
		metrics.PollFailures.WithLabelValues(string(models.ChainAptos)).Inc()
		if failures >= maxAttempts {
			if !down {
				down = true
				s.logger.ErrorWithChain(logger.Aptos, "watcher down after %d failed attempts: %v", failures, err)
			}
			timer.Reset(s.opts.AptosPollInterval)
			continue
		}
		delay := calculateBackoff(cfg.BackoffBase, failures)
		metrics.WatcherReconnects.WithLabelValues(string(models.ChainAptos)).Inc()
		s.logger.ErrorWithChain(logger.Aptos, "poll failed (attempt %d/%d), retrying in %s: %v",
			failures, maxAttempts, delay, err)
		timer.Reset(delay)
	}
}

// calculateBackoff doubles the base delay per consecutive failure.
func calculateBackoff(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if failures < 1 {
		failures = 1
	}
	return base << uint(failures-1)
}

// pollAptos fetches the latest escrow events and routes the unseen ones.
// Hashlock-keyed events announce destination escrows and are held back until
// their version delta against the current ledger clears the confirmation
// threshold; held events stay out of the dedupe set so the next poll retries.
// The persisted version cursor floors the scan, and the dedupe set only has
// to cover versions the cursor has not passed yet.
func (s *Service) pollAptos(ctx context.Context) error {
	ledger, err := s.aptos.LedgerVersion(ctx)
	if err != nil {
		return err
	}
	observations, err := s.aptos.EscrowEvents(ctx)
	if err != nil {
		return err
	}
	cursor, err := s.store.GetCursor(cursorAptosLastVersion)
	if err != nil {
		return err
	}

	cfg := s.aptos.Config()
	var highest, lowestHeld uint64
	for _, obs := range observations {
		if obs.Version < cursor {
			continue
		}
		key := fmt.Sprintf("%d:%d", obs.Version, obs.SequenceNumber)
		s.mu.Lock()
		_, seen := s.aptosSeen[key]
		s.mu.Unlock()
		if seen {
			continue
		}
		// an event whose version is ahead of the ledger snapshot taken above
		// has negative confirmation depth and must wait like any shallow one
		if obs.Event.OrderHash == "" && (obs.Version > ledger || ledger-obs.Version < cfg.VersionDelta) {
			if lowestHeld == 0 || obs.Version < lowestHeld {
				lowestHeld = obs.Version
			}
			continue
		}

		s.handleEscrowEvent(obs.Event)

		s.mu.Lock()
		s.aptosSeen[key] = obs.Version
		s.mu.Unlock()
		if obs.Version > highest {
			highest = obs.Version
		}
	}

	// the cursor never passes a held event, so held destination escrows keep
	// being retried until their depth clears
	next := highest
	if lowestHeld > 0 && lowestHeld-1 < next {
		next = lowestHeld - 1
	}
	if next > cursor {
		if err := s.store.SetCursor(cursorAptosLastVersion, next); err != nil {
			return err
		}
		s.mu.Lock()
		for key, v := range s.aptosSeen {
			if v < next {
				delete(s.aptosSeen, key)
			}
		}
		s.mu.Unlock()
	}
	return nil
}

// handleEscrowEvent correlates an observation to its intent and records it on
// the matching side. Source events arrive keyed by order hash, destination
// events by hashlock; the chain the event came from decides which escrow
// reference it fills.
func (s *Service) handleEscrowEvent(ev models.EscrowEvent) {
	var (
		in  *models.Intent
		err error
	)
	if ev.OrderHash != "" {
		in, err = s.store.FindByOrderHash(ev.OrderHash)
	} else {
		in, err = s.store.FindByHashlock(ev.Hashlock)
	}
	if err != nil {
		metrics.CorrelationDrops.WithLabelValues(string(ev.Chain)).Inc()
		s.logger.DebugWithChain(chainTag(ev.Chain), "no intent matches escrow in tx %s, dropping", ev.TxHash)
		return
	}

	srcChain, _ := models.ChainTagOf(in.SourceChain)
	if ev.Chain == srcChain {
		s.recordSrcEscrow(in.ID, ev)
	} else {
		s.recordDstEscrow(in.ID, ev)
	}
}

// recordSrcEscrow stores the source escrow reference and walks the intent
// forward through the announcement edges. A destination escrow that arrived
// first is caught up in the same write.
func (s *Service) recordSrcEscrow(id string, ev models.EscrowEvent) {
	var edges [][2]models.Status
	updated, err := s.store.Mutate(id, func(in *models.Intent) error {
		if models.IsTerminal(in.Status) {
			return fmt.Errorf("%w: intent %s already %s", store.ErrConflict, in.ID, in.Status)
		}
		in.SrcEscrow = &ev
		edges = edges[:0]
		if in.Status == models.StatusPending {
			if err := s.advance(in, models.StatusProcessing, &edges); err != nil {
				return err
			}
		}
		if in.Status == models.StatusProcessing {
			if err := s.advance(in, models.StatusEscrowSrcCreated, &edges); err != nil {
				return err
			}
		}
		if in.Status == models.StatusEscrowSrcCreated && in.DstEscrow != nil {
			if err := s.advance(in, models.StatusEscrowDstCreated, &edges); err != nil {
				return err
			}
		}
		return nil
	})
	s.finishEscrowRecord(updated, err, ev, "src", edges)
}

// recordDstEscrow stores the destination escrow reference. The status only
// advances once the source side has been seen; an early destination event
// just parks the reference.
func (s *Service) recordDstEscrow(id string, ev models.EscrowEvent) {
	var edges [][2]models.Status
	updated, err := s.store.Mutate(id, func(in *models.Intent) error {
		if models.IsTerminal(in.Status) {
			return fmt.Errorf("%w: intent %s already %s", store.ErrConflict, in.ID, in.Status)
		}
		in.DstEscrow = &ev
		edges = edges[:0]
		if in.Status == models.StatusEscrowSrcCreated {
			if err := s.advance(in, models.StatusEscrowDstCreated, &edges); err != nil {
				return err
			}
		}
		return nil
	})
	s.finishEscrowRecord(updated, err, ev, "dst", edges)
}

// advance validates the edge against the adjacency table and applies it in
// place, collecting it for metric recording after the write lands.
func (s *Service) advance(in *models.Intent, next models.Status, edges *[][2]models.Status) error {
	if err := models.ValidateTransition(in.Status, next); err != nil {
		return err
	}
	*edges = append(*edges, [2]models.Status{in.Status, next})
	in.Status = next
	return nil
}

func (s *Service) finishEscrowRecord(in *models.Intent, err error, ev models.EscrowEvent, side string, edges [][2]models.Status) {
	if err != nil {
		// losers of a write race and events for finished intents are no-ops
		s.logger.DebugWithChain(chainTag(ev.Chain), "escrow record skipped: %v", err)
		return
	}

	metrics.EscrowEventsObserved.WithLabelValues(string(ev.Chain), side).Inc()
	for _, e := range edges {
		metrics.StatusTransitions.WithLabelValues(string(e[0]), string(e[1])).Inc()
	}

	s.mu.Lock()
	st := s.state(in.OrderHash)
	st.SrcEscrow = in.SrcEscrow
	st.DstEscrow = in.DstEscrow
	if st.Ready() {
		later := st.SrcEscrow.ObservedAt
		if st.DstEscrow.ObservedAt > later {
			later = st.DstEscrow.ObservedAt
		}
		st.FinalityAt = later + in.FinalityLock
	}
	s.mu.Unlock()

	s.logger.InfoWithChain(chainTag(ev.Chain), "%s escrow %s recorded for order %s (status %s)",
		side, ev.EscrowAddress, in.OrderHash, in.Status)
}

func chainTag(c models.ChainTag) logger.Chain {
	if c == models.ChainAptos {
		return logger.Aptos
	}
	return logger.EVM
}
