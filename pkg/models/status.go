package models

import (
	"fmt"
	"sort"
	"strings"
)

// Status is the lifecycle state of an intent. Transitions are only legal
// through the adjacency table below; every component that mutates status
// must go through ValidateTransition.
type Status string

const (
	StatusPending          Status = "pending"
	StatusProcessing       Status = "processing"
	StatusEscrowSrcCreated Status = "escrow_src_created"
	StatusEscrowDstCreated Status = "escrow_dst_created"
	StatusSecretRevealed   Status = "secret_revealed"
	StatusCompleted        Status = "completed"
	StatusFilled           Status = "filled"
	StatusFailed           Status = "failed"
	StatusCancelled        Status = "cancelled"
	StatusExpired          Status = "expired"
)

// legalTransitions is the single source of truth for status changes.
var legalTransitions = map[Status][]Status{
	StatusPending:          {StatusProcessing, StatusCancelled, StatusExpired},
	StatusProcessing:       {StatusEscrowSrcCreated, StatusFailed, StatusCancelled},
	StatusEscrowSrcCreated: {StatusEscrowDstCreated, StatusFailed, StatusCancelled},
	StatusEscrowDstCreated: {StatusSecretRevealed, StatusFailed, StatusCancelled},
	StatusSecretRevealed:   {StatusCompleted, StatusFilled, StatusFailed},
	StatusCompleted:        {},
	StatusFilled:           {},
	StatusFailed:           {},
	StatusCancelled:        {},
	StatusExpired:          {StatusCancelled},
}

// TransitionError reports an illegal status transition together with enough
// state for the caller to self-correct.
type TransitionError struct {
	Current   Status
	Requested Status
	Allowed   []Status
}

func (e *TransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	sort.Strings(allowed)
	return fmt.Sprintf("illegal status transition %s -> %s (valid next: %s)",
		e.Current, e.Requested, strings.Join(allowed, ", "))
}

// IsValidStatus reports whether s is a known lifecycle status.
func IsValidStatus(s Status) bool {
	_, ok := legalTransitions[s]
	return ok
}

// IsTerminal reports whether an intent in status s can never move again.
func IsTerminal(s Status) bool {
	next, ok := legalTransitions[s]
	return ok && len(next) == 0
}

// ValidTransitions returns a copy of the legal next statuses for s.
func ValidTransitions(s Status) []Status {
	next := legalTransitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// ValidateTransition returns nil if current -> requested is a legal edge,
// otherwise a *TransitionError describing the current status and the legal
// next set.
func ValidateTransition(current, requested Status) error {
	if !IsValidStatus(current) {
		return fmt.Errorf("unknown current status %q", current)
	}
	if !IsValidStatus(requested) {
		return fmt.Errorf("unknown requested status %q", requested)
	}
	for _, next := range legalTransitions[current] {
		if next == requested {
			return nil
		}
	}
	return &TransitionError{
		Current:   current,
		Requested: requested,
		Allowed:   ValidTransitions(current),
	}
}

// ProtocolPhase maps a status to the Fusion+ protocol phase (1 announcement,
// 2 deposit, 3 withdrawal, 4 recovery) for API observability.
func ProtocolPhase(s Status) int {
	switch s {
	case StatusPending, StatusProcessing:
		return 1
	case StatusEscrowSrcCreated, StatusEscrowDstCreated:
		return 2
	case StatusSecretRevealed, StatusCompleted, StatusFilled:
		return 3
	default:
		return 4
	}
}
