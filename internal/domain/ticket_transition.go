package domain

import (
	"fmt"
	"time"
)

var statusAdjacency = map[TicketStatus][]TicketStatus{
	TicketStatusNew:      {TicketStatusOpen, TicketStatusClosed},
	TicketStatusOpen:     {TicketStatusPending, TicketStatusResolved, TicketStatusClosed},
	TicketStatusPending:  {TicketStatusOpen, TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved: {TicketStatusClosed, TicketStatusOpen},
	TicketStatusClosed:   {TicketStatusOpen},
}

// TransitionError is returned when a status change is not in the adjacency map.
type TransitionError struct {
	Current   TicketStatus
	Attempted TicketStatus
	Allowed   []TicketStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.Current, e.Attempted)
}

// AllowedTransitions returns a copy of the statuses reachable from current.
func AllowedTransitions(current TicketStatus) []TicketStatus {
	return append([]TicketStatus{}, statusAdjacency[current]...)
}

// CanTransition reports whether from -> to is a legal edge. Same-status moves are not edges.
func CanTransition(from, to TicketStatus) bool {
	for _, candidate := range statusAdjacency[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CheckTransition validates a requested status change. A request equal to the current
// status is a no-op and always passes.
func CheckTransition(current, next TicketStatus) error {
	if current == next {
		return nil
	}
	if !CanTransition(current, next) {
		return &TransitionError{Current: current, Attempted: next, Allowed: AllowedTransitions(current)}
	}
	return nil
}

// ClosedAtChange describes how a transition affects closed_at.
type ClosedAtChange int

const (
	ClosedAtUnchanged ClosedAtChange = iota
	ClosedAtSet
	ClosedAtCleared
)

// ClosedAtEffect returns the closed_at rule for an already validated transition.
func ClosedAtEffect(from, to TicketStatus) ClosedAtChange {
	if from == to {
		return ClosedAtUnchanged
	}
	if to == TicketStatusClosed {
		return ClosedAtSet
	}
	if from == TicketStatusClosed && to == TicketStatusOpen {
		return ClosedAtCleared
	}
	return ClosedAtUnchanged
}

// ApplyTransition moves the ticket to the requested status, maintaining closed_at.
// The ticket is left untouched when the transition is rejected.
func ApplyTransition(ticket *Ticket, to TicketStatus, now time.Time) error {
	from := ticket.Status
	if err := CheckTransition(from, to); err != nil {
		return err
	}
	switch ClosedAtEffect(from, to) {
	case ClosedAtSet:
		closedAt := now
		ticket.ClosedAt = &closedAt
	case ClosedAtCleared:
		ticket.ClosedAt = nil
	}
	ticket.Status = to
	return nil
}
