package events

import (
	"time"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketUpdated      EventType = "ticket_updated"
	EventTicketsBulkUpdated EventType = "tickets_bulk_updated"
)

// AllEventTypes lists every event the services publish.
var AllEventTypes = []EventType{EventTicketCreated, EventTicketUpdated, EventTicketsBulkUpdated}

// Event represents a domain event emitted after a ticket write committed.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TenantID  string    `json:"tenant_id"`
	TicketID  string    `json:"ticket_id,omitempty"`
	ActorID   *string   `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Key returns the partition key for the event.
func (e Event) Key() string {
	if e.TicketID != "" {
		return e.TicketID
	}
	return e.TenantID
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Code           string                `json:"code"`
	Subject        string                `json:"subject"`
	Priority       domain.TicketPriority `json:"priority"`
	Channel        string                `json:"channel"`
	ContactID      *string               `json:"contact_id,omitempty"`
	AssignedTeamID *string               `json:"assigned_team_id,omitempty"`
	AssignedUserID *string               `json:"assigned_user_id,omitempty"`
}

// TicketUpdatedPayload carries the applied changes. OldStatus and NewStatus differ only
// when the update moved the ticket through the lifecycle.
type TicketUpdatedPayload struct {
	Changes         map[string]any      `json:"changes"`
	OldStatus       domain.TicketStatus `json:"old_status"`
	NewStatus       domain.TicketStatus `json:"new_status"`
	AssigneeChanged bool                `json:"assignee_changed"`
}

// StatusChanged reports whether the update transitioned the ticket.
func (p TicketUpdatedPayload) StatusChanged() bool {
	return p.OldStatus != p.NewStatus
}

// TicketsBulkUpdatedPayload payload.
type TicketsBulkUpdatedPayload struct {
	TicketIDs []string       `json:"ticket_ids"`
	Changes   map[string]any `json:"changes"`
}
