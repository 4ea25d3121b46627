package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew      TicketStatus = "new"
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
)

// Valid reports whether the status is a known lifecycle state.
func (s TicketStatus) Valid() bool {
	_, ok := statusAdjacency[s]
	return ok
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether the priority is one of the known levels.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket channels.
const (
	ChannelWeb   = "web"
	ChannelEmail = "email"
	ChannelForm  = "form"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                 string
	TenantID           string
	Code               string
	Subject            string
	Description        string
	Priority           TicketPriority
	Status             TicketStatus
	Channel            string
	ContactID          *string
	AccountID          *string
	AssignedTeamID     *string
	AssignedUserID     *string
	FirstResponseDueAt *time.Time
	ResolutionDueAt    *time.Time
	ClosedAt           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TicketDetail is a ticket joined with its requester contact.
type TicketDetail struct {
	Ticket
	ContactName  *string
	ContactEmail *string
}

// Snapshot flattens the ticket into the field map workflow conditions are evaluated against.
func (t *Ticket) Snapshot() map[string]any {
	return map[string]any{
		"id":                    t.ID,
		"tenant_id":             t.TenantID,
		"code":                  t.Code,
		"subject":               t.Subject,
		"description":           t.Description,
		"priority":              string(t.Priority),
		"status":                string(t.Status),
		"channel":               t.Channel,
		"contact_id":            derefString(t.ContactID),
		"account_id":            derefString(t.AccountID),
		"assigned_team_id":      derefString(t.AssignedTeamID),
		"assigned_user_id":      derefString(t.AssignedUserID),
		"first_response_due_at": derefTime(t.FirstResponseDueAt),
		"resolution_due_at":     derefTime(t.ResolutionDueAt),
		"closed_at":             derefTime(t.ClosedAt),
		"created_at":            t.CreatedAt,
		"updated_at":            t.UpdatedAt,
	}
}

func derefString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}
