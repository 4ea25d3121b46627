package dto

import (
	"time"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// CreateTicketRequest payload for agent-created tickets.
type CreateTicketRequest struct {
	Subject      string                `json:"subject"`
	Description  string                `json:"description"`
	Priority     domain.TicketPriority `json:"priority"`
	Channel      string                `json:"channel"`
	ContactID    *string               `json:"contact_id"`
	AccountID    *string               `json:"account_id"`
	ContactName  string                `json:"contact_name"`
	ContactEmail string                `json:"contact_email"`
}

// PublicTicketRequest payload for the public support form.
type PublicTicketRequest struct {
	Name        string                `json:"name"`
	Email       string                `json:"email"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// InboundEmailRequest is the normalized message posted by the mail gateway.
type InboundEmailRequest struct {
	From     string `json:"from"`
	FromName string `json:"from_name"`
	Subject  string `json:"subject"`
	Text     string `json:"text"`
}

// BulkUpdateRequest applies Updates to every ticket in TicketIDs.
type BulkUpdateRequest struct {
	TicketIDs []string       `json:"ticket_ids"`
	Updates   map[string]any `json:"updates"`
}

// TicketResponse represents a ticket.
type TicketResponse struct {
	ID                 string                `json:"id"`
	Code               string                `json:"code"`
	Subject            string                `json:"subject"`
	Description        string                `json:"description"`
	Priority           domain.TicketPriority `json:"priority"`
	Status             domain.TicketStatus   `json:"status"`
	Channel            string                `json:"channel"`
	ContactID          *string               `json:"contact_id"`
	AccountID          *string               `json:"account_id"`
	AssignedTeamID     *string               `json:"assigned_team_id"`
	AssignedUserID     *string               `json:"assigned_user_id"`
	FirstResponseDueAt *time.Time            `json:"first_response_due_at"`
	ResolutionDueAt    *time.Time            `json:"resolution_due_at"`
	ClosedAt           *time.Time            `json:"closed_at"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// TicketDetailResponse adds the requester contact.
type TicketDetailResponse struct {
	TicketResponse
	ContactName  *string `json:"contact_name"`
	ContactEmail *string `json:"contact_email"`
}

// PublicTicketResponse is what anonymous requesters get back.
type PublicTicketResponse struct {
	Code   string              `json:"code"`
	Status domain.TicketStatus `json:"status"`
}

// TransitionsResponse lists where a ticket can move next.
type TransitionsResponse struct {
	TicketID           string                `json:"ticket_id"`
	CurrentStatus      domain.TicketStatus   `json:"current_status"`
	AllowedTransitions []domain.TicketStatus `json:"allowed_transitions"`
}

// AuditEntryResponse is one audit trail row.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	ActorID   *string        `json:"actor_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// TicketResponseFrom maps a domain ticket.
func TicketResponseFrom(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                 t.ID,
		Code:               t.Code,
		Subject:            t.Subject,
		Description:        t.Description,
		Priority:           t.Priority,
		Status:             t.Status,
		Channel:            t.Channel,
		ContactID:          t.ContactID,
		AccountID:          t.AccountID,
		AssignedTeamID:     t.AssignedTeamID,
		AssignedUserID:     t.AssignedUserID,
		FirstResponseDueAt: t.FirstResponseDueAt,
		ResolutionDueAt:    t.ResolutionDueAt,
		ClosedAt:           t.ClosedAt,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}
