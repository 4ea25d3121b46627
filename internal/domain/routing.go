package domain

import "time"

// Team represents a tenant support group tickets can be routed to.
type Team struct {
	ID        string
	TenantID  string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AssignmentRule routes tickets whose text contains Keyword to a user.
type AssignmentRule struct {
	ID             string
	TenantID       string
	Keyword        string
	AssignedUserID string
	IsActive       bool
	CreatedAt      time.Time
}

// SLAPolicy holds per-tenant response targets for one priority.
type SLAPolicy struct {
	TenantID              string
	Priority              TicketPriority
	ResponseTimeMinutes   int
	ResolutionTimeMinutes int
}
