package domain

import "time"

// Audit entity types.
const (
	EntityTypeTicket = "ticket"
)

// Audit actions.
const (
	AuditActionCreated     = "created"
	AuditActionUpdated     = "updated"
	AuditActionBulkUpdated = "bulk_updated"
)

// AuditLogEntry is an immutable audit trail entry.
type AuditLogEntry struct {
	ID         string
	TenantID   string
	EntityType string
	EntityID   string
	Action     string
	Details    map[string]any
	ActorID    *string
	CreatedAt  time.Time
}
