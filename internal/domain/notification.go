package domain

import "time"

// Notification types.
const (
	NotificationTypeAssignment = "assignment"
	NotificationTypeWorkflow   = "workflow"
)

// Notification is an in-app message for an agent.
type Notification struct {
	ID          string
	TenantID    string
	UserID      string
	Title       string
	Message     string
	Type        string
	ReferenceID *string
	IsRead      bool
	CreatedAt   time.Time
}
