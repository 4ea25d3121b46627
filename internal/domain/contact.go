package domain

import "time"

// Contact is the customer who raised a ticket.
type Contact struct {
	ID        string
	TenantID  string
	Name      string
	Email     *string
	AccountID *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
