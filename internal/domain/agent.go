package domain

import "time"

// AgentRole enumerates internal operator roles.
type AgentRole string

const (
	AgentRoleAgent AgentRole = "agent"
	AgentRoleLead  AgentRole = "lead"
	AgentRoleAdmin AgentRole = "admin"
)

// Valid reports whether r is a known role.
func (r AgentRole) Valid() bool {
	switch r {
	case AgentRoleAgent, AgentRoleLead, AgentRoleAdmin:
		return true
	}
	return false
}

// Agent models a tenant support agent or administrator.
type Agent struct {
	ID           string
	TenantID     string
	Name         string
	Email        string
	PasswordHash string
	Role         AgentRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
