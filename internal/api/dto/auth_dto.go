package dto

import (
	"time"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// LoginRequest payload for agent login.
type LoginRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AgentResponse describes the logged-in agent.
type AgentResponse struct {
	ID       string           `json:"id"`
	TenantID string           `json:"tenant_id"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Role     domain.AgentRole `json:"role"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Agent     AgentResponse `json:"agent"`
}
