package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/helpline-hq/support-desk/internal/api/dto"
	"github.com/helpline-hq/support-desk/internal/domain"
	apperrors "github.com/helpline-hq/support-desk/pkg/util/errorutil"
)

// Authenticator issues tokens for agent credentials.
type Authenticator interface {
	Login(ctx context.Context, tenantID, email, password string) (*domain.Agent, string, time.Time, error)
}

// AuthHandler serves agent login.
type AuthHandler struct {
	auth Authenticator
}

// NewAuthHandler constructs handler.
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	agent, token, exp, err := h.auth.Login(c.UserContext(), req.TenantID, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		Token:     token,
		ExpiresAt: exp,
		Agent: dto.AgentResponse{
			ID:       agent.ID,
			TenantID: agent.TenantID,
			Name:     agent.Name,
			Email:    agent.Email,
			Role:     agent.Role,
		},
	}})
}
