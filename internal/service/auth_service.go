package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helpline-hq/support-desk/internal/auth"
	"github.com/helpline-hq/support-desk/internal/config"
	"github.com/helpline-hq/support-desk/internal/domain"
	"github.com/helpline-hq/support-desk/internal/repository"
	apperrors "github.com/helpline-hq/support-desk/pkg/util/errorutil"
)

// AuthService coordinates agent login.
type AuthService struct {
	agents     repository.AgentRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AgentRepo repository.AgentRepository
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		agents:     deps.AgentRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Login authenticates an agent of tenantID and returns a tenant-scoped token.
func (s *AuthService) Login(ctx context.Context, tenantID, email, password string) (*domain.Agent, string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if tenantID == "" || email == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("tenant_id, email and password are required", nil)
	}
	if !validID(tenantID) {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	agent, err := s.agents.GetByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if !agent.Active {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("agent inactive")
	}
	if err := auth.ComparePassword(agent.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(agent)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return agent, token, exp, nil
}

// CreateAgent provisions an active agent with a bcrypt-hashed password.
func (s *AuthService) CreateAgent(ctx context.Context, tenantID, name, email, password string, role domain.AgentRole) (*domain.Agent, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if !validID(tenantID) {
		return nil, apperrors.NewValidationError("invalid tenant id", map[string]any{"field": "tenant_id"})
	}
	if name == "" || email == "" {
		return nil, apperrors.NewValidationError("name and email are required", nil)
	}
	if len(password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", map[string]any{"field": "password"})
	}
	if role == "" {
		role = domain.AgentRoleAgent
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"field": "role", "value": role})
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	agent := &domain.Agent{
		TenantID:     tenantID,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	return agent, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
