package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/helpline-hq/support-desk/internal/domain"
)

type stubAgents map[string]*domain.Agent

func (s stubAgents) GetByID(ctx context.Context, tenantID, id string) (*domain.Agent, error) {
	agent, ok := s[id]
	if !ok || agent.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return agent, nil
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken(&domain.Agent{ID: "a1", TenantID: "t1", Role: domain.AgentRoleLead})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatal("token already expired")
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.AgentID != "a1" || claims.TenantID != "t1" || claims.Role != domain.AgentRoleLead {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := NewTokenManager("other", 5).ParseToken(token); err == nil {
		t.Fatal("token signed with another secret accepted")
	}

	expired := NewTokenManager("secret", 1)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.GenerateToken(&domain.Agent{ID: "a1", TenantID: "t1"})
	if _, err := tm.ParseToken(old); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestMiddlewareAndRoles(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	agents := stubAgents{
		"lead":     {ID: "lead", TenantID: "t1", Role: domain.AgentRoleLead, Active: true},
		"agent":    {ID: "agent", TenantID: "t1", Role: domain.AgentRoleAgent, Active: true},
		"disabled": {ID: "disabled", TenantID: "t1", Role: domain.AgentRoleAdmin, Active: false},
	}
	mw := NewAuthMiddleware(tm, agents)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.SendStatus(fe.Code)
			}
			return c.SendStatus(http.StatusUnauthorized)
		},
	})
	app.Get("/any", mw.Handle, RequireRole(), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	app.Get("/leads", mw.Handle, RequireRole(domain.AgentRoleLead, domain.AgentRoleAdmin), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	tokenFor := func(id string) string {
		token, _, err := tm.GenerateToken(agents[id])
		if err != nil {
			t.Fatal(err)
		}
		return "Bearer " + token
	}

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "missing header", path: "/any", want: http.StatusUnauthorized},
		{name: "malformed header", path: "/any", header: "Token abc", want: http.StatusUnauthorized},
		{name: "agent ok", path: "/any", header: tokenFor("agent"), want: http.StatusOK},
		{name: "inactive agent", path: "/any", header: tokenFor("disabled"), want: http.StatusUnauthorized},
		{name: "agent forbidden on lead route", path: "/leads", header: tokenFor("agent"), want: http.StatusForbidden},
		{name: "lead allowed", path: "/leads", header: tokenFor("lead"), want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	if err != nil {
		t.Fatal(err)
	}
	if ComparePassword(hash, "s3cret") != nil {
		t.Fatal("matching password rejected")
	}
	if ComparePassword(hash, "wrong") == nil {
		t.Fatal("wrong password accepted")
	}
}
