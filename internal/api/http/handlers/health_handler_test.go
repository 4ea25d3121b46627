package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReady(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     []DependencyCheck
		wantStatus int
		wantState  string
	}{
		{
			name:       "all healthy",
			checks:     []DependencyCheck{{Name: "postgres", Pinger: ok}, {Name: "redis", Pinger: ok, Optional: true}},
			wantStatus: http.StatusOK,
			wantState:  "ready",
		},
		{
			name:       "optional dependency down",
			checks:     []DependencyCheck{{Name: "postgres", Pinger: ok}, {Name: "redis", Pinger: down, Optional: true}},
			wantStatus: http.StatusOK,
			wantState:  "degraded",
		},
		{
			name:       "required dependency down",
			checks:     []DependencyCheck{{Name: "postgres", Pinger: down}, {Name: "redis", Pinger: ok, Optional: true}},
			wantStatus: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			h := NewHealthHandler("support-desk", "test", tt.checks...)
			app.Get("/ready", h.Ready)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil), -1)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantState == "" {
				return
			}
			data, _ := io.ReadAll(resp.Body)
			var body struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(data, &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantState {
				t.Fatalf("state = %q, want %q", body.Status, tt.wantState)
			}
		})
	}
}
