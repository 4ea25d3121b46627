package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/helpline-hq/support-desk/internal/api/dto"
	"github.com/helpline-hq/support-desk/internal/auth"
	"github.com/helpline-hq/support-desk/internal/domain"
	"github.com/helpline-hq/support-desk/internal/service"
	apperrors "github.com/helpline-hq/support-desk/pkg/util/errorutil"
)

// TicketOperations is the ticket service surface used by the HTTP layer.
type TicketOperations interface {
	CreateTicket(ctx context.Context, tenantID, actorID string, input service.TicketCreateInput) (*domain.Ticket, error)
	UpdateTicket(ctx context.Context, tenantID, actorID, ticketID string, changes map[string]any) (*domain.Ticket, error)
	BulkUpdateTickets(ctx context.Context, tenantID, actorID string, ids []string, changes map[string]any) (*service.BulkUpdateResult, error)
	GetAllowedTransitions(ctx context.Context, tenantID, ticketID string) (*service.TransitionOptions, error)
	GetTicket(ctx context.Context, tenantID, ticketID string) (*domain.TicketDetail, error)
	ListTickets(ctx context.Context, tenantID string, filter service.TicketListFilter) ([]domain.Ticket, error)
	ListAudit(ctx context.Context, tenantID, ticketID string) ([]domain.AuditLogEntry, error)
}

// TicketsHandler manages agent ticket endpoints.
type TicketsHandler struct {
	service TicketOperations
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService TicketOperations) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), principal.TenantID, principal.AgentID(), service.TicketCreateInput{
		Subject:      req.Subject,
		Description:  req.Description,
		Priority:     req.Priority,
		Channel:      req.Channel,
		ContactID:    req.ContactID,
		AccountID:    req.AccountID,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketResponseFrom(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), principal.TenantID, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.TicketResponseFrom(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), principal.TenantID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		TicketResponse: dto.TicketResponseFrom(&detail.Ticket),
		ContactName:    detail.ContactName,
		ContactEmail:   detail.ContactEmail,
	}})
}

// UpdateTicket PATCH /tickets/:id. The body is a partial field map.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	changes := map[string]any{}
	if err := c.BodyParser(&changes); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), principal.TenantID, principal.AgentID(), c.Params("id"), changes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketResponseFrom(ticket)})
}

// BulkUpdate POST /tickets/bulk-update.
func (h *TicketsHandler) BulkUpdate(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.BulkUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.BulkUpdateTickets(c.UserContext(), principal.TenantID, principal.AgentID(), req.TicketIDs, req.Updates)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// Transitions GET /tickets/:id/transitions.
func (h *TicketsHandler) Transitions(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	options, err := h.service.GetAllowedTransitions(c.UserContext(), principal.TenantID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TransitionsResponse{
		TicketID:           options.TicketID,
		CurrentStatus:      options.CurrentStatus,
		AllowedTransitions: options.AllowedTransitions,
	}})
}

// Audit GET /tickets/:id/audit.
func (h *TicketsHandler) Audit(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ListAudit(c.UserContext(), principal.TenantID, c.Params("id"))
	if err != nil {
		return err
	}
	resp := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.AuditEntryResponse{
			ID:        entry.ID,
			Action:    entry.Action,
			Details:   entry.Details,
			ActorID:   entry.ActorID,
			CreatedAt: entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Agent == nil {
		return nil, apperrors.NewUnauthorized("agent required")
	}
	return principal, nil
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	var err error
	if filter.AssignedTeamID, err = parseUUIDQuery(c, "assigned_team_id"); err != nil {
		return filter, err
	}
	if filter.AssignedUserID, err = parseUUIDQuery(c, "assigned_user_id"); err != nil {
		return filter, err
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	if filter.CreatedFrom, err = parseTimeQuery(c, "created_from"); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = parseTimeQuery(c, "created_to"); err != nil {
		return filter, err
	}

	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func parseUUIDQuery(c *fiber.Ctx, key string) (*string, error) {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil, nil
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid query parameter", map[string]any{key: "must be a UUID"})
	}
	s := id.String()
	return &s, nil
}

func parseTimeQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid query parameter", map[string]any{key: "must be an RFC3339 timestamp"})
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
