package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/helpline-hq/support-desk/internal/api/dto"
	"github.com/helpline-hq/support-desk/internal/domain"
	"github.com/helpline-hq/support-desk/internal/service"
	apperrors "github.com/helpline-hq/support-desk/pkg/util/errorutil"
)

// WebhookSecretHeader carries the shared secret of the inbound email gateway.
const WebhookSecretHeader = "X-Webhook-Secret"

// IntakeHandler accepts tickets from unauthenticated channels: the public support form and
// the inbound email gateway.
type IntakeHandler struct {
	service       TicketOperations
	webhookSecret string
}

// NewIntakeHandler constructs handler. An empty secret disables the email webhook.
func NewIntakeHandler(ticketService TicketOperations, webhookSecret string) *IntakeHandler {
	return &IntakeHandler{service: ticketService, webhookSecret: webhookSecret}
}

// PublicForm POST /public/:tenant/tickets.
func (h *IntakeHandler) PublicForm(c *fiber.Ctx) error {
	tenantID, err := tenantParam(c)
	if err != nil {
		return err
	}
	var req dto.PublicTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" {
		return apperrors.NewValidationError("email is required", map[string]any{"field": "email"})
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), tenantID, "", service.TicketCreateInput{
		Subject:      req.Subject,
		Description:  req.Description,
		Priority:     req.Priority,
		Channel:      domain.ChannelForm,
		ContactName:  req.Name,
		ContactEmail: req.Email,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.PublicTicketResponse{Code: ticket.Code, Status: ticket.Status}})
}

// InboundEmail POST /webhooks/inbound-email/:tenant.
func (h *IntakeHandler) InboundEmail(c *fiber.Ctx) error {
	if !h.secretMatches(c.Get(WebhookSecretHeader)) {
		return apperrors.NewUnauthorized("invalid webhook secret")
	}
	tenantID, err := tenantParam(c)
	if err != nil {
		return err
	}
	var req dto.InboundEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.From) == "" {
		return apperrors.NewValidationError("from is required", map[string]any{"field": "from"})
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "(no subject)"
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), tenantID, "", service.TicketCreateInput{
		Subject:      subject,
		Description:  req.Text,
		Channel:      domain.ChannelEmail,
		ContactName:  req.FromName,
		ContactEmail: req.From,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.PublicTicketResponse{Code: ticket.Code, Status: ticket.Status}})
}

func (h *IntakeHandler) secretMatches(got string) bool {
	if h.webhookSecret == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) == 1
}

func tenantParam(c *fiber.Ctx) (string, error) {
	id, err := uuid.Parse(c.Params("tenant"))
	if err != nil {
		return "", apperrors.NewNotFound("tenant", map[string]any{"tenant_id": c.Params("tenant")})
	}
	return id.String(), nil
}
