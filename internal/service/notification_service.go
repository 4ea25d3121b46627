package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/helpline-hq/support-desk/internal/config"
	"github.com/helpline-hq/support-desk/internal/domain"
	"github.com/helpline-hq/support-desk/internal/email"
	"github.com/helpline-hq/support-desk/internal/events"
)

// TicketDetailReader re-reads a ticket together with its contact.
type TicketDetailReader interface {
	GetDetail(ctx context.Context, tenantID, id string) (*domain.TicketDetail, error)
}

// NotificationService sends lifecycle emails to the ticket's contact. It runs on the event
// stream, so failures never reach the request that caused them.
type NotificationService struct {
	dispatcher  events.Dispatcher
	tickets     TicketDetailReader
	mailer      email.Mailer
	logger      *zap.Logger
	feedbackURL string
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, tickets TicketDetailReader, mailer email.Mailer, logger *zap.Logger, cfg config.EmailConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:  dispatcher,
		tickets:     tickets,
		mailer:      mailer,
		logger:      logger,
		feedbackURL: cfg.FeedbackSurveyURL,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.mailer == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.handleTicketUpdated)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	return n.sendLifecycleEmails(ctx, event, []string{email.TemplateCreation})
}

func (n *NotificationService) handleTicketUpdated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketUpdatedPayload)
	if !ok {
		n.logger.Warn("unexpected ticket_updated payload", zap.String("ticket_id", event.TicketID))
		return nil
	}
	return n.sendLifecycleEmails(ctx, event, templatesForUpdate(payload))
}

// templatesForUpdate maps an applied update to the emails it triggers, in send order.
func templatesForUpdate(payload events.TicketUpdatedPayload) []string {
	var templates []string
	if payload.AssigneeChanged {
		templates = append(templates, email.TemplateInProgress)
	}
	if payload.StatusChanged() {
		switch payload.NewStatus {
		case domain.TicketStatusResolved:
			templates = append(templates, email.TemplateResolution)
		case domain.TicketStatusClosed:
			templates = append(templates, email.TemplateClosure)
		}
	}
	return templates
}

func (n *NotificationService) sendLifecycleEmails(ctx context.Context, event events.Event, templates []string) error {
	if len(templates) == 0 {
		return nil
	}
	detail, err := n.tickets.GetDetail(ctx, event.TenantID, event.TicketID)
	if err != nil {
		return fmt.Errorf("load ticket %s for email: %w", event.TicketID, err)
	}
	if detail.ContactEmail == nil || *detail.ContactEmail == "" {
		n.logger.Debug("ticket has no contact email, skipping lifecycle email", zap.String("ticket_id", event.TicketID))
		return nil
	}

	data := email.TemplateData{
		ContactName: contactName(detail),
		Code:        detail.Code,
		Subject:     detail.Subject,
		Status:      string(detail.Status),
	}
	if detail.ResolutionDueAt != nil {
		data.ResolutionDueAt = detail.ResolutionDueAt.UTC().Format(time.RFC1123)
	}

	for _, name := range templates {
		if name == email.TemplateClosure {
			data.FeedbackURL = n.feedbackLink(detail.Code)
		}
		if err := n.mailer.SendTemplate(ctx, *detail.ContactEmail, name, data); err != nil {
			n.logger.Warn("lifecycle email failed",
				zap.String("tenant_id", event.TenantID),
				zap.String("ticket_id", event.TicketID),
				zap.String("template", name),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (n *NotificationService) feedbackLink(code string) string {
	if strings.TrimSpace(n.feedbackURL) == "" {
		return ""
	}
	u, err := url.Parse(n.feedbackURL)
	if err != nil {
		return n.feedbackURL
	}
	q := u.Query()
	q.Set("ticket", code)
	u.RawQuery = q.Encode()
	return u.String()
}

func contactName(detail *domain.TicketDetail) string {
	if detail.ContactName != nil && *detail.ContactName != "" {
		return *detail.ContactName
	}
	return "there"
}
