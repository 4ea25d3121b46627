package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/helpline-hq/support-desk/internal/domain"
	"github.com/helpline-hq/support-desk/internal/email"
	"github.com/helpline-hq/support-desk/internal/repository"
)

const (
	defaultNotificationTitle = "Workflow triggered"
	defaultEmailTemplate     = email.TemplateCreation
)

// WorkflowSource lists the workflows to evaluate for a trigger.
type WorkflowSource interface {
	ListActiveByTrigger(ctx context.Context, tenantID, triggerEvent string) ([]domain.Workflow, error)
}

// TicketWriter persists update_field actions.
type TicketWriter interface {
	UpdateFields(ctx context.Context, tenantID, id string, fields map[string]any) (*domain.Ticket, error)
}

// NotificationWriter persists send_notification actions.
type NotificationWriter interface {
	Create(ctx context.Context, notification *domain.Notification) error
}

// Engine evaluates tenant workflows against entity snapshots.
type Engine struct {
	workflows     WorkflowSource
	tickets       TicketWriter
	notifications NotificationWriter
	mailer        email.Mailer
	logger        *zap.Logger
}

// NewEngine builds an engine. mailer may be nil, in which case send_email only logs.
func NewEngine(workflows WorkflowSource, tickets TicketWriter, notifications NotificationWriter, mailer email.Mailer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		workflows:     workflows,
		tickets:       tickets,
		notifications: notifications,
		mailer:        mailer,
		logger:        logger,
	}
}

// Evaluate runs every active workflow for trigger whose conditions match the snapshot.
// It never fails: lookup and action errors are logged.
func (e *Engine) Evaluate(ctx context.Context, entityType string, entity map[string]any, trigger string) {
	tenantID := stringField(entity, "tenant_id")
	if tenantID == "" {
		e.logger.Debug("workflow evaluation skipped, snapshot has no tenant", zap.String("trigger", trigger))
		return
	}

	workflows, err := e.workflows.ListActiveByTrigger(ctx, tenantID, trigger)
	if err != nil {
		e.logger.Error("load workflows failed",
			zap.String("tenant_id", tenantID),
			zap.String("trigger", trigger),
			zap.Error(err),
		)
		return
	}

	for _, wf := range workflows {
		// Conditions always see the pre-action snapshot.
		if !CheckConditions(wf.Conditions, entity) {
			for _, cond := range wf.Conditions {
				if cond.Operator == domain.OperatorUnknown {
					e.logger.Warn("workflow condition uses unsupported operator",
						zap.String("workflow_id", wf.ID),
						zap.String("operator", cond.RawOperator),
					)
				}
			}
			continue
		}
		e.executeActions(ctx, wf, entityType, entity)
	}
}

func (e *Engine) executeActions(ctx context.Context, wf domain.Workflow, entityType string, entity map[string]any) {
	for _, action := range wf.Actions {
		if err := e.executeAction(ctx, wf, action, entityType, entity); err != nil {
			e.logger.Warn("workflow action failed",
				zap.String("workflow_id", wf.ID),
				zap.String("action", action.RawType),
				zap.String("entity_id", stringField(entity, "id")),
				zap.Error(err),
			)
		}
	}
}

func (e *Engine) executeAction(ctx context.Context, wf domain.Workflow, action domain.Action, entityType string, entity map[string]any) error {
	switch action.Kind {
	case domain.ActionUpdateField:
		return e.updateField(ctx, action, entityType, entity)
	case domain.ActionSendNotification:
		return e.sendNotification(ctx, wf, action, entity)
	case domain.ActionSendEmail:
		return e.sendEmail(ctx, wf, action, entity)
	default:
		e.logger.Warn("workflow action type not supported",
			zap.String("workflow_id", wf.ID),
			zap.String("action", action.RawType),
		)
		return nil
	}
}

func (e *Engine) updateField(ctx context.Context, action domain.Action, entityType string, entity map[string]any) error {
	id := stringField(entity, "id")
	if id == "" {
		return fmt.Errorf("update_field requires an entity id")
	}
	if entityType != domain.EntityTypeTicket {
		return fmt.Errorf("update_field not supported for %s", entityType)
	}
	if !repository.IsUpdatableTicketField(action.Field) {
		return fmt.Errorf("%w: %s", repository.ErrUnknownTicketField, action.Field)
	}
	// closed_at follows status and is only written by the transition below.
	if action.Field == "closed_at" {
		return fmt.Errorf("update_field cannot set closed_at directly")
	}

	fields := map[string]any{action.Field: action.Value}
	if action.Field == "status" {
		target := domain.TicketStatus(fmt.Sprint(action.Value))
		current := domain.TicketStatus(stringField(entity, "status"))
		if !target.Valid() {
			return fmt.Errorf("invalid status %q", target)
		}
		if err := domain.CheckTransition(current, target); err != nil {
			return err
		}
		fields["status"] = target
		switch domain.ClosedAtEffect(current, target) {
		case domain.ClosedAtSet:
			fields["closed_at"] = nowFunc()
		case domain.ClosedAtCleared:
			fields["closed_at"] = nil
		}
	}

	_, err := e.tickets.UpdateFields(ctx, stringField(entity, "tenant_id"), id, fields)
	return err
}

func (e *Engine) sendNotification(ctx context.Context, wf domain.Workflow, action domain.Action, entity map[string]any) error {
	userID := stringField(entity, "assigned_user_id")
	if userID == "" && action.TargetUserID != nil {
		userID = *action.TargetUserID
	}
	if userID == "" {
		return nil
	}

	title := defaultNotificationTitle
	if action.Subject != nil && *action.Subject != "" {
		title = *action.Subject
	}
	message := fmt.Sprintf("Workflow %q matched %s", wf.Name, describeEntity(entity))
	if action.Message != nil && *action.Message != "" {
		message = *action.Message
	}

	var reference *string
	if id := stringField(entity, "id"); id != "" {
		reference = &id
	}
	return e.notifications.Create(ctx, &domain.Notification{
		TenantID:    stringField(entity, "tenant_id"),
		UserID:      userID,
		Title:       title,
		Message:     message,
		Type:        domain.NotificationTypeWorkflow,
		ReferenceID: reference,
	})
}

func (e *Engine) sendEmail(ctx context.Context, wf domain.Workflow, action domain.Action, entity map[string]any) error {
	to := ""
	if action.To != nil {
		to = *action.To
	}
	template := defaultEmailTemplate
	if action.Template != nil && *action.Template != "" {
		template = *action.Template
	}
	if e.mailer == nil || to == "" {
		e.logger.Info("workflow email intent",
			zap.String("workflow_id", wf.ID),
			zap.String("to", to),
			zap.String("template", template),
			zap.String("entity_id", stringField(entity, "id")),
		)
		return nil
	}
	return e.mailer.SendTemplate(ctx, to, template, email.TemplateData{
		Code:    stringField(entity, "code"),
		Subject: stringField(entity, "subject"),
		Status:  stringField(entity, "status"),
	})
}

func describeEntity(entity map[string]any) string {
	if code := stringField(entity, "code"); code != "" {
		return code
	}
	return stringField(entity, "id")
}

func stringField(entity map[string]any, key string) string {
	v, ok := entity[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := normalize(v).(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
