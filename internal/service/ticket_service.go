package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/helpline-hq/support-desk/internal/domain"
	"github.com/helpline-hq/support-desk/internal/events"
	"github.com/helpline-hq/support-desk/internal/repository"
	"github.com/helpline-hq/support-desk/internal/worker"
	apperrors "github.com/helpline-hq/support-desk/pkg/util/errorutil"
)

// DefaultBulkMaxIDs caps the ids accepted by one bulk update.
const DefaultBulkMaxIDs = 100

// WorkflowEvaluator runs tenant workflows against a post-write snapshot.
type WorkflowEvaluator interface {
	Evaluate(ctx context.Context, entityType string, entity map[string]any, trigger string)
}

// TaskRunner starts fire-and-forget work.
type TaskRunner interface {
	Go(name string, task worker.Task, fields ...zap.Field)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	store      repository.Store
	sla        *SLAResolver
	router     *AssignmentRouter
	codes      CodeGenerator
	workflows  WorkflowEvaluator
	runner     TaskRunner
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bulkMaxIDs int
	now        func() time.Time
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	Store      repository.Store
	SLA        *SLAResolver
	Router     *AssignmentRouter
	Codes      CodeGenerator
	Workflows  WorkflowEvaluator
	Runner     TaskRunner
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	BulkMaxIDs int
	// Clock defaults to time.Now in UTC.
	Clock func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject      string
	Description  string
	Priority     domain.TicketPriority
	Channel      string
	ContactID    *string
	AccountID    *string
	ContactName  string
	ContactEmail string
}

// TicketListFilter describes agent listing filters.
type TicketListFilter struct {
	AssignedTeamID *string
	AssignedUserID *string
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	SearchTerm     *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

// TransitionOptions lists where a ticket can move next.
type TransitionOptions struct {
	TicketID           string
	CurrentStatus      domain.TicketStatus
	AllowedTransitions []domain.TicketStatus
}

// BulkItemError explains why one id of a bulk update was not applied.
type BulkItemError struct {
	ID                 string                `json:"id"`
	Error              string                `json:"error"`
	AllowedTransitions []domain.TicketStatus `json:"allowed_transitions,omitempty"`
}

// BulkUpdateResult is a partial-success report.
type BulkUpdateResult struct {
	Updated []string        `json:"updated"`
	Errors  []BulkItemError `json:"errors"`
}

// Bulk item error messages.
const (
	BulkErrorNotFound          = "Not found"
	BulkErrorInvalidTransition = "Invalid status transition"
)

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	bulkMax := deps.BulkMaxIDs
	if bulkMax <= 0 {
		bulkMax = DefaultBulkMaxIDs
	}
	return &TicketService{
		store:      deps.Store,
		sla:        deps.SLA,
		router:     deps.Router,
		codes:      deps.Codes,
		workflows:  deps.Workflows,
		runner:     deps.Runner,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bulkMaxIDs: bulkMax,
		now:        clock,
	}
}

// CreateTicket opens a ticket with SLA deadlines and routing applied.
func (s *TicketService) CreateTicket(ctx context.Context, tenantID, actorID string, input TicketCreateInput) (*domain.Ticket, error) {
	input, err := normalizeCreateInput(input)
	if err != nil {
		return nil, err
	}

	now := s.now()
	deadlines, err := s.sla.Resolve(ctx, tenantID, input.Priority, now)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("resolve sla: %w", err))
	}
	decision, err := s.router.Route(ctx, tenantID, input.Subject, input.Description)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("route ticket: %w", err))
	}

	ticket := &domain.Ticket{
		TenantID:           tenantID,
		Code:               s.codes.Next(ctx, tenantID),
		Subject:            input.Subject,
		Description:        input.Description,
		Priority:           input.Priority,
		Status:             domain.TicketStatusNew,
		Channel:            input.Channel,
		ContactID:          input.ContactID,
		AccountID:          input.AccountID,
		AssignedTeamID:     decision.AssignedTeamID,
		AssignedUserID:     decision.AssignedUserID,
		FirstResponseDueAt: &deadlines.FirstResponseDueAt,
		ResolutionDueAt:    &deadlines.ResolutionDueAt,
		CreatedAt:          now,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if ticket.ContactID == nil && input.ContactEmail != "" {
			contact, err := resolveContact(ctx, repos.Contacts, tenantID, input.ContactName, input.ContactEmail)
			if err != nil {
				return fmt.Errorf("resolve contact: %w", err)
			}
			ticket.ContactID = &contact.ID
			if ticket.AccountID == nil {
				ticket.AccountID = contact.AccountID
			}
		}
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		if err := repos.AuditLogs.Append(ctx, &domain.AuditLogEntry{
			TenantID:   tenantID,
			EntityType: domain.EntityTypeTicket,
			EntityID:   ticket.ID,
			Action:     domain.AuditActionCreated,
			Details: map[string]any{
				"code":             ticket.Code,
				"priority":         ticket.Priority,
				"status":           ticket.Status,
				"channel":          ticket.Channel,
				"assigned_team_id": ticket.AssignedTeamID,
				"assigned_user_id": ticket.AssignedUserID,
			},
			ActorID: optionalActor(actorID),
		}); err != nil {
			return fmt.Errorf("audit ticket create: %w", err)
		}
		if ticket.AssignedUserID != nil {
			if err := repos.Notifications.Create(ctx, assignmentNotification(ticket)); err != nil {
				return fmt.Errorf("notify assignee: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.afterWrite(ticket, domain.TriggerTicketCreated, events.Event{
		Type:     events.EventTicketCreated,
		TenantID: tenantID,
		TicketID: ticket.ID,
		ActorID:  optionalActor(actorID),
		Payload: events.TicketCreatedPayload{
			Code:           ticket.Code,
			Subject:        ticket.Subject,
			Priority:       ticket.Priority,
			Channel:        ticket.Channel,
			ContactID:      ticket.ContactID,
			AssignedTeamID: ticket.AssignedTeamID,
			AssignedUserID: ticket.AssignedUserID,
		},
	})
	return ticket, nil
}

// UpdateTicket applies allowed field changes to one ticket. The row update, its audit entry
// and an assignment notification commit together; an illegal status change rejects the
// whole request.
func (s *TicketService) UpdateTicket(ctx context.Context, tenantID, actorID, ticketID string, changes map[string]any) (*domain.Ticket, error) {
	if !validID(ticketID) {
		return nil, ticketNotFound(ticketID)
	}
	fields, err := filterTicketChanges(changes, singleUpdateFields)
	if err != nil {
		return nil, fieldValidationError(err)
	}
	if len(fields) == 0 {
		return nil, apperrors.NewValidationError("no updatable fields provided", map[string]any{"allowed_fields": allowedFieldNames(singleUpdateFields)})
	}

	var (
		updated         *domain.Ticket
		oldStatus       domain.TicketStatus
		assigneeChanged bool
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		current, err := repos.Tickets.GetByID(ctx, tenantID, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ticketNotFound(ticketID)
			}
			return err
		}
		oldStatus = current.Status

		if err := s.applyStatusChange(current.Status, fields); err != nil {
			return err
		}
		if value, ok := fields["assigned_user_id"]; ok {
			next, _ := value.(string)
			assigneeChanged = next != "" && !sameStringPtr(current.AssignedUserID, &next)
		}

		updated, err = repos.Tickets.UpdateFields(ctx, tenantID, ticketID, fields)
		if err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		if err := repos.AuditLogs.Append(ctx, &domain.AuditLogEntry{
			TenantID:   tenantID,
			EntityType: domain.EntityTypeTicket,
			EntityID:   ticketID,
			Action:     domain.AuditActionUpdated,
			Details:    fields,
			ActorID:    optionalActor(actorID),
		}); err != nil {
			return fmt.Errorf("audit ticket update: %w", err)
		}
		if assigneeChanged {
			if err := repos.Notifications.Create(ctx, assignmentNotification(updated)); err != nil {
				return fmt.Errorf("notify assignee: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.afterWrite(updated, domain.TriggerTicketUpdated, events.Event{
		Type:     events.EventTicketUpdated,
		TenantID: tenantID,
		TicketID: updated.ID,
		ActorID:  optionalActor(actorID),
		Payload: events.TicketUpdatedPayload{
			Changes:         fields,
			OldStatus:       oldStatus,
			NewStatus:       updated.Status,
			AssigneeChanged: assigneeChanged,
		},
	})
	return updated, nil
}

// BulkUpdateTickets applies one change set to many tickets. Unknown ids and tickets whose
// current status cannot reach the requested one are reported per item; the rest are
// persisted together with one batched audit insert.
func (s *TicketService) BulkUpdateTickets(ctx context.Context, tenantID, actorID string, ids []string, changes map[string]any) (*BulkUpdateResult, error) {
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("ticket_ids must not be empty", nil)
	}
	if len(ids) > s.bulkMaxIDs {
		return nil, apperrors.NewValidationError("too many ticket ids", map[string]any{"max": s.bulkMaxIDs, "received": len(ids)})
	}
	fields, err := filterTicketChanges(changes, bulkUpdateFields)
	if err != nil {
		return nil, fieldValidationError(err)
	}
	if len(fields) == 0 {
		return nil, apperrors.NewValidationError("no updatable fields provided", map[string]any{"allowed_fields": allowedFieldNames(bulkUpdateFields)})
	}

	ids = uniqueIDs(ids)
	result := &BulkUpdateResult{Updated: []string{}, Errors: []BulkItemError{}}
	lookup := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			lookup = append(lookup, id)
		}
	}

	var updated []*domain.Ticket
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		// reset in case the store retries fn
		result.Updated, result.Errors, updated = []string{}, []BulkItemError{}, nil

		statuses, err := repos.Tickets.ListStatuses(ctx, tenantID, lookup)
		if err != nil {
			return fmt.Errorf("load ticket statuses: %w", err)
		}

		entries := make([]*domain.AuditLogEntry, 0, len(ids))
		for _, id := range ids {
			current, ok := statuses[id]
			if !ok {
				result.Errors = append(result.Errors, BulkItemError{ID: id, Error: BulkErrorNotFound})
				continue
			}
			ticketFields := copyFields(fields)
			if err := s.applyStatusChange(current, ticketFields); err != nil {
				var transitionErr *domain.TransitionError
				if errors.As(err, &transitionErr) {
					result.Errors = append(result.Errors, BulkItemError{
						ID:                 id,
						Error:              BulkErrorInvalidTransition,
						AllowedTransitions: transitionErr.Allowed,
					})
					continue
				}
				return err
			}

			ticket, err := repos.Tickets.UpdateFields(ctx, tenantID, id, ticketFields)
			if err != nil {
				return fmt.Errorf("update ticket %s: %w", id, err)
			}
			updated = append(updated, ticket)
			result.Updated = append(result.Updated, id)
			entries = append(entries, &domain.AuditLogEntry{
				TenantID:   tenantID,
				EntityType: domain.EntityTypeTicket,
				EntityID:   id,
				Action:     domain.AuditActionBulkUpdated,
				Details:    ticketFields,
				ActorID:    optionalActor(actorID),
			})
		}
		if err := repos.AuditLogs.AppendBatch(ctx, entries); err != nil {
			return fmt.Errorf("audit bulk update: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	for _, ticket := range updated {
		s.evaluateWorkflows(ticket, domain.TriggerTicketUpdated)
	}
	if len(result.Updated) > 0 {
		s.publish(events.Event{
			Type:     events.EventTicketsBulkUpdated,
			TenantID: tenantID,
			ActorID:  optionalActor(actorID),
			Payload: events.TicketsBulkUpdatedPayload{
				TicketIDs: result.Updated,
				Changes:   fields,
			},
		})
	}
	return result, nil
}

// GetAllowedTransitions reports the ticket's status and where it may move next.
func (s *TicketService) GetAllowedTransitions(ctx context.Context, tenantID, ticketID string) (*TransitionOptions, error) {
	ticket, err := s.getTicket(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	return &TransitionOptions{
		TicketID:           ticket.ID,
		CurrentStatus:      ticket.Status,
		AllowedTransitions: domain.AllowedTransitions(ticket.Status),
	}, nil
}

// GetTicket returns the ticket joined with its contact.
func (s *TicketService) GetTicket(ctx context.Context, tenantID, ticketID string) (*domain.TicketDetail, error) {
	if !validID(ticketID) {
		return nil, ticketNotFound(ticketID)
	}
	detail, err := s.store.Repositories().Tickets.GetDetail(ctx, tenantID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ticketNotFound(ticketID)
		}
		return nil, apperrors.MapError(err)
	}
	return detail, nil
}

// ListTickets returns the tenant's tickets matching filter, most recently updated first.
func (s *TicketService) ListTickets(ctx context.Context, tenantID string, filter TicketListFilter) ([]domain.Ticket, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	tickets, err := s.store.Repositories().Tickets.List(ctx, repository.TicketFilter{
		TenantID:       tenantID,
		AssignedTeamID: filter.AssignedTeamID,
		AssignedUserID: filter.AssignedUserID,
		Statuses:       filter.Statuses,
		Priorities:     filter.Priorities,
		SearchTerm:     filter.SearchTerm,
		CreatedFrom:    filter.CreatedFrom,
		CreatedTo:      filter.CreatedTo,
		Limit:          limit,
		Offset:         filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListAudit returns the ticket's audit trail, oldest first.
func (s *TicketService) ListAudit(ctx context.Context, tenantID, ticketID string) ([]domain.AuditLogEntry, error) {
	if _, err := s.getTicket(ctx, tenantID, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.store.Repositories().AuditLogs.ListByEntity(ctx, tenantID, domain.EntityTypeTicket, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) getTicket(ctx context.Context, tenantID, ticketID string) (*domain.Ticket, error) {
	if !validID(ticketID) {
		return nil, ticketNotFound(ticketID)
	}
	ticket, err := s.store.Repositories().Tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ticketNotFound(ticketID)
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// applyStatusChange validates a requested status against current and adds the closed_at
// change it implies.
func (s *TicketService) applyStatusChange(current domain.TicketStatus, fields map[string]any) error {
	value, ok := fields["status"]
	if !ok {
		return nil
	}
	next := value.(domain.TicketStatus)
	if err := domain.CheckTransition(current, next); err != nil {
		var transitionErr *domain.TransitionError
		if errors.As(err, &transitionErr) {
			return apperrors.NewInvalidTransition(string(current), string(next), statusStrings(transitionErr.Allowed), transitionErr)
		}
		return err
	}
	switch domain.ClosedAtEffect(current, next) {
	case domain.ClosedAtSet:
		fields["closed_at"] = s.now()
	case domain.ClosedAtCleared:
		fields["closed_at"] = nil
	}
	return nil
}

func (s *TicketService) afterWrite(ticket *domain.Ticket, trigger string, event events.Event) {
	s.evaluateWorkflows(ticket, trigger)
	s.publish(event)
}

func (s *TicketService) evaluateWorkflows(ticket *domain.Ticket, trigger string) {
	if s.workflows == nil || s.runner == nil {
		return
	}
	snapshot := ticket.Snapshot()
	s.runner.Go("workflow."+trigger, func(ctx context.Context) error {
		s.workflows.Evaluate(ctx, domain.EntityTypeTicket, snapshot, trigger)
		return nil
	}, zap.String("tenant_id", ticket.TenantID), zap.String("ticket_id", ticket.ID))
}

func (s *TicketService) publish(event events.Event) {
	if s.dispatcher == nil || s.runner == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	s.runner.Go("events."+string(event.Type), func(ctx context.Context) error {
		return s.dispatcher.Publish(ctx, event)
	}, zap.String("tenant_id", event.TenantID), zap.String("ticket_id", event.TicketID))
}

func normalizeCreateInput(input TicketCreateInput) (TicketCreateInput, error) {
	input.Subject = strings.TrimSpace(input.Subject)
	input.Description = strings.TrimSpace(input.Description)
	input.ContactName = strings.TrimSpace(input.ContactName)
	input.ContactEmail = strings.ToLower(strings.TrimSpace(input.ContactEmail))

	if input.Subject == "" {
		return input, apperrors.NewValidationError("subject is required", map[string]any{"field": "subject"})
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if !input.Priority.Valid() {
		return input, apperrors.NewValidationError("invalid priority", map[string]any{"field": "priority", "value": input.Priority})
	}
	if input.Channel == "" {
		input.Channel = domain.ChannelWeb
	}
	if !validChannel(input.Channel) {
		return input, apperrors.NewValidationError("invalid channel", map[string]any{"field": "channel", "value": input.Channel})
	}
	for field, id := range map[string]*string{"contact_id": input.ContactID, "account_id": input.AccountID} {
		if id != nil && !validID(*id) {
			return input, apperrors.NewValidationError("invalid id", map[string]any{"field": field})
		}
	}
	if input.ContactEmail != "" {
		addr, err := mail.ParseAddress(input.ContactEmail)
		if err != nil {
			return input, apperrors.NewValidationError("invalid contact email", map[string]any{"field": "email"})
		}
		input.ContactEmail = addr.Address
	}
	return input, nil
}

func resolveContact(ctx context.Context, contacts repository.ContactRepository, tenantID, name, email string) (*domain.Contact, error) {
	contact, err := contacts.GetByEmail(ctx, tenantID, email)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	contact = &domain.Contact{TenantID: tenantID, Name: name, Email: &email}
	if err := contacts.Create(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func assignmentNotification(ticket *domain.Ticket) *domain.Notification {
	ref := ticket.ID
	return &domain.Notification{
		TenantID:    ticket.TenantID,
		UserID:      *ticket.AssignedUserID,
		Title:       "Ticket assigned",
		Message:     fmt.Sprintf("Ticket %s (%s) has been assigned to you", ticket.Code, ticket.Subject),
		Type:        domain.NotificationTypeAssignment,
		ReferenceID: &ref,
	}
}

func ticketNotFound(ticketID string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
}

func fieldValidationError(err error) error {
	var fe *fieldError
	if errors.As(err, &fe) {
		return apperrors.NewValidationError(fe.Error(), map[string]any{"field": fe.field})
	}
	return apperrors.NewValidationError(err.Error(), nil)
}

func allowedFieldNames(allowed map[string]struct{}) []string {
	names := make(map[string]any, len(allowed))
	for name := range allowed {
		names[name] = nil
	}
	return sortedKeys(names)
}

func optionalActor(actorID string) *string {
	if actorID == "" {
		return nil
	}
	return &actorID
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if parsed, err := uuid.Parse(id); err == nil {
			id = parsed.String()
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	return out
}
