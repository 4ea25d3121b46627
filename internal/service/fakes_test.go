package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/helpline-hq/support-desk/internal/domain"
	"github.com/helpline-hq/support-desk/internal/repository"
	"github.com/helpline-hq/support-desk/internal/worker"
)

// memStore is an in-memory repository.Store. WithinTx snapshots every table and restores
// it when fn fails, mirroring a rollback.
type memStore struct {
	mu sync.Mutex

	tickets       map[string]domain.Ticket
	contacts      []domain.Contact
	audits        []domain.AuditLogEntry
	notifications []domain.Notification

	notificationErr error
	accesses        int
}

func newMemStore() *memStore {
	return &memStore{tickets: map[string]domain.Ticket{}}
}

func (s *memStore) Repositories() repository.Repositories {
	return repository.Repositories{
		Tickets:       &memTickets{s},
		Contacts:      &memContacts{s},
		AuditLogs:     &memAudits{s},
		Notifications: &memNotifications{s},
	}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	s.accesses++
	tickets := make(map[string]domain.Ticket, len(s.tickets))
	for k, v := range s.tickets {
		tickets[k] = v
	}
	contacts := append([]domain.Contact(nil), s.contacts...)
	audits := append([]domain.AuditLogEntry(nil), s.audits...)
	notifications := append([]domain.Notification(nil), s.notifications...)
	s.mu.Unlock()

	if err := fn(ctx, s.Repositories()); err != nil {
		s.mu.Lock()
		s.tickets, s.contacts, s.audits, s.notifications = tickets, contacts, audits, notifications
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) put(t domain.Ticket) domain.Ticket {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.TenantID == "" {
		t.TenantID = testTenant
	}
	if t.Code == "" {
		t.Code = "TCK-" + t.ID[:4]
	}
	if t.Priority == "" {
		t.Priority = domain.TicketPriorityMedium
	}
	if t.Channel == "" {
		t.Channel = domain.ChannelWeb
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t
	return t
}

func (s *memStore) ticket(id string) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickets[id]
}

func (s *memStore) auditCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audits)
}

type memTickets struct{ s *memStore }

func (r *memTickets) Create(ctx context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accesses++
	t.ID = uuid.NewString()
	t.UpdatedAt = t.CreatedAt
	r.s.tickets[t.ID] = *t
	return nil
}

func (r *memTickets) GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accesses++
	t, ok := r.s.tickets[id]
	if !ok || t.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r *memTickets) GetDetail(ctx context.Context, tenantID, id string) (*domain.TicketDetail, error) {
	t, err := r.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	detail := &domain.TicketDetail{Ticket: *t}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contacts {
		if t.ContactID != nil && c.ID == *t.ContactID {
			name := c.Name
			detail.ContactName = &name
			detail.ContactEmail = c.Email
		}
	}
	return detail, nil
}

func (r *memTickets) ListStatuses(ctx context.Context, tenantID string, ids []string) (map[string]domain.TicketStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accesses++
	out := map[string]domain.TicketStatus{}
	for _, id := range ids {
		if t, ok := r.s.tickets[id]; ok && t.TenantID == tenantID {
			out[id] = t.Status
		}
	}
	return out, nil
}

func (r *memTickets) UpdateFields(ctx context.Context, tenantID, id string, fields map[string]any) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accesses++
	t, ok := r.s.tickets[id]
	if !ok || t.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	for column, value := range fields {
		if !repository.IsUpdatableTicketField(column) {
			return nil, fmt.Errorf("%w: %s", repository.ErrUnknownTicketField, column)
		}
		switch column {
		case "subject":
			t.Subject = value.(string)
		case "description":
			t.Description = value.(string)
		case "channel":
			t.Channel = value.(string)
		case "priority":
			t.Priority = value.(domain.TicketPriority)
		case "status":
			t.Status = value.(domain.TicketStatus)
		case "contact_id":
			t.ContactID = optString(value)
		case "account_id":
			t.AccountID = optString(value)
		case "assigned_team_id":
			t.AssignedTeamID = optString(value)
		case "assigned_user_id":
			t.AssignedUserID = optString(value)
		case "first_response_due_at":
			t.FirstResponseDueAt = optTime(value)
		case "resolution_due_at":
			t.ResolutionDueAt = optTime(value)
		case "closed_at":
			t.ClosedAt = optTime(value)
		}
	}
	// tickets_closed_at_chk
	if (t.Status == domain.TicketStatusClosed) != (t.ClosedAt != nil) {
		return nil, errors.New("violates check constraint tickets_closed_at_chk")
	}
	t.UpdatedAt = time.Now()
	r.s.tickets[id] = t
	return &t, nil
}

func (r *memTickets) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if t.TenantID == filter.TenantID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func optString(v any) *string {
	if v == nil {
		return nil
	}
	s := v.(string)
	return &s
}

func optTime(v any) *time.Time {
	if v == nil {
		return nil
	}
	t := v.(time.Time)
	return &t
}

type memContacts struct{ s *memStore }

func (r *memContacts) Create(ctx context.Context, c *domain.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = uuid.NewString()
	r.s.contacts = append(r.s.contacts, *c)
	return nil
}

func (r *memContacts) GetByEmail(ctx context.Context, tenantID, email string) (*domain.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contacts {
		if c.TenantID == tenantID && c.Email != nil && strings.EqualFold(*c.Email, email) {
			found := c
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memAudits struct{ s *memStore }

func (r *memAudits) Append(ctx context.Context, e *domain.AuditLogEntry) error {
	return r.AppendBatch(ctx, []*domain.AuditLogEntry{e})
}

func (r *memAudits) AppendBatch(ctx context.Context, entries []*domain.AuditLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range entries {
		e.ID = uuid.NewString()
		r.s.audits = append(r.s.audits, *e)
	}
	return nil
}

func (r *memAudits) ListByEntity(ctx context.Context, tenantID, entityType, entityID string) ([]domain.AuditLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.AuditLogEntry
	for _, e := range r.s.audits {
		if e.TenantID == tenantID && e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memNotifications struct{ s *memStore }

func (r *memNotifications) Create(ctx context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.notificationErr != nil {
		return r.s.notificationErr
	}
	n.ID = uuid.NewString()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

type stubRules []domain.AssignmentRule

func (s stubRules) ListActiveByTenant(ctx context.Context, tenantID string) ([]domain.AssignmentRule, error) {
	return s, nil
}

type stubTeams []domain.Team

func (s stubTeams) ListByTenant(ctx context.Context, tenantID string) ([]domain.Team, error) {
	return s, nil
}

type stubPolicies map[domain.TicketPriority]domain.SLAPolicy

func (s stubPolicies) Get(ctx context.Context, tenantID string, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	p, ok := s[priority]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type fixedCodes struct{}

func (fixedCodes) Next(ctx context.Context, tenantID string) string { return "TCK-1" }

// queuedRunner records tasks so tests can assert they were not run inline.
type queuedRunner struct {
	mu    sync.Mutex
	names []string
	tasks []worker.Task
}

func (r *queuedRunner) Go(name string, task worker.Task, fields ...zap.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.tasks = append(r.tasks, task)
}

func (r *queuedRunner) runAll() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for _, task := range tasks {
		_ = task(context.Background())
	}
}

type evaluation struct {
	entity  map[string]any
	trigger string
}

type recordingEvaluator struct {
	mu    sync.Mutex
	calls []evaluation
}

func (e *recordingEvaluator) Evaluate(ctx context.Context, entityType string, entity map[string]any, trigger string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, evaluation{entity: entity, trigger: trigger})
}

const testTenant = "11111111-1111-1111-1111-111111111111"

var testNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
