package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/helpline-hq/support-desk/internal/domain"
	"github.com/helpline-hq/support-desk/internal/events"
	apperrors "github.com/helpline-hq/support-desk/pkg/util/errorutil"
)

type serviceFixture struct {
	store      *memStore
	runner     *queuedRunner
	evaluator  *recordingEvaluator
	dispatcher events.Dispatcher
	published  []events.Event
	svc        *TicketService
}

func newServiceFixture(teams stubTeams, rules stubRules) *serviceFixture {
	f := &serviceFixture{
		store:      newMemStore(),
		runner:     &queuedRunner{},
		evaluator:  &recordingEvaluator{},
		dispatcher: events.NewInMemoryDispatcher(nil),
	}
	events.SubscribeAll(f.dispatcher, func(ctx context.Context, e events.Event) error {
		f.published = append(f.published, e)
		return nil
	}, events.AllEventTypes...)
	f.svc = NewTicketService(TicketDependencies{
		Store:      f.store,
		SLA:        NewSLAResolver(stubPolicies{}),
		Router:     NewAssignmentRouter(AssignmentDependencies{RuleRepo: rules, TeamRepo: teams}),
		Codes:      fixedCodes{},
		Workflows:  f.evaluator,
		Runner:     f.runner,
		Dispatcher: f.dispatcher,
		Clock:      func() time.Time { return testNow },
	})
	return f
}

func requireDomainError(t *testing.T, err error, status int) *apperrors.DomainError {
	t.Helper()
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if de.HTTPStatus != status {
		t.Fatalf("status = %d (%s), want %d", de.HTTPStatus, de.Code, status)
	}
	return de
}

func TestCreateTicketUrgentGetsSLAAndRouting(t *testing.T) {
	technical := domain.Team{ID: uuid.NewString(), Name: TeamTechnical}
	f := newServiceFixture(stubTeams{technical}, nil)

	ticket, err := f.svc.CreateTicket(context.Background(), testTenant, "", TicketCreateInput{
		Subject:      "  Checkout error  ",
		Description:  "payment page crashes",
		Priority:     domain.TicketPriorityUrgent,
		ContactEmail: "Ada@Example.com",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	stored := f.store.ticket(ticket.ID)
	if stored.Status != domain.TicketStatusNew || stored.Subject != "Checkout error" || stored.Channel != domain.ChannelWeb {
		t.Fatalf("unexpected stored ticket %+v", stored)
	}
	if got := stored.ResolutionDueAt.Sub(stored.CreatedAt); got != 240*time.Minute {
		t.Fatalf("resolution window = %v, want 240m", got)
	}
	if got := stored.FirstResponseDueAt.Sub(stored.CreatedAt); got != 60*time.Minute {
		t.Fatalf("first response window = %v, want 60m", got)
	}
	// "payment" selects the Billing bucket, which this tenant does not have.
	if stored.AssignedTeamID != nil {
		t.Fatalf("expected no team since Billing is missing, got %v", *stored.AssignedTeamID)
	}
	if stored.ContactID == nil || len(f.store.contacts) != 1 || *f.store.contacts[0].Email != "ada@example.com" {
		t.Fatalf("contact not resolved: %+v", f.store.contacts)
	}
	if f.store.auditCount() != 1 || f.store.audits[0].Action != domain.AuditActionCreated {
		t.Fatalf("expected one created audit row, got %+v", f.store.audits)
	}

	if len(f.evaluator.calls) != 0 {
		t.Fatal("workflow evaluated inline")
	}
	f.runner.runAll()
	if len(f.evaluator.calls) != 1 || f.evaluator.calls[0].trigger != domain.TriggerTicketCreated {
		t.Fatalf("workflow calls = %+v", f.evaluator.calls)
	}
	if f.evaluator.calls[0].entity["tenant_id"] != testTenant {
		t.Fatalf("snapshot missing tenant: %v", f.evaluator.calls[0].entity)
	}
	if len(f.published) != 1 || f.published[0].Type != events.EventTicketCreated {
		t.Fatalf("published = %+v", f.published)
	}
}

func TestCreateTicketReusesContactAndRoutesTeam(t *testing.T) {
	technical := domain.Team{ID: uuid.NewString(), Name: TeamTechnical}
	f := newServiceFixture(stubTeams{technical}, nil)
	email := "ada@example.com"
	f.store.contacts = append(f.store.contacts, domain.Contact{ID: uuid.NewString(), TenantID: testTenant, Name: "Ada", Email: &email})

	ticket, err := f.svc.CreateTicket(context.Background(), testTenant, "", TicketCreateInput{
		Subject:      "Login bug",
		ContactEmail: email,
		Channel:      domain.ChannelForm,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(f.store.contacts) != 1 || *ticket.ContactID != f.store.contacts[0].ID {
		t.Fatal("existing contact not reused")
	}
	if ticket.AssignedTeamID == nil || *ticket.AssignedTeamID != technical.ID {
		t.Fatalf("team = %v, want Technical", ticket.AssignedTeamID)
	}
	if ticket.Priority != domain.TicketPriorityMedium || ticket.Channel != domain.ChannelForm {
		t.Fatalf("defaults not applied: %+v", ticket)
	}
}

func TestCreateTicketRuleAssignmentNotifiesAgent(t *testing.T) {
	agent := uuid.NewString()
	f := newServiceFixture(stubTeams{{ID: uuid.NewString(), Name: TeamBilling}}, stubRules{{Keyword: "refund", AssignedUserID: agent}})

	ticket, err := f.svc.CreateTicket(context.Background(), testTenant, "", TicketCreateInput{Subject: "Refund my invoice"})
	if err != nil {
		t.Fatal(err)
	}
	if ticket.AssignedUserID == nil || *ticket.AssignedUserID != agent || ticket.AssignedTeamID != nil {
		t.Fatalf("rule routing not applied: %+v", ticket)
	}
	if len(f.store.notifications) != 1 || f.store.notifications[0].Type != domain.NotificationTypeAssignment {
		t.Fatalf("notifications = %+v", f.store.notifications)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newServiceFixture(nil, nil)
	tests := []struct {
		name  string
		input TicketCreateInput
	}{
		{name: "missing subject", input: TicketCreateInput{Subject: "   "}},
		{name: "bad priority", input: TicketCreateInput{Subject: "x", Priority: "critical"}},
		{name: "bad channel", input: TicketCreateInput{Subject: "x", Channel: "fax"}},
		{name: "bad email", input: TicketCreateInput{Subject: "x", ContactEmail: "not-an-email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTicket(context.Background(), testTenant, "", tt.input)
			requireDomainError(t, err, http.StatusBadRequest)
		})
	}
	if f.store.accesses != 0 {
		t.Fatal("storage touched on invalid input")
	}
}

func TestUpdateTicketRejectsResolvedToNew(t *testing.T) {
	f := newServiceFixture(nil, nil)
	ticket := f.store.put(domain.Ticket{Subject: "before", Status: domain.TicketStatusResolved})

	_, err := f.svc.UpdateTicket(context.Background(), testTenant, "", ticket.ID, map[string]any{
		"status":  "new",
		"subject": "after",
	})
	de := requireDomainError(t, err, http.StatusConflict)
	allowed, _ := de.Details["allowed_transitions"].([]string)
	if len(allowed) != 2 || allowed[0] != "closed" || allowed[1] != "open" {
		t.Fatalf("allowed = %v", de.Details["allowed_transitions"])
	}
	if de.Details["current_status"] != "resolved" {
		t.Fatalf("details = %v", de.Details)
	}

	stored := f.store.ticket(ticket.ID)
	if stored.Status != domain.TicketStatusResolved || stored.Subject != "before" {
		t.Fatalf("ticket changed: %+v", stored)
	}
	if f.store.auditCount() != 0 {
		t.Fatal("audit written for rejected update")
	}
	if len(f.runner.names) != 0 {
		t.Fatal("background work scheduled for rejected update")
	}
}

func TestUpdateTicketClosedAtLifecycle(t *testing.T) {
	f := newServiceFixture(nil, nil)
	ticket := f.store.put(domain.Ticket{Status: domain.TicketStatusOpen})

	closed, err := f.svc.UpdateTicket(context.Background(), testTenant, "", ticket.ID, map[string]any{"status": "closed"})
	if err != nil {
		t.Fatal(err)
	}
	if closed.ClosedAt == nil || !closed.ClosedAt.Equal(testNow) {
		t.Fatalf("closed_at = %v", closed.ClosedAt)
	}

	again, err := f.svc.UpdateTicket(context.Background(), testTenant, "", ticket.ID, map[string]any{"status": "closed", "priority": "high"})
	if err != nil {
		t.Fatalf("same-status update: %v", err)
	}
	if again.Priority != domain.TicketPriorityHigh || again.ClosedAt == nil || !again.ClosedAt.Equal(testNow) {
		t.Fatalf("same-status update mishandled: %+v", again)
	}

	reopened, err := f.svc.UpdateTicket(context.Background(), testTenant, "", ticket.ID, map[string]any{"status": "open"})
	if err != nil {
		t.Fatal(err)
	}
	if reopened.ClosedAt != nil {
		t.Fatalf("closed_at not cleared: %v", reopened.ClosedAt)
	}
	if f.store.auditCount() != 3 {
		t.Fatalf("audit rows = %d, want 3", f.store.auditCount())
	}

	f.runner.runAll()
	last := f.published[len(f.published)-1]
	payload := last.Payload.(events.TicketUpdatedPayload)
	if payload.OldStatus != domain.TicketStatusClosed || payload.NewStatus != domain.TicketStatusOpen {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestUpdateTicketRollsBackWhenNotificationFails(t *testing.T) {
	f := newServiceFixture(nil, nil)
	ticket := f.store.put(domain.Ticket{Status: domain.TicketStatusNew, Subject: "before"})
	f.store.notificationErr = errors.New("notifications table locked")

	_, err := f.svc.UpdateTicket(context.Background(), testTenant, "", ticket.ID, map[string]any{
		"assigned_user_id": uuid.NewString(),
		"subject":          "after",
	})
	requireDomainError(t, err, http.StatusInternalServerError)

	stored := f.store.ticket(ticket.ID)
	if stored.AssignedUserID != nil || stored.Subject != "before" {
		t.Fatalf("ticket not rolled back: %+v", stored)
	}
	if f.store.auditCount() != 0 {
		t.Fatal("audit row survived rollback")
	}
}

func TestUpdateTicketAssignmentNotifiesOnlyOnChange(t *testing.T) {
	f := newServiceFixture(nil, nil)
	agent := uuid.NewString()
	ticket := f.store.put(domain.Ticket{Status: domain.TicketStatusOpen})

	for i := 0; i < 2; i++ {
		if _, err := f.svc.UpdateTicket(context.Background(), testTenant, "", ticket.ID, map[string]any{"assigned_user_id": agent}); err != nil {
			t.Fatal(err)
		}
	}
	if len(f.store.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.store.notifications))
	}
	n := f.store.notifications[0]
	if n.UserID != agent || n.ReferenceID == nil || *n.ReferenceID != ticket.ID {
		t.Fatalf("notification = %+v", n)
	}
}

func TestUpdateTicketFieldFiltering(t *testing.T) {
	f := newServiceFixture(nil, nil)
	ticket := f.store.put(domain.Ticket{Status: domain.TicketStatusOpen, Code: "TCK-9"})

	_, err := f.svc.UpdateTicket(context.Background(), testTenant, "", ticket.ID, map[string]any{"code": "HACK", "tenant_id": "other"})
	requireDomainError(t, err, http.StatusBadRequest)

	updated, err := f.svc.UpdateTicket(context.Background(), testTenant, "", ticket.ID, map[string]any{"code": "HACK", "subject": "new subject", "closed_at": "2020-01-01T00:00:00Z"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Code != "TCK-9" || updated.Subject != "new subject" || updated.ClosedAt != nil {
		t.Fatalf("filtering failed: %+v", updated)
	}

	_, err = f.svc.UpdateTicket(context.Background(), testTenant, "", ticket.ID, map[string]any{"priority": "critical"})
	requireDomainError(t, err, http.StatusBadRequest)
}

func TestUpdateTicketNotFound(t *testing.T) {
	f := newServiceFixture(nil, nil)
	other := f.store.put(domain.Ticket{TenantID: uuid.NewString(), Status: domain.TicketStatusOpen})

	for _, id := range []string{uuid.NewString(), "not-a-uuid", other.ID} {
		_, err := f.svc.UpdateTicket(context.Background(), testTenant, "", id, map[string]any{"subject": "x"})
		requireDomainError(t, err, http.StatusNotFound)
	}
}

func TestBulkUpdatePartialSuccess(t *testing.T) {
	f := newServiceFixture(nil, nil)
	valid := f.store.put(domain.Ticket{Status: domain.TicketStatusOpen})
	invalid := f.store.put(domain.Ticket{Status: domain.TicketStatusNew})
	missing := uuid.NewString()
	actor := uuid.NewString()

	result, err := f.svc.BulkUpdateTickets(context.Background(), testTenant, actor,
		[]string{valid.ID, invalid.ID, missing}, map[string]any{"status": "resolved"})
	if err != nil {
		t.Fatalf("BulkUpdateTickets: %v", err)
	}
	if len(result.Updated) != 1 || result.Updated[0] != valid.ID {
		t.Fatalf("updated = %v", result.Updated)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors = %+v", result.Errors)
	}
	byID := map[string]BulkItemError{}
	for _, e := range result.Errors {
		byID[e.ID] = e
	}
	if byID[missing].Error != BulkErrorNotFound {
		t.Fatalf("missing id error = %+v", byID[missing])
	}
	invalidErr := byID[invalid.ID]
	if invalidErr.Error != BulkErrorInvalidTransition || len(invalidErr.AllowedTransitions) != 2 {
		t.Fatalf("invalid transition error = %+v", invalidErr)
	}

	if f.store.ticket(valid.ID).Status != domain.TicketStatusResolved {
		t.Fatal("valid ticket not updated")
	}
	if f.store.ticket(invalid.ID).Status != domain.TicketStatusNew {
		t.Fatal("invalid ticket changed")
	}
	if f.store.auditCount() != 1 {
		t.Fatalf("audit rows = %d, want 1", f.store.auditCount())
	}
	audit := f.store.audits[0]
	if audit.EntityID != valid.ID || audit.Action != domain.AuditActionBulkUpdated || audit.ActorID == nil || *audit.ActorID != actor {
		t.Fatalf("audit = %+v", audit)
	}

	f.runner.runAll()
	if len(f.evaluator.calls) != 1 || f.evaluator.calls[0].trigger != domain.TriggerTicketUpdated {
		t.Fatalf("workflow calls = %+v", f.evaluator.calls)
	}
}

func TestBulkUpdateClosesPerTicket(t *testing.T) {
	f := newServiceFixture(nil, nil)
	closedAt := testNow.Add(-time.Hour)
	a := f.store.put(domain.Ticket{Status: domain.TicketStatusResolved})
	b := f.store.put(domain.Ticket{Status: domain.TicketStatusClosed, ClosedAt: &closedAt})

	result, err := f.svc.BulkUpdateTickets(context.Background(), testTenant, "", []string{a.ID, b.ID}, map[string]any{"status": "closed", "priority": "low"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Updated) != 2 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if got := f.store.ticket(a.ID).ClosedAt; got == nil || !got.Equal(testNow) {
		t.Fatalf("a closed_at = %v", got)
	}
	if got := f.store.ticket(b.ID).ClosedAt; got == nil || !got.Equal(closedAt) {
		t.Fatalf("already closed ticket should keep closed_at, got %v", got)
	}
}

func TestBulkUpdateRejectsTooManyIDsBeforeStorage(t *testing.T) {
	f := newServiceFixture(nil, nil)
	ids := make([]string, 101)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	_, err := f.svc.BulkUpdateTickets(context.Background(), testTenant, "", ids, map[string]any{"status": "open"})
	requireDomainError(t, err, http.StatusBadRequest)
	if f.store.accesses != 0 {
		t.Fatalf("storage accessed %d times", f.store.accesses)
	}
}

func TestBulkUpdateValidation(t *testing.T) {
	f := newServiceFixture(nil, nil)
	tests := []struct {
		name    string
		ids     []string
		changes map[string]any
	}{
		{name: "no ids", ids: nil, changes: map[string]any{"status": "open"}},
		{name: "only disallowed fields", ids: []string{uuid.NewString()}, changes: map[string]any{"subject": "x"}},
		{name: "bad status", ids: []string{uuid.NewString()}, changes: map[string]any{"status": "archived"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.BulkUpdateTickets(context.Background(), testTenant, "", tt.ids, tt.changes)
			requireDomainError(t, err, http.StatusBadRequest)
		})
	}
}

func TestBulkUpdateMalformedIDsAreNotFound(t *testing.T) {
	f := newServiceFixture(nil, nil)
	result, err := f.svc.BulkUpdateTickets(context.Background(), testTenant, "", []string{"nope", "nope"}, map[string]any{"priority": "low"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Updated) != 0 || len(result.Errors) != 1 || result.Errors[0].Error != BulkErrorNotFound {
		t.Fatalf("result = %+v", result)
	}
}

func TestGetAllowedTransitions(t *testing.T) {
	f := newServiceFixture(nil, nil)
	ticket := f.store.put(domain.Ticket{Status: domain.TicketStatusPending})

	opts, err := f.svc.GetAllowedTransitions(context.Background(), testTenant, ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if opts.CurrentStatus != domain.TicketStatusPending || len(opts.AllowedTransitions) != 3 {
		t.Fatalf("opts = %+v", opts)
	}

	_, err = f.svc.GetAllowedTransitions(context.Background(), testTenant, uuid.NewString())
	requireDomainError(t, err, http.StatusNotFound)
}

func TestListAuditRequiresTicket(t *testing.T) {
	f := newServiceFixture(nil, nil)
	ticket := f.store.put(domain.Ticket{Status: domain.TicketStatusOpen})
	if _, err := f.svc.UpdateTicket(context.Background(), testTenant, "", ticket.ID, map[string]any{"priority": "urgent"}); err != nil {
		t.Fatal(err)
	}
	entries, err := f.svc.ListAudit(context.Background(), testTenant, ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != domain.AuditActionUpdated {
		t.Fatalf("entries = %+v", entries)
	}
	_, err = f.svc.ListAudit(context.Background(), testTenant, uuid.NewString())
	requireDomainError(t, err, http.StatusNotFound)
}
