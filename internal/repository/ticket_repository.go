package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// ErrUnknownTicketField is returned when an update names a column outside the mutable set.
var ErrUnknownTicketField = errors.New("unknown ticket field")

var updatableTicketColumns = map[string]struct{}{
	"subject":               {},
	"description":           {},
	"priority":              {},
	"status":                {},
	"channel":               {},
	"contact_id":            {},
	"account_id":            {},
	"assigned_team_id":      {},
	"assigned_user_id":      {},
	"first_response_due_at": {},
	"resolution_due_at":     {},
	"closed_at":             {},
}

// IsUpdatableTicketField reports whether UpdateFields accepts the column.
func IsUpdatableTicketField(field string) bool {
	_, ok := updatableTicketColumns[field]
	return ok
}

// TicketFilter captures agent search parameters.
type TicketFilter struct {
	TenantID       string
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

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error)
	GetDetail(ctx context.Context, tenantID, id string) (*domain.TicketDetail, error)
	// ListStatuses batch-fetches current statuses; ids missing for the tenant are absent from the map.
	ListStatuses(ctx context.Context, tenantID string, ids []string) (map[string]domain.TicketStatus, error)
	// UpdateFields writes the given columns and returns the updated row.
	UpdateFields(ctx context.Context, tenantID, id string, fields map[string]any) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

const ticketColumns = `id, tenant_id, code, subject, description, priority, status, channel,
               contact_id, account_id, assigned_team_id, assigned_user_id,
               first_response_due_at, resolution_due_at, closed_at, created_at, updated_at`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (tenant_id, code, subject, description, priority, status, channel,
            contact_id, account_id, assigned_team_id, assigned_user_id,
            first_response_due_at, resolution_due_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
        RETURNING id, created_at, updated_at`
	createdAt := ticket.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return r.db.QueryRow(ctx, query,
		ticket.TenantID,
		ticket.Code,
		ticket.Subject,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.Channel,
		ticket.ContactID,
		ticket.AccountID,
		ticket.AssignedTeamID,
		ticket.AssignedUserID,
		ticket.FirstResponseDueAt,
		ticket.ResolutionDueAt,
		createdAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE tenant_id=$1 AND id=$2`
	var ticket domain.Ticket
	if err := scanTicket(r.db.QueryRow(ctx, query, tenantID, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) GetDetail(ctx context.Context, tenantID, id string) (*domain.TicketDetail, error) {
	const query = `
        SELECT t.id, t.tenant_id, t.code, t.subject, t.description, t.priority, t.status, t.channel,
               t.contact_id, t.account_id, t.assigned_team_id, t.assigned_user_id,
               t.first_response_due_at, t.resolution_due_at, t.closed_at, t.created_at, t.updated_at,
               c.name, c.email
        FROM tickets t
        LEFT JOIN contacts c ON c.id = t.contact_id
        WHERE t.tenant_id=$1 AND t.id=$2`
	var detail domain.TicketDetail
	t := &detail.Ticket
	if err := r.db.QueryRow(ctx, query, tenantID, id).Scan(
		&t.ID,
		&t.TenantID,
		&t.Code,
		&t.Subject,
		&t.Description,
		&t.Priority,
		&t.Status,
		&t.Channel,
		&t.ContactID,
		&t.AccountID,
		&t.AssignedTeamID,
		&t.AssignedUserID,
		&t.FirstResponseDueAt,
		&t.ResolutionDueAt,
		&t.ClosedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
		&detail.ContactName,
		&detail.ContactEmail,
	); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *ticketRepository) ListStatuses(ctx context.Context, tenantID string, ids []string) (map[string]domain.TicketStatus, error) {
	const query = `SELECT id, status FROM tickets WHERE tenant_id=$1 AND id = ANY($2::uuid[])`
	result := make(map[string]domain.TicketStatus, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.db.Query(ctx, query, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id     string
			status domain.TicketStatus
		)
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		result[id] = status
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateFields(ctx context.Context, tenantID, id string, fields map[string]any) (*domain.Ticket, error) {
	query, args, err := buildTicketUpdate(tenantID, id, fields)
	if err != nil {
		return nil, err
	}
	var ticket domain.Ticket
	if err := scanTicket(r.db.QueryRow(ctx, query, args...), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// buildTicketUpdate renders an UPDATE over the whitelisted columns in stable order.
func buildTicketUpdate(tenantID, id string, fields map[string]any) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, errors.New("no ticket fields to update")
	}
	columns := make([]string, 0, len(fields))
	for column := range fields {
		if !IsUpdatableTicketField(column) {
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownTicketField, column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	args := make([]any, 0, len(columns)+2)
	sets := make([]string, 0, len(columns)+1)
	for _, column := range columns {
		args = append(args, fields[column])
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, tenantID, id)

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE tenant_id=$%d AND id=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), ticketColumns)
	return query, args, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	args := []any{filter.TenantID}
	clauses := []string{"tenant_id=$1"}

	if filter.AssignedTeamID != nil {
		args = append(args, *filter.AssignedTeamID)
		clauses = append(clauses, fmt.Sprintf("assigned_team_id=$%d", len(args)))
	}
	if filter.AssignedUserID != nil {
		args = append(args, *filter.AssignedUserID)
		clauses = append(clauses, fmt.Sprintf("assigned_user_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE %s OR LOWER(description) LIKE %s OR LOWER(code) LIKE %s)", placeholder, placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.Code,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Channel,
		&ticket.ContactID,
		&ticket.AccountID,
		&ticket.AssignedTeamID,
		&ticket.AssignedUserID,
		&ticket.FirstResponseDueAt,
		&ticket.ResolutionDueAt,
		&ticket.ClosedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}
