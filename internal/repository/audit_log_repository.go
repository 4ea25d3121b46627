package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// AuditLogRepository appends and reads the immutable audit trail. There is no update or delete.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
	// AppendBatch writes all entries with one multi-row INSERT.
	AppendBatch(ctx context.Context, entries []*domain.AuditLogEntry) error
	ListByEntity(ctx context.Context, tenantID, entityType, entityID string) ([]domain.AuditLogEntry, error)
}

type auditLogRepository struct {
	db DBTX
}

// NewAuditLogRepository builds repository.
func NewAuditLogRepository(db DBTX) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	return r.AppendBatch(ctx, []*domain.AuditLogEntry{entry})
}

func (r *auditLogRepository) AppendBatch(ctx context.Context, entries []*domain.AuditLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	query, args, err := buildAuditInsert(entries)
	if err != nil {
		return err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	// RETURNING preserves VALUES order for a single INSERT statement.
	i := 0
	for rows.Next() {
		if i >= len(entries) {
			break
		}
		if err := rows.Scan(&entries[i].ID, &entries[i].CreatedAt); err != nil {
			return err
		}
		i++
	}
	return rows.Err()
}

const auditColumnCount = 6

func buildAuditInsert(entries []*domain.AuditLogEntry) (string, []any, error) {
	args := make([]any, 0, len(entries)*auditColumnCount)
	values := make([]string, 0, len(entries))
	for _, entry := range entries {
		details, err := json.Marshal(entry.Details)
		if err != nil {
			return "", nil, fmt.Errorf("marshal audit details: %w", err)
		}
		base := len(args)
		args = append(args,
			entry.TenantID,
			entry.EntityType,
			entry.EntityID,
			entry.Action,
			details,
			entry.ActorID,
		)
		placeholders := make([]string, auditColumnCount)
		for i := range placeholders {
			placeholders[i] = fmt.Sprintf("$%d", base+i+1)
		}
		values = append(values, "("+strings.Join(placeholders, ",")+")")
	}
	query := `INSERT INTO audit_logs (tenant_id, entity_type, entity_id, action, details, actor_id) VALUES ` +
		strings.Join(values, ",") + ` RETURNING id, created_at`
	return query, args, nil
}

func (r *auditLogRepository) ListByEntity(ctx context.Context, tenantID, entityType, entityID string) ([]domain.AuditLogEntry, error) {
	const query = `
        SELECT id, tenant_id, entity_type, entity_id, action, details, actor_id, created_at
        FROM audit_logs WHERE tenant_id=$1 AND entity_type=$2 AND entity_id=$3
        ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, tenantID, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditLogEntry
	for rows.Next() {
		var (
			entry   domain.AuditLogEntry
			details []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.EntityType,
			&entry.EntityID,
			&entry.Action,
			&details,
			&entry.ActorID,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
