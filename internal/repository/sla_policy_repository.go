package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// SLAPolicyRepository looks up per-tenant SLA policies.
type SLAPolicyRepository interface {
	// Get returns the policy for (tenant, priority), or nil without error when none exists.
	Get(ctx context.Context, tenantID string, priority domain.TicketPriority) (*domain.SLAPolicy, error)
}

type slaPolicyRepository struct {
	db DBTX
}

// NewSLAPolicyRepository builds repository.
func NewSLAPolicyRepository(db DBTX) SLAPolicyRepository {
	return &slaPolicyRepository{db: db}
}

func (r *slaPolicyRepository) Get(ctx context.Context, tenantID string, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	const query = `
        SELECT tenant_id, priority, response_time_minutes, resolution_time_minutes
        FROM sla_policies WHERE tenant_id=$1 AND priority=$2`
	var policy domain.SLAPolicy
	err := r.db.QueryRow(ctx, query, tenantID, priority).Scan(
		&policy.TenantID,
		&policy.Priority,
		&policy.ResponseTimeMinutes,
		&policy.ResolutionTimeMinutes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}
