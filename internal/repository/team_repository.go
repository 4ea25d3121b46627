package repository

import (
	"context"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// TeamRepository reads tenant teams.
type TeamRepository interface {
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Team, error)
}

type teamRepository struct {
	db DBTX
}

// NewTeamRepository constructs repository.
func NewTeamRepository(db DBTX) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.Team, error) {
	const query = `
        SELECT id, tenant_id, name, is_active, created_at, updated_at
        FROM teams WHERE tenant_id=$1 AND is_active=TRUE
        ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Team
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.ID, &team.TenantID, &team.Name, &team.IsActive, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, team)
	}
	return result, rows.Err()
}
