package repository

import (
	"context"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// AssignmentRuleRepository reads keyword routing rules.
type AssignmentRuleRepository interface {
	// ListActiveByTenant returns active rules in creation order.
	ListActiveByTenant(ctx context.Context, tenantID string) ([]domain.AssignmentRule, error)
}

type assignmentRuleRepository struct {
	db DBTX
}

// NewAssignmentRuleRepository builds repository.
func NewAssignmentRuleRepository(db DBTX) AssignmentRuleRepository {
	return &assignmentRuleRepository{db: db}
}

func (r *assignmentRuleRepository) ListActiveByTenant(ctx context.Context, tenantID string) ([]domain.AssignmentRule, error) {
	const query = `
        SELECT id, tenant_id, keyword, assigned_user_id, is_active, created_at
        FROM assignment_rules WHERE tenant_id=$1 AND is_active=TRUE
        ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssignmentRule
	for rows.Next() {
		var rule domain.AssignmentRule
		if err := rows.Scan(&rule.ID, &rule.TenantID, &rule.Keyword, &rule.AssignedUserID, &rule.IsActive, &rule.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
