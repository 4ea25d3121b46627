package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// WorkflowRepository reads tenant-authored workflows. The engine never writes them.
type WorkflowRepository interface {
	ListActiveByTrigger(ctx context.Context, tenantID, triggerEvent string) ([]domain.Workflow, error)
}

type workflowRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewWorkflowRepository builds repository. Rows whose descriptors do not decode
// are logged through logger and left out of the result.
func NewWorkflowRepository(db DBTX, logger *zap.Logger) WorkflowRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &workflowRepository{db: db, logger: logger}
}

func (r *workflowRepository) ListActiveByTrigger(ctx context.Context, tenantID, triggerEvent string) ([]domain.Workflow, error) {
	const query = `
        SELECT id, tenant_id, name, trigger_event, is_active, conditions, actions, created_at, updated_at
        FROM workflows
        WHERE tenant_id=$1 AND trigger_event=$2 AND is_active=TRUE
        ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, tenantID, triggerEvent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Workflow
	for rows.Next() {
		var (
			wf             domain.Workflow
			conditionsJSON []byte
			actionsJSON    []byte
		)
		if err := rows.Scan(
			&wf.ID,
			&wf.TenantID,
			&wf.Name,
			&wf.TriggerEvent,
			&wf.IsActive,
			&conditionsJSON,
			&actionsJSON,
			&wf.CreatedAt,
			&wf.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := decodeWorkflowDescriptors(&wf, conditionsJSON, actionsJSON); err != nil {
			r.logger.Warn("skipping workflow with malformed descriptors",
				zap.String("tenant_id", tenantID),
				zap.String("workflow_id", wf.ID),
				zap.Error(err),
			)
			continue
		}
		result = append(result, wf)
	}
	return result, rows.Err()
}

func decodeWorkflowDescriptors(wf *domain.Workflow, conditionsJSON, actionsJSON []byte) error {
	if len(conditionsJSON) > 0 {
		if err := json.Unmarshal(conditionsJSON, &wf.Conditions); err != nil {
			return fmt.Errorf("workflow %s conditions: %w", wf.ID, err)
		}
	}
	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &wf.Actions); err != nil {
			return fmt.Errorf("workflow %s actions: %w", wf.ID, err)
		}
	}
	return nil
}
