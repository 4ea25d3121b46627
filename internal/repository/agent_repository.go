package repository

import (
	"context"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// AgentRepository handles persistence for tenant agents.
type AgentRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.Agent, error)
	GetByEmail(ctx context.Context, tenantID, email string) (*domain.Agent, error)
	Create(ctx context.Context, agent *domain.Agent) error
}

type agentRepository struct {
	db DBTX
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(db DBTX) AgentRepository {
	return &agentRepository{db: db}
}

const agentColumns = `id, tenant_id, name, email, password_hash, role, active_flag, created_at, updated_at`

func (r *agentRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE tenant_id=$1 AND id=$2`
	return r.fetchSingle(ctx, query, tenantID, id)
}

func (r *agentRepository) GetByEmail(ctx context.Context, tenantID, email string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE tenant_id=$1 AND LOWER(email)=LOWER($2)`
	return r.fetchSingle(ctx, query, tenantID, email)
}

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	query := `INSERT INTO agents (tenant_id, name, email, password_hash, role, active_flag)
              VALUES ($1,$2,LOWER($3),$4,$5,$6)
              RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		agent.TenantID,
		agent.Name,
		agent.Email,
		agent.PasswordHash,
		agent.Role,
		agent.Active,
	).Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt)
}

func (r *agentRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Agent, error) {
	var agent domain.Agent
	if err := r.db.QueryRow(ctx, query, args...).Scan(
		&agent.ID,
		&agent.TenantID,
		&agent.Name,
		&agent.Email,
		&agent.PasswordHash,
		&agent.Role,
		&agent.Active,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}
