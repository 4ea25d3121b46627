package repository

import (
	"context"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// ContactRepository manages customer contacts.
type ContactRepository interface {
	Create(ctx context.Context, contact *domain.Contact) error
	GetByEmail(ctx context.Context, tenantID, email string) (*domain.Contact, error)
}

type contactRepository struct {
	db DBTX
}

// NewContactRepository constructs repository.
func NewContactRepository(db DBTX) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	const query = `
        INSERT INTO contacts (tenant_id, name, email, account_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		contact.TenantID,
		contact.Name,
		contact.Email,
		contact.AccountID,
	).Scan(&contact.ID, &contact.CreatedAt, &contact.UpdatedAt)
}

func (r *contactRepository) GetByEmail(ctx context.Context, tenantID, email string) (*domain.Contact, error) {
	const query = `
        SELECT id, tenant_id, name, email, account_id, created_at, updated_at
        FROM contacts WHERE tenant_id=$1 AND LOWER(email)=LOWER($2)
        ORDER BY created_at ASC LIMIT 1`
	var contact domain.Contact
	if err := r.db.QueryRow(ctx, query, tenantID, email).Scan(
		&contact.ID,
		&contact.TenantID,
		&contact.Name,
		&contact.Email,
		&contact.AccountID,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &contact, nil
}
