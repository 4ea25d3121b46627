package repository

import (
	"context"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// NotificationRepository stores in-app agent notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
}

type notificationRepository struct {
	db DBTX
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (tenant_id, user_id, title, message, type, reference_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, is_read, created_at`
	return r.db.QueryRow(ctx, query,
		n.TenantID,
		n.UserID,
		n.Title,
		n.Message,
		n.Type,
		n.ReferenceID,
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
}
