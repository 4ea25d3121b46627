package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the executor shared by *pgxpool.Pool and pgx.Tx. Repositories are bound to one
// executor at construction, so a repository built from a transaction only writes inside it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories groups the repositories whose writes must commit together.
type Repositories struct {
	Tickets       TicketRepository
	Contacts      ContactRepository
	AuditLogs     AuditLogRepository
	Notifications NotificationRepository
}

// Store hands out executor-bound repositories.
type Store interface {
	// Repositories returns repositories running on the pool, outside any transaction.
	Repositories() Repositories
	// WithinTx runs fn with repositories bound to one transaction. The transaction commits
	// when fn returns nil and rolls back otherwise, including on context cancellation.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore builds a Store over the pgx pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Repositories() Repositories {
	return newRepositories(s.pool)
}

func (s *pgStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, newRepositories(tx))
	})
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Tickets:       NewTicketRepository(db),
		Contacts:      NewContactRepository(db),
		AuditLogs:     NewAuditLogRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}
