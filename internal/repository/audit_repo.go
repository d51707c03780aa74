package repository

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
	"github.com/ervin210/oauth-app-marketplace/internal/pkg/ulid"
)

// AuditRepository defines the interface for audit log operations.
type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, query models.AuditLogQuery) ([]*models.AuditLog, error)
}

type auditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit log repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepo{pool: pool}
}

// Create inserts a new audit log entry.
func (r *auditRepo) Create(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, actor_id, event, resource_type, resource_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	if log.ID == "" {
		log.ID = ulid.New()
	}

	return r.pool.QueryRow(ctx, query,
		log.ID,
		log.ActorID,
		log.Event,
		log.ResourceType,
		log.ResourceID,
		log.Metadata,
	).Scan(&log.CreatedAt)
}

// List retrieves the audit trail of one resource, newest first. Entries older
// than the cursor ID are returned when a cursor is given.
func (r *auditRepo) List(ctx context.Context, q models.AuditLogQuery) ([]*models.AuditLog, error) {
	query := `
		SELECT id, actor_id, event, resource_type, resource_id, metadata, created_at
		FROM audit_logs
		WHERE resource_type = $1 AND resource_id = $2`
	args := []any{q.ResourceType, q.ResourceID}

	if q.Event != nil {
		args = append(args, *q.Event)
		query += fmt.Sprintf(` AND event = $%d`, len(args))
	}
	if q.Cursor != "" {
		args = append(args, q.Cursor)
		query += fmt.Sprintf(` AND id < $%d`, len(args))
	}

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args))

	var logs []*models.AuditLog
	if err := pgxscan.Select(ctx, r.pool, &logs, query, args...); err != nil {
		return nil, err
	}
	return logs, nil
}

// Compile-time check to ensure auditRepo implements AuditRepository.
var _ AuditRepository = (*auditRepo)(nil)
