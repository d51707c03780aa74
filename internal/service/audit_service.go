package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
	"github.com/ervin210/oauth-app-marketplace/internal/pkg/ulid"
	"github.com/ervin210/oauth-app-marketplace/internal/repository"
)

// AuditEntry describes one audited action.
type AuditEntry struct {
	ActorID      *uuid.UUID
	Event        models.AuditEvent
	ResourceType models.ResourceType
	ResourceID   uuid.UUID
	Metadata     map[string]any
}

// AuditFilter narrows an audit trail query.
type AuditFilter struct {
	Event  *models.AuditEvent
	Cursor string
	Limit  int
}

// AuditService records and queries the audit trail.
type AuditService interface {
	Log(ctx context.Context, entry AuditEntry) error
	// Query returns one page of a resource's audit trail and the cursor of
	// the next page, empty when there is none.
	Query(ctx context.Context, resourceType models.ResourceType, resourceID uuid.UUID, filter AuditFilter) ([]*models.AuditLog, string, error)
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 100
)

type auditService struct {
	auditRepo repository.AuditRepository
}

// NewAuditService creates a new audit service.
func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

func (s *auditService) Log(ctx context.Context, entry AuditEntry) error {
	log := &models.AuditLog{
		ActorID:      entry.ActorID,
		Event:        entry.Event,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
	}

	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		log.Metadata = data
	}

	if err := s.auditRepo.Create(ctx, log); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *auditService) Query(ctx context.Context, resourceType models.ResourceType, resourceID uuid.UUID, filter AuditFilter) ([]*models.AuditLog, string, error) {
	if filter.Cursor != "" && !ulid.IsValid(filter.Cursor) {
		return nil, "", apierrors.NewValidationError("cursor", "invalid cursor")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	// Fetch one extra row to learn whether another page exists.
	logs, err := s.auditRepo.List(ctx, models.AuditLogQuery{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Event:        filter.Event,
		Cursor:       filter.Cursor,
		Limit:        limit + 1,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to query audit logs: %w", err)
	}

	var next string
	if len(logs) > limit {
		logs = logs[:limit]
		next = logs[limit-1].ID
	}
	return logs, next, nil
}

// recordAudit writes an audit entry without failing the caller. Failures are
// logged at WARN.
func recordAudit(ctx context.Context, audit AuditService, logger *slog.Logger, entry AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.Log(ctx, entry); err != nil {
		logger.WarnContext(ctx, "audit write failed",
			slog.String("event", string(entry.Event)),
			slog.String("resource_id", entry.ResourceID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Compile-time check to ensure auditService implements AuditService.
var _ AuditService = (*auditService)(nil)
