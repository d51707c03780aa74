package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEvent represents the type of audit event.
type AuditEvent string

const (
	// Application events
	AuditEventAppCreated            AuditEvent = "app.created"
	AuditEventAppUpdated            AuditEvent = "app.updated"
	AuditEventAppDeleted            AuditEvent = "app.deleted"
	AuditEventAppCredentialsRotated AuditEvent = "app.credentials_rotated"

	// Review events
	AuditEventReviewCreated AuditEvent = "review.created"
	AuditEventReviewUpdated AuditEvent = "review.updated"
	AuditEventReviewDeleted AuditEvent = "review.deleted"

	// Plan events
	AuditEventPlanCreated AuditEvent = "plan.created"
	AuditEventPlanUpdated AuditEvent = "plan.updated"
	AuditEventPlanDeleted AuditEvent = "plan.deleted"

	// Subscription events
	AuditEventSubscriptionCreated   AuditEvent = "subscription.created"
	AuditEventSubscriptionCancelled AuditEvent = "subscription.cancelled"
)

// ResourceType represents the type of resource being acted upon.
type ResourceType string

const (
	ResourceTypeApp          ResourceType = "application"
	ResourceTypeReview       ResourceType = "review"
	ResourceTypePlan         ResourceType = "pricing_plan"
	ResourceTypeSubscription ResourceType = "subscription"
)

// AuditLog represents an audit log entry. IDs are ULIDs so entries sort by time.
type AuditLog struct {
	ID           string          `json:"id" db:"id"`
	ActorID      *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Event        AuditEvent      `json:"event" db:"event"`
	ResourceType ResourceType    `json:"resource_type" db:"resource_type"`
	ResourceID   uuid.UUID       `json:"resource_id" db:"resource_id"`
	Metadata     json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// AuditLogQuery represents query parameters for fetching audit logs.
type AuditLogQuery struct {
	ResourceType ResourceType
	ResourceID   uuid.UUID
	Event        *AuditEvent
	// Cursor is the ID of the last entry of the previous page.
	Cursor string
	Limit  int
}
