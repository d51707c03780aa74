package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	// SubscriptionOrphaned marks a subscription whose plan was deleted.
	SubscriptionOrphaned SubscriptionStatus = "orphaned"
)

// Subscription links a user to an application plan.
type Subscription struct {
	ID        uuid.UUID          `json:"id" db:"id"`
	UserID    uuid.UUID          `json:"user_id" db:"user_id"`
	AppID     uuid.UUID          `json:"app_id" db:"app_id"`
	PlanID    *uuid.UUID         `json:"plan_id,omitempty" db:"plan_id"`
	Status    SubscriptionStatus `json:"status" db:"status"`
	StartDate time.Time          `json:"start_date" db:"start_date"`
	EndDate   *time.Time         `json:"end_date,omitempty" db:"end_date"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
}

// IsActive reports whether the subscription is currently active.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionActive
}
