package models

import (
	"time"

	"github.com/google/uuid"
)

// BillingInterval is how often a plan is charged.
type BillingInterval string

const (
	BillingMonthly BillingInterval = "monthly"
	BillingYearly  BillingInterval = "yearly"
)

// IsValid checks if the interval is known.
func (b BillingInterval) IsValid() bool {
	return b == BillingMonthly || b == BillingYearly
}

// DefaultCurrency is used when a plan omits its currency.
const DefaultCurrency = "USD"

// PricingPlan is a priced offering attached to an application.
type PricingPlan struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	AppID           uuid.UUID       `json:"app_id" db:"app_id"`
	Name            string          `json:"name" db:"name"`
	PriceCents      int64           `json:"price_cents" db:"price_cents"`
	Currency        string          `json:"currency" db:"currency"`
	BillingInterval BillingInterval `json:"billing_interval" db:"billing_interval"`
	Features        []string        `json:"features" db:"features"`
	IsPublic        bool            `json:"is_public" db:"is_public"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// IsFree reports whether the plan costs nothing.
func (p *PricingPlan) IsFree() bool {
	return p.PriceCents == 0
}
