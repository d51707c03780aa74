package repository

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
)

// PlanRepository defines the interface for pricing plan data operations.
type PlanRepository interface {
	Create(ctx context.Context, plan *models.PricingPlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PricingPlan, error)
	ListByApp(ctx context.Context, appID uuid.UUID, publicOnly bool) ([]*models.PricingPlan, error)
	Update(ctx context.Context, plan *models.PricingPlan) error
	// Delete removes a plan and flags its active subscriptions orphaned in the
	// same transaction. It returns the number of orphaned subscriptions.
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type planRepo struct {
	pool *pgxpool.Pool
}

// NewPlanRepository creates a new pricing plan repository.
func NewPlanRepository(pool *pgxpool.Pool) PlanRepository {
	return &planRepo{pool: pool}
}

const planColumns = `id, app_id, name, price_cents, currency, billing_interval, features, is_public, created_at, updated_at`

// Create inserts a new plan.
func (r *planRepo) Create(ctx context.Context, plan *models.PricingPlan) error {
	query := `
		INSERT INTO pricing_plans (id, app_id, name, price_cents, currency, billing_interval, features, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	if plan.Features == nil {
		plan.Features = []string{}
	}

	return r.pool.QueryRow(ctx, query,
		plan.ID,
		plan.AppID,
		plan.Name,
		plan.PriceCents,
		plan.Currency,
		plan.BillingInterval,
		plan.Features,
		plan.IsPublic,
	).Scan(&plan.CreatedAt, &plan.UpdatedAt)
}

// GetByID retrieves a plan by ID.
func (r *planRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PricingPlan, error) {
	var plan models.PricingPlan
	err := pgxscan.Get(ctx, r.pool, &plan, `SELECT `+planColumns+` FROM pricing_plans WHERE id = $1`, id)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListByApp lists an application's plans, cheapest first.
func (r *planRepo) ListByApp(ctx context.Context, appID uuid.UUID, publicOnly bool) ([]*models.PricingPlan, error) {
	query := `SELECT ` + planColumns + ` FROM pricing_plans WHERE app_id = $1`
	if publicOnly {
		query += ` AND is_public`
	}
	query += ` ORDER BY price_cents ASC, name ASC`

	var plans []*models.PricingPlan
	if err := pgxscan.Select(ctx, r.pool, &plans, query, appID); err != nil {
		return nil, err
	}
	return plans, nil
}

// Update writes a plan's editable fields.
func (r *planRepo) Update(ctx context.Context, plan *models.PricingPlan) error {
	query := `
		UPDATE pricing_plans
		SET name = $2, price_cents = $3, currency = $4, billing_interval = $5,
		    features = $6, is_public = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	if plan.Features == nil {
		plan.Features = []string{}
	}
	return r.pool.QueryRow(ctx, query,
		plan.ID,
		plan.Name,
		plan.PriceCents,
		plan.Currency,
		plan.BillingInterval,
		plan.Features,
		plan.IsPublic,
	).Scan(&plan.UpdatedAt)
}

// Delete orphans active subscriptions and removes the plan atomically.
func (r *planRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	var orphaned int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE app_subscriptions SET status = $2, plan_id = NULL
			WHERE plan_id = $1 AND status = $3`,
			id, models.SubscriptionOrphaned, models.SubscriptionActive)
		if err != nil {
			return fmt.Errorf("failed to orphan subscriptions: %w", err)
		}
		orphaned = result.RowsAffected()

		if _, err := tx.Exec(ctx, `DELETE FROM pricing_plans WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return orphaned, nil
}

// Compile-time check to ensure planRepo implements PlanRepository.
var _ PlanRepository = (*planRepo)(nil)
