package repository

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
)

// SubscriptionRepository defines the interface for subscription data operations.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Subscription, error)
	// Cancel ends an active subscription. It returns false if the
	// subscription was not active.
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository creates a new subscription repository.
func NewSubscriptionRepository(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, app_id, plan_id, status, start_date, end_date, created_at`

// Create inserts a new subscription.
func (r *subscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO app_subscriptions (id, user_id, app_id, plan_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING start_date, created_at`

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.Status == "" {
		sub.Status = models.SubscriptionActive
	}

	return r.pool.QueryRow(ctx, query,
		sub.ID,
		sub.UserID,
		sub.AppID,
		sub.PlanID,
		sub.Status,
	).Scan(&sub.StartDate, &sub.CreatedAt)
}

// GetByID retrieves a subscription by ID.
func (r *subscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := pgxscan.Get(ctx, r.pool, &sub, `SELECT `+subscriptionColumns+` FROM app_subscriptions WHERE id = $1`, id)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByUser lists a user's subscriptions, newest first.
func (r *subscriptionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := pgxscan.Select(ctx, r.pool, &subs,
		`SELECT `+subscriptionColumns+` FROM app_subscriptions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// Cancel marks an active subscription cancelled and closes its date range.
func (r *subscriptionRepo) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE app_subscriptions SET status = $2, end_date = NOW()
		WHERE id = $1 AND status = $3`,
		id, models.SubscriptionCancelled, models.SubscriptionActive)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// Compile-time check to ensure subscriptionRepo implements SubscriptionRepository.
var _ SubscriptionRepository = (*subscriptionRepo)(nil)
