package repository

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
	"github.com/ervin210/oauth-app-marketplace/internal/rating"
)

// ReviewRepository defines the interface for review data operations.
type ReviewRepository interface {
	// Create inserts a review. A second review by the same user for the same
	// application fails with rating.ErrDuplicateReview.
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListByApp(ctx context.Context, appID uuid.UUID, limit, offset int) ([]*models.Review, error)
	CountByApp(ctx context.Context, appID uuid.UUID) (int64, error)
	ListEntries(ctx context.Context, appID uuid.UUID) ([]rating.Entry, error)
	ListEntriesByApps(ctx context.Context, appIDs []uuid.UUID) (map[uuid.UUID][]rating.Entry, error)
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type reviewRepo struct {
	pool *pgxpool.Pool
}

// NewReviewRepository creates a new review repository.
func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &reviewRepo{pool: pool}
}

const reviewColumns = `id, app_id, user_id, rating, text, created_at, updated_at`

// Create inserts a new review.
func (r *reviewRepo) Create(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO app_reviews (id, app_id, user_id, rating, text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		review.ID,
		review.AppID,
		review.UserID,
		review.Rating,
		review.Text,
	).Scan(&review.CreatedAt, &review.UpdatedAt)
	return mapWriteError(err)
}

// GetByID retrieves a review by ID.
func (r *reviewRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := pgxscan.Get(ctx, r.pool, &review, `SELECT `+reviewColumns+` FROM app_reviews WHERE id = $1`, id)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// ListByApp lists one page of an application's reviews, newest first.
func (r *reviewRepo) ListByApp(ctx context.Context, appID uuid.UUID, limit, offset int) ([]*models.Review, error) {
	var reviews []*models.Review
	err := pgxscan.Select(ctx, r.pool, &reviews, `
		SELECT `+reviewColumns+` FROM app_reviews
		WHERE app_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3`, appID, limit, offset)
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// CountByApp counts an application's reviews.
func (r *reviewRepo) CountByApp(ctx context.Context, appID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM app_reviews WHERE app_id = $1`, appID).Scan(&n)
	return n, err
}

type entryRow struct {
	AppID  uuid.UUID `db:"app_id"`
	UserID uuid.UUID `db:"user_id"`
	Rating int       `db:"rating"`
}

// ListEntries returns every persisted rating of an application.
func (r *reviewRepo) ListEntries(ctx context.Context, appID uuid.UUID) ([]rating.Entry, error) {
	var rows []entryRow
	err := pgxscan.Select(ctx, r.pool, &rows,
		`SELECT app_id, user_id, rating FROM app_reviews WHERE app_id = $1`, appID)
	if err != nil {
		return nil, err
	}

	entries := make([]rating.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rating.Entry{UserID: row.UserID, Rating: row.Rating})
	}
	return entries, nil
}

// ListEntriesByApps returns the persisted ratings of several applications,
// keyed by application ID.
func (r *reviewRepo) ListEntriesByApps(ctx context.Context, appIDs []uuid.UUID) (map[uuid.UUID][]rating.Entry, error) {
	result := make(map[uuid.UUID][]rating.Entry, len(appIDs))
	if len(appIDs) == 0 {
		return result, nil
	}

	var rows []entryRow
	err := pgxscan.Select(ctx, r.pool, &rows,
		`SELECT app_id, user_id, rating FROM app_reviews WHERE app_id = ANY($1::uuid[])`, appIDs)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.AppID] = append(result[row.AppID], rating.Entry{UserID: row.UserID, Rating: row.Rating})
	}
	return result, nil
}

// Update writes a review's rating and text.
func (r *reviewRepo) Update(ctx context.Context, review *models.Review) error {
	query := `
		UPDATE app_reviews SET rating = $2, text = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, review.ID, review.Rating, review.Text).Scan(&review.UpdatedAt)
}

// Delete removes a review.
func (r *reviewRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM app_reviews WHERE id = $1`, id)
	return err
}

// Compile-time check to ensure reviewRepo implements ReviewRepository.
var _ ReviewRepository = (*reviewRepo)(nil)
