package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByOAuth(ctx context.Context, provider, providerID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateOAuth(ctx context.Context, userID uuid.UUID, provider, providerID string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

const userColumns = `id, email, name, avatar_url, oauth_provider, oauth_provider_id, last_login_at, created_at, updated_at`

// Create inserts a new user.
func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, avatar_url, oauth_provider, oauth_provider_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	return r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.AvatarURL,
		user.OAuthProvider,
		user.OAuthProviderID,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

// GetByID retrieves a user by ID.
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByOAuth retrieves a user by OAuth provider identity.
func (r *userRepo) GetByOAuth(ctx context.Context, provider, providerID string) (*models.User, error) {
	return r.getOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE oauth_provider = $1 AND oauth_provider_id = $2`,
		provider, providerID)
}

func (r *userRepo) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.AvatarURL,
		&user.OAuthProvider,
		&user.OAuthProviderID,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates profile fields refreshed on login.
func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET name = $2, avatar_url = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, user.ID, user.Name, user.AvatarURL).Scan(&user.UpdatedAt)
}

// UpdateOAuth links an OAuth identity to an existing user.
func (r *userRepo) UpdateOAuth(ctx context.Context, userID uuid.UUID, provider, providerID string) error {
	query := `UPDATE users SET oauth_provider = $2, oauth_provider_id = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, userID, provider, providerID)
	return err
}

// UpdateLastLogin records a successful login.
func (r *userRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

// Compile-time check to ensure userRepo implements UserRepository.
var _ UserRepository = (*userRepo)(nil)
