package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
)

// ApplicationRepository defines the interface for application data operations.
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	// ReplaceCredentials swaps the stored pair in one statement if the
	// credentials version still equals expectedVersion. It returns false when
	// another rotation won the race.
	ReplaceCredentials(ctx context.Context, id uuid.UUID, expectedVersion int64, clientID, secretHash, secretPrefix string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListListed(ctx context.Context, q models.ListingQuery) ([]*models.PublicApplication, int64, error)
	GetListed(ctx context.Context, id uuid.UUID) (*models.PublicApplication, error)
}

type appRepo struct {
	pool *pgxpool.Pool
}

// NewApplicationRepository creates a new application repository.
func NewApplicationRepository(pool *pgxpool.Pool) ApplicationRepository {
	return &appRepo{pool: pool}
}

const appColumns = `id, owner_id, name, description, homepage_url, callback_url, logo_url,
	is_published, is_listed, verification_status, client_id, client_secret_hash,
	client_secret_prefix, credentials_version, credentials_issued_at, created_at, updated_at`

// Create inserts a new application without credentials.
func (r *appRepo) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO applications (id, owner_id, name, description, homepage_url, callback_url, logo_url, is_published, is_listed, verification_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING credentials_version, created_at, updated_at`

	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.VerificationStatus == "" {
		app.VerificationStatus = models.VerificationUnverified
	}

	return r.pool.QueryRow(ctx, query,
		app.ID,
		app.OwnerID,
		app.Name,
		app.Description,
		app.HomepageURL,
		app.CallbackURL,
		app.LogoURL,
		app.IsPublished,
		app.IsListed,
		app.VerificationStatus,
	).Scan(&app.CredentialsVersion, &app.CreatedAt, &app.UpdatedAt)
}

// GetByID retrieves an application by ID.
func (r *appRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	err := pgxscan.Get(ctx, r.pool, &app, `SELECT `+appColumns+` FROM applications WHERE id = $1`, id)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// ListByOwner lists the applications owned by a user, newest first.
func (r *appRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Application, error) {
	var apps []*models.Application
	err := pgxscan.Select(ctx, r.pool, &apps,
		`SELECT `+appColumns+` FROM applications WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// Update writes the owner-editable fields. Credential columns are untouched.
func (r *appRepo) Update(ctx context.Context, app *models.Application) error {
	query := `
		UPDATE applications
		SET name = $2, description = $3, homepage_url = $4, callback_url = $5, logo_url = $6,
		    is_published = $7, is_listed = $8, verification_status = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		app.ID,
		app.Name,
		app.Description,
		app.HomepageURL,
		app.CallbackURL,
		app.LogoURL,
		app.IsPublished,
		app.IsListed,
		app.VerificationStatus,
	).Scan(&app.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("application %s not found", app.ID)
	}
	return err
}

// ReplaceCredentials performs the compare-and-replace of the credential pair.
func (r *appRepo) ReplaceCredentials(ctx context.Context, id uuid.UUID, expectedVersion int64, clientID, secretHash, secretPrefix string) (bool, error) {
	query := `
		UPDATE applications
		SET client_id = $3, client_secret_hash = $4, client_secret_prefix = $5,
		    credentials_version = credentials_version + 1,
		    credentials_issued_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND credentials_version = $2`

	result, err := r.pool.Exec(ctx, query, id, expectedVersion, clientID, secretHash, secretPrefix)
	if err != nil {
		return false, mapWriteError(err)
	}
	return result.RowsAffected() == 1, nil
}

// Delete removes an application. Plans, reviews and subscriptions cascade.
func (r *appRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	return err
}

const publicAppColumns = `a.id, a.name, a.description, a.homepage_url, a.logo_url, a.verification_status, a.created_at`

// ListListed returns one page of published and listed applications and the
// total number of matches.
func (r *appRepo) ListListed(ctx context.Context, q models.ListingQuery) ([]*models.PublicApplication, int64, error) {
	where, args := listingFilter(q)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM applications a WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + publicAppColumns + `
		FROM applications a
		LEFT JOIN (
			SELECT app_id, AVG(rating) AS avg_rating FROM app_reviews GROUP BY app_id
		) r ON r.app_id = a.id
		WHERE ` + where + `
		ORDER BY ` + listingOrder(q.Sort) + fmt.Sprintf(`
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, q.PerPage, q.Offset())

	var apps []*models.PublicApplication
	if err := pgxscan.Select(ctx, r.pool, &apps, query, args...); err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

// GetListed retrieves one application if it is published and listed.
func (r *appRepo) GetListed(ctx context.Context, id uuid.UUID) (*models.PublicApplication, error) {
	var app models.PublicApplication
	err := pgxscan.Get(ctx, r.pool, &app,
		`SELECT `+publicAppColumns+` FROM applications a WHERE a.id = $1 AND a.is_published AND a.is_listed`, id)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func listingFilter(q models.ListingQuery) (string, []any) {
	clauses := []string{"a.is_published", "a.is_listed"}
	var args []any

	if search := strings.TrimSpace(q.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		clauses = append(clauses, fmt.Sprintf("(a.name ILIKE $%d OR a.description ILIKE $%d)", len(args), len(args)))
	}
	if q.VerifiedOnly {
		args = append(args, models.VerificationVerified)
		clauses = append(clauses, fmt.Sprintf("a.verification_status = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func listingOrder(sort models.ListingSort) string {
	switch sort {
	case models.SortByName:
		return "a.name ASC, a.id ASC"
	case models.SortByRating:
		return "r.avg_rating DESC NULLS LAST, a.created_at DESC, a.id ASC"
	default:
		return "a.created_at DESC, a.id ASC"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Compile-time check to ensure appRepo implements ApplicationRepository.
var _ ApplicationRepository = (*appRepo)(nil)
