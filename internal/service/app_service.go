// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ervin210/oauth-app-marketplace/internal/credential"
	"github.com/ervin210/oauth-app-marketplace/internal/models"
	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
	"github.com/ervin210/oauth-app-marketplace/internal/repository"
)

// maxStoreRounds bounds how often a rotation is retried after the store
// reports a client ID collision the issuer could not see.
const maxStoreRounds = 3

// CredentialIssuer produces replacement credential pairs.
type CredentialIssuer interface {
	Regenerate(applicationID uuid.UUID, existing credential.ClientIDSet) (credential.Rotation, error)
}

// AppService defines application management operations for owners.
type AppService interface {
	Create(ctx context.Context, req CreateAppRequest) (*models.Application, error)
	Get(ctx context.Context, ownerID, appID uuid.UUID) (*models.Application, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]*models.Application, error)
	Update(ctx context.Context, ownerID, appID uuid.UUID, req UpdateAppRequest) (*models.Application, error)
	SetPublication(ctx context.Context, ownerID, appID uuid.UUID, req PublicationRequest) (*models.Application, error)
	RequestVerification(ctx context.Context, ownerID, appID uuid.UUID) (*models.Application, error)
	Delete(ctx context.Context, ownerID, appID uuid.UUID) error
	// RotateCredentials replaces the application's client pair. The returned
	// secret is never stored and cannot be retrieved again.
	RotateCredentials(ctx context.Context, ownerID, appID uuid.UUID) (*IssuedCredentials, error)
}

// CreateAppRequest is the request for registering an application.
type CreateAppRequest struct {
	OwnerID     uuid.UUID `json:"-"`
	Name        string    `json:"name" validate:"required,min=1,max=100"`
	Description string    `json:"description" validate:"max=2000"`
	HomepageURL string    `json:"homepage_url" validate:"required,http_url"`
	CallbackURL string    `json:"callback_url" validate:"required,http_url"`
	LogoURL     *string   `json:"logo_url,omitempty" validate:"omitempty,http_url"`
}

// UpdateAppRequest changes application details. Nil fields are left as is.
type UpdateAppRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	HomepageURL *string `json:"homepage_url,omitempty" validate:"omitempty,http_url"`
	CallbackURL *string `json:"callback_url,omitempty" validate:"omitempty,http_url"`
	LogoURL     *string `json:"logo_url,omitempty" validate:"omitempty,http_url"`
}

// PublicationRequest sets the marketplace visibility flags.
type PublicationRequest struct {
	IsPublished bool `json:"is_published"`
	IsListed    bool `json:"is_listed"`
}

// IssuedCredentials is returned exactly once per rotation.
type IssuedCredentials struct {
	ApplicationID      uuid.UUID `json:"application_id"`
	ClientID           string    `json:"client_id"`
	ClientSecret       string    `json:"client_secret"`
	CredentialsVersion int64     `json:"credentials_version"`
	IssuedAt           time.Time `json:"issued_at"`
}

type appService struct {
	appRepo repository.ApplicationRepository
	issuer  CredentialIssuer
	audit   AuditService
	logger  *slog.Logger
}

// NewAppService creates a new application service.
func NewAppService(
	appRepo repository.ApplicationRepository,
	issuer CredentialIssuer,
	audit AuditService,
	logger *slog.Logger,
) AppService {
	return &appService{
		appRepo: appRepo,
		issuer:  issuer,
		audit:   audit,
		logger:  logger,
	}
}

func (s *appService) Create(ctx context.Context, req CreateAppRequest) (*models.Application, error) {
	app := &models.Application{
		ID:                 uuid.New(),
		OwnerID:            req.OwnerID,
		Name:               req.Name,
		Description:        req.Description,
		HomepageURL:        req.HomepageURL,
		CallbackURL:        req.CallbackURL,
		LogoURL:            req.LogoURL,
		VerificationStatus: models.VerificationUnverified,
	}

	if err := s.appRepo.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	s.auditLog(ctx, req.OwnerID, models.AuditEventAppCreated, app.ID, map[string]any{"name": app.Name})
	return app, nil
}

func (s *appService) Get(ctx context.Context, ownerID, appID uuid.UUID) (*models.Application, error) {
	app, err := s.appRepo.GetByID(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if app == nil || app.OwnerID != ownerID {
		return nil, apierrors.NewNotFoundError("Application")
	}
	return app, nil
}

func (s *appService) List(ctx context.Context, ownerID uuid.UUID) ([]*models.Application, error) {
	apps, err := s.appRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, nil
}

func (s *appService) Update(ctx context.Context, ownerID, appID uuid.UUID, req UpdateAppRequest) (*models.Application, error) {
	app, err := s.Get(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}

	changed := []string{}
	if req.Name != nil {
		app.Name = *req.Name
		changed = append(changed, "name")
	}
	if req.Description != nil {
		app.Description = *req.Description
		changed = append(changed, "description")
	}
	if req.HomepageURL != nil {
		app.HomepageURL = *req.HomepageURL
		changed = append(changed, "homepage_url")
	}
	if req.CallbackURL != nil {
		app.CallbackURL = *req.CallbackURL
		changed = append(changed, "callback_url")
	}
	if req.LogoURL != nil {
		app.LogoURL = req.LogoURL
		changed = append(changed, "logo_url")
	}
	if len(changed) == 0 {
		return app, nil
	}

	if err := s.appRepo.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}

	s.auditLog(ctx, ownerID, models.AuditEventAppUpdated, app.ID, map[string]any{"fields": changed})
	return app, nil
}

func (s *appService) SetPublication(ctx context.Context, ownerID, appID uuid.UUID, req PublicationRequest) (*models.Application, error) {
	app, err := s.Get(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}

	if err := app.SetPublication(req.IsPublished, req.IsListed); err != nil {
		return nil, apierrors.NewValidationError("is_listed", err.Error())
	}

	if err := s.appRepo.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}

	s.auditLog(ctx, ownerID, models.AuditEventAppUpdated, app.ID, map[string]any{
		"is_published": app.IsPublished,
		"is_listed":    app.IsListed,
	})
	return app, nil
}

func (s *appService) RequestVerification(ctx context.Context, ownerID, appID uuid.UUID) (*models.Application, error) {
	app, err := s.Get(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}

	if !app.VerificationStatus.CanTransitionTo(models.VerificationPending) {
		return nil, apierrors.NewConflictError(
			fmt.Sprintf("Verification cannot be requested while the application is %s", app.VerificationStatus))
	}

	previous := app.VerificationStatus
	app.VerificationStatus = models.VerificationPending
	if err := s.appRepo.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}

	s.auditLog(ctx, ownerID, models.AuditEventAppUpdated, app.ID, map[string]any{
		"verification_status": app.VerificationStatus,
		"previous_status":     previous,
	})
	return app, nil
}

func (s *appService) Delete(ctx context.Context, ownerID, appID uuid.UUID) error {
	app, err := s.Get(ctx, ownerID, appID)
	if err != nil {
		return err
	}

	if err := s.appRepo.Delete(ctx, app.ID); err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}

	s.auditLog(ctx, ownerID, models.AuditEventAppDeleted, app.ID, map[string]any{"name": app.Name})
	return nil
}

func (s *appService) RotateCredentials(ctx context.Context, ownerID, appID uuid.UUID) (*IssuedCredentials, error) {
	app, err := s.Get(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}

	// The current ID is excluded so a rotation never hands back the pair it replaces.
	existing := credential.NewClientIDs(app.CurrentClientID())

	for round := 1; round <= maxStoreRounds; round++ {
		rotation, err := s.issuer.Regenerate(app.ID, existing)
		if err != nil {
			return nil, s.credentialFailure(ctx, app.ID, err)
		}
		pair := rotation.Pair

		hash, err := credential.HashSecret(pair.ClientSecret)
		if err != nil {
			return nil, s.credentialFailure(ctx, app.ID, err)
		}

		replaced, err := s.appRepo.ReplaceCredentials(ctx, app.ID, app.CredentialsVersion,
			pair.ClientID, hash, credential.SecretPrefix(pair.ClientSecret))
		if errors.Is(err, repository.ErrClientIDTaken) {
			s.logger.WarnContext(ctx, "client id collided in store, retrying",
				slog.String("app_id", app.ID.String()),
				slog.Int("round", round),
			)
			existing.Add(pair.ClientID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to store credentials: %w", err)
		}
		if !replaced {
			return nil, apierrors.NewConflictError("Credentials were rotated concurrently. Reload the application to see the current pair.")
		}

		issued := &IssuedCredentials{
			ApplicationID:      app.ID,
			ClientID:           pair.ClientID,
			ClientSecret:       pair.ClientSecret,
			CredentialsVersion: app.CredentialsVersion + 1,
			IssuedAt:           time.Now().UTC(),
		}

		s.auditLog(ctx, ownerID, models.AuditEventAppCredentialsRotated, app.ID, map[string]any{
			"client_id":           pair.ClientID,
			"credentials_version": issued.CredentialsVersion,
			"previous_client_id":  app.CurrentClientID(),
		})
		return issued, nil
	}

	return nil, s.credentialFailure(ctx, app.ID, &credential.ExhaustedRetriesError{Attempts: maxStoreRounds})
}

// credentialFailure logs an issuance failure for operators and converts it to
// an API error.
func (s *appService) credentialFailure(ctx context.Context, appID uuid.UUID, err error) error {
	var exhausted *credential.ExhaustedRetriesError
	if errors.As(err, &exhausted) {
		s.logger.ErrorContext(ctx, "credential issuance exhausted retries",
			slog.String("app_id", appID.String()),
			slog.Int("attempts", exhausted.Attempts),
		)
		return apierrors.ErrCredentialRetriesExhausted
	}

	var generation *credential.GenerationError
	if errors.As(err, &generation) {
		s.logger.ErrorContext(ctx, "credential entropy unavailable",
			slog.String("app_id", appID.String()),
			slog.String("error", err.Error()),
		)
		return apierrors.ErrCredentialGeneration
	}

	return fmt.Errorf("failed to issue credentials: %w", err)
}

func (s *appService) auditLog(ctx context.Context, actorID uuid.UUID, event models.AuditEvent, appID uuid.UUID, metadata map[string]any) {
	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		ActorID:      &actorID,
		Event:        event,
		ResourceType: models.ResourceTypeApp,
		ResourceID:   appID,
		Metadata:     metadata,
	})
}

// Compile-time check to ensure appService implements AppService.
var _ AppService = (*appService)(nil)
