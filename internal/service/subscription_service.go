package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
	"github.com/ervin210/oauth-app-marketplace/internal/repository"
)

// SubscriptionService defines subscription operations.
type SubscriptionService interface {
	Subscribe(ctx context.Context, userID uuid.UUID, req SubscribeRequest) (*models.Subscription, error)
	Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, userID uuid.UUID) ([]*models.Subscription, error)
}

// SubscribeRequest is the request for subscribing to an application plan.
type SubscribeRequest struct {
	AppID  uuid.UUID `json:"app_id" validate:"required"`
	PlanID uuid.UUID `json:"plan_id" validate:"required"`
}

type subscriptionService struct {
	appRepo  repository.ApplicationRepository
	planRepo repository.PlanRepository
	subRepo  repository.SubscriptionRepository
	audit    AuditService
	logger   *slog.Logger
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(
	appRepo repository.ApplicationRepository,
	planRepo repository.PlanRepository,
	subRepo repository.SubscriptionRepository,
	audit AuditService,
	logger *slog.Logger,
) SubscriptionService {
	return &subscriptionService{
		appRepo:  appRepo,
		planRepo: planRepo,
		subRepo:  subRepo,
		audit:    audit,
		logger:   logger,
	}
}

func (s *subscriptionService) Subscribe(ctx context.Context, userID uuid.UUID, req SubscribeRequest) (*models.Subscription, error) {
	app, err := s.appRepo.GetByID(ctx, req.AppID)
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if app == nil || !app.IsPublished {
		return nil, apierrors.NewNotFoundError("Application")
	}

	plan, err := s.planRepo.GetByID(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil || plan.AppID != app.ID || !plan.IsPublic {
		return nil, apierrors.NewNotFoundError("Pricing plan")
	}

	planID := plan.ID
	sub := &models.Subscription{
		ID:     uuid.New(),
		UserID: userID,
		AppID:  app.ID,
		PlanID: &planID,
		Status: models.SubscriptionActive,
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	s.auditLog(ctx, userID, models.AuditEventSubscriptionCreated, sub)
	return sub, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.subRepo.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub == nil || sub.UserID != userID {
		return nil, apierrors.NewNotFoundError("Subscription")
	}

	cancelled, err := s.subRepo.Cancel(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}
	if !cancelled {
		return nil, apierrors.NewConflictError(fmt.Sprintf("Subscription is %s and cannot be cancelled", sub.Status))
	}

	updated, err := s.subRepo.GetByID(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload subscription: %w", err)
	}
	if updated == nil {
		return nil, apierrors.NewNotFoundError("Subscription")
	}

	s.auditLog(ctx, userID, models.AuditEventSubscriptionCancelled, updated)
	return updated, nil
}

func (s *subscriptionService) List(ctx context.Context, userID uuid.UUID) ([]*models.Subscription, error) {
	subs, err := s.subRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *subscriptionService) auditLog(ctx context.Context, actorID uuid.UUID, event models.AuditEvent, sub *models.Subscription) {
	metadata := map[string]any{"app_id": sub.AppID}
	if sub.PlanID != nil {
		metadata["plan_id"] = *sub.PlanID
	}
	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		ActorID:      &actorID,
		Event:        event,
		ResourceType: models.ResourceTypeSubscription,
		ResourceID:   sub.ID,
		Metadata:     metadata,
	})
}

// Compile-time check to ensure subscriptionService implements SubscriptionService.
var _ SubscriptionService = (*subscriptionService)(nil)
