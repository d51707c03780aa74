package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
	"github.com/ervin210/oauth-app-marketplace/internal/repository"
)

// PlanService defines pricing plan operations.
type PlanService interface {
	Create(ctx context.Context, ownerID, appID uuid.UUID, req PlanRequest) (*models.PricingPlan, error)
	Update(ctx context.Context, ownerID, appID, planID uuid.UUID, req PlanRequest) (*models.PricingPlan, error)
	// Delete removes a plan and returns how many active subscriptions were orphaned.
	Delete(ctx context.Context, ownerID, appID, planID uuid.UUID) (int64, error)
	// List returns every plan to the owner and public plans of a published
	// application to anyone else. viewerID is nil for anonymous callers.
	List(ctx context.Context, viewerID *uuid.UUID, appID uuid.UUID) ([]*models.PricingPlan, error)
}

// PlanRequest is the request for creating or replacing a pricing plan.
type PlanRequest struct {
	Name            string   `json:"name" validate:"required,min=1,max=100"`
	PriceCents      *int64   `json:"price_cents" validate:"required,min=0"`
	Currency        string   `json:"currency" validate:"omitempty,len=3,alpha"`
	BillingInterval string   `json:"billing_interval" validate:"required,oneof=monthly yearly"`
	Features        []string `json:"features" validate:"max=50,dive,min=1,max=200"`
	IsPublic        *bool    `json:"is_public"`
}

func (r PlanRequest) apply(plan *models.PricingPlan) {
	plan.Name = r.Name
	plan.PriceCents = *r.PriceCents
	plan.Currency = strings.ToUpper(r.Currency)
	if plan.Currency == "" {
		plan.Currency = models.DefaultCurrency
	}
	plan.BillingInterval = models.BillingInterval(r.BillingInterval)
	plan.Features = append([]string{}, r.Features...)
	plan.IsPublic = r.IsPublic == nil || *r.IsPublic
}

type planService struct {
	appRepo  repository.ApplicationRepository
	planRepo repository.PlanRepository
	audit    AuditService
	logger   *slog.Logger
}

// NewPlanService creates a new pricing plan service.
func NewPlanService(
	appRepo repository.ApplicationRepository,
	planRepo repository.PlanRepository,
	audit AuditService,
	logger *slog.Logger,
) PlanService {
	return &planService{
		appRepo:  appRepo,
		planRepo: planRepo,
		audit:    audit,
		logger:   logger,
	}
}

func (s *planService) Create(ctx context.Context, ownerID, appID uuid.UUID, req PlanRequest) (*models.PricingPlan, error) {
	if _, err := s.ownedApp(ctx, ownerID, appID); err != nil {
		return nil, err
	}

	plan := &models.PricingPlan{ID: uuid.New(), AppID: appID}
	req.apply(plan)

	if err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	s.auditLog(ctx, ownerID, models.AuditEventPlanCreated, plan, nil)
	return plan, nil
}

func (s *planService) Update(ctx context.Context, ownerID, appID, planID uuid.UUID, req PlanRequest) (*models.PricingPlan, error) {
	plan, err := s.ownedPlan(ctx, ownerID, appID, planID)
	if err != nil {
		return nil, err
	}

	req.apply(plan)
	if err := s.planRepo.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}

	s.auditLog(ctx, ownerID, models.AuditEventPlanUpdated, plan, nil)
	return plan, nil
}

func (s *planService) Delete(ctx context.Context, ownerID, appID, planID uuid.UUID) (int64, error) {
	plan, err := s.ownedPlan(ctx, ownerID, appID, planID)
	if err != nil {
		return 0, err
	}

	orphaned, err := s.planRepo.Delete(ctx, plan.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete plan: %w", err)
	}
	if orphaned > 0 {
		s.logger.InfoContext(ctx, "plan deleted with active subscriptions",
			slog.String("plan_id", plan.ID.String()),
			slog.Int64("orphaned", orphaned),
		)
	}

	s.auditLog(ctx, ownerID, models.AuditEventPlanDeleted, plan, map[string]any{"orphaned_subscriptions": orphaned})
	return orphaned, nil
}

func (s *planService) List(ctx context.Context, viewerID *uuid.UUID, appID uuid.UUID) ([]*models.PricingPlan, error) {
	app, err := s.appRepo.GetByID(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	isOwner := app != nil && viewerID != nil && app.OwnerID == *viewerID
	if app == nil || (!isOwner && !app.IsPublished) {
		return nil, apierrors.NewNotFoundError("Application")
	}

	plans, err := s.planRepo.ListByApp(ctx, appID, !isOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (s *planService) ownedApp(ctx context.Context, ownerID, appID uuid.UUID) (*models.Application, error) {
	app, err := s.appRepo.GetByID(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if app == nil || app.OwnerID != ownerID {
		return nil, apierrors.NewNotFoundError("Application")
	}
	return app, nil
}

func (s *planService) ownedPlan(ctx context.Context, ownerID, appID, planID uuid.UUID) (*models.PricingPlan, error) {
	if _, err := s.ownedApp(ctx, ownerID, appID); err != nil {
		return nil, err
	}

	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil || plan.AppID != appID {
		return nil, apierrors.NewNotFoundError("Pricing plan")
	}
	return plan, nil
}

func (s *planService) auditLog(ctx context.Context, actorID uuid.UUID, event models.AuditEvent, plan *models.PricingPlan, extra map[string]any) {
	metadata := map[string]any{"app_id": plan.AppID, "name": plan.Name}
	for k, v := range extra {
		metadata[k] = v
	}
	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		ActorID:      &actorID,
		Event:        event,
		ResourceType: models.ResourceTypePlan,
		ResourceID:   plan.ID,
		Metadata:     metadata,
	})
}

// Compile-time check to ensure planService implements PlanService.
var _ PlanService = (*planService)(nil)
