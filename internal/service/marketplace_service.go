package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ervin210/oauth-app-marketplace/internal/config"
	"github.com/ervin210/oauth-app-marketplace/internal/models"
	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
	"github.com/ervin210/oauth-app-marketplace/internal/rating"
	"github.com/ervin210/oauth-app-marketplace/internal/repository"
)

// MarketplaceService serves the public application catalogue.
type MarketplaceService interface {
	List(ctx context.Context, q models.ListingQuery) ([]*models.ListedApp, int64, error)
	Get(ctx context.Context, appID uuid.UUID) (*models.AppDetail, error)
	// NormalizeQuery fills in paging defaults and clamps the page size.
	NormalizeQuery(q models.ListingQuery) models.ListingQuery
}

type marketplaceService struct {
	appRepo    repository.ApplicationRepository
	reviewRepo repository.ReviewRepository
	planRepo   repository.PlanRepository
	cfg        config.MarketplaceConfig
}

// NewMarketplaceService creates a new marketplace service.
func NewMarketplaceService(
	appRepo repository.ApplicationRepository,
	reviewRepo repository.ReviewRepository,
	planRepo repository.PlanRepository,
	cfg config.MarketplaceConfig,
) MarketplaceService {
	return &marketplaceService{
		appRepo:    appRepo,
		reviewRepo: reviewRepo,
		planRepo:   planRepo,
		cfg:        cfg,
	}
}

func (s *marketplaceService) NormalizeQuery(q models.ListingQuery) models.ListingQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = s.cfg.DefaultPageSize
	}
	if q.PerPage > s.cfg.MaxPageSize {
		q.PerPage = s.cfg.MaxPageSize
	}
	if !q.Sort.IsValid() {
		q.Sort = models.SortByNewest
	}
	return q
}

func (s *marketplaceService) List(ctx context.Context, q models.ListingQuery) ([]*models.ListedApp, int64, error) {
	q = s.NormalizeQuery(q)

	apps, total, err := s.appRepo.ListListed(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.ID)
	}
	entries, err := s.reviewRepo.ListEntriesByApps(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load ratings: %w", err)
	}

	listed := make([]*models.ListedApp, 0, len(apps))
	for _, app := range apps {
		listed = append(listed, &models.ListedApp{
			PublicApplication: app,
			Rating:            rating.Summarize(entries[app.ID]),
		})
	}
	return listed, total, nil
}

func (s *marketplaceService) Get(ctx context.Context, appID uuid.UUID) (*models.AppDetail, error) {
	app, err := s.appRepo.GetListed(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if app == nil {
		return nil, apierrors.NewNotFoundError("Application")
	}

	entries, err := s.reviewRepo.ListEntries(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}

	plans, err := s.planRepo.ListByApp(ctx, appID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	if plans == nil {
		plans = []*models.PricingPlan{}
	}

	return &models.AppDetail{
		PublicApplication: app,
		Rating:            rating.Summarize(entries),
		Plans:             plans,
	}, nil
}

// Compile-time check to ensure marketplaceService implements MarketplaceService.
var _ MarketplaceService = (*marketplaceService)(nil)
