package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
	"github.com/ervin210/oauth-app-marketplace/internal/rating"
	"github.com/ervin210/oauth-app-marketplace/internal/repository"
)

// ReviewService defines review operations.
type ReviewService interface {
	Submit(ctx context.Context, req SubmitReviewRequest) (*models.Review, error)
	Edit(ctx context.Context, userID, appID, reviewID uuid.UUID, req EditReviewRequest) (*models.Review, error)
	Delete(ctx context.Context, userID, appID, reviewID uuid.UUID) error
	List(ctx context.Context, appID uuid.UUID, page, perPage int) ([]*models.Review, int64, error)
	Summary(ctx context.Context, appID uuid.UUID) (rating.Summary, error)
}

// SubmitReviewRequest is a review submission. Rating is the number as the
// client sent it; it is converted only after the duplicate check.
type SubmitReviewRequest struct {
	AppID  uuid.UUID
	UserID uuid.UUID
	Rating float64
	Text   *string
}

// EditReviewRequest replaces the rating and text of a review.
type EditReviewRequest struct {
	Rating int
	Text   *string
}

type reviewService struct {
	appRepo    repository.ApplicationRepository
	reviewRepo repository.ReviewRepository
	audit      AuditService
	logger     *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(
	appRepo repository.ApplicationRepository,
	reviewRepo repository.ReviewRepository,
	audit AuditService,
	logger *slog.Logger,
) ReviewService {
	return &reviewService{
		appRepo:    appRepo,
		reviewRepo: reviewRepo,
		audit:      audit,
		logger:     logger,
	}
}

func (s *reviewService) Submit(ctx context.Context, req SubmitReviewRequest) (*models.Review, error) {
	if _, err := s.publishedApp(ctx, req.AppID); err != nil {
		return nil, err
	}

	existing, err := s.reviewRepo.ListEntries(ctx, req.AppID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}

	// A repeat reviewer is rejected whatever the rating says.
	value, parseErr := rating.ParseRating(req.Rating)
	accepted, err := rating.ValidateSubmission(existing, rating.Candidate{
		UserID: req.UserID,
		Rating: value,
		Text:   req.Text,
	})
	switch {
	case errors.Is(err, rating.ErrDuplicateReview):
		return nil, reviewError(err)
	case parseErr != nil:
		return nil, reviewError(parseErr)
	case err != nil:
		return nil, reviewError(err)
	}

	review := &models.Review{
		ID:     uuid.New(),
		AppID:  req.AppID,
		UserID: accepted.UserID,
		Rating: accepted.Rating,
		Text:   accepted.Text,
	}
	// The unique constraint catches a concurrent submission that passed validation.
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		if errors.Is(err, rating.ErrDuplicateReview) {
			return nil, reviewError(err)
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	s.auditLog(ctx, req.UserID, models.AuditEventReviewCreated, review, nil)
	return review, nil
}

func (s *reviewService) Edit(ctx context.Context, userID, appID, reviewID uuid.UUID, req EditReviewRequest) (*models.Review, error) {
	review, err := s.authoredReview(ctx, userID, appID, reviewID)
	if err != nil {
		return nil, err
	}

	accepted, err := rating.ValidateEdit(review.Entry(), req.Rating, req.Text)
	if err != nil {
		return nil, reviewError(err)
	}

	previous := review.Rating
	review.Rating = accepted.Rating
	review.Text = accepted.Text
	if err := s.reviewRepo.Update(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}

	s.auditLog(ctx, userID, models.AuditEventReviewUpdated, review, map[string]any{"previous_rating": previous})
	return review, nil
}

func (s *reviewService) Delete(ctx context.Context, userID, appID, reviewID uuid.UUID) error {
	review, err := s.authoredReview(ctx, userID, appID, reviewID)
	if err != nil {
		return err
	}

	if err := s.reviewRepo.Delete(ctx, review.ID); err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}

	s.auditLog(ctx, userID, models.AuditEventReviewDeleted, review, nil)
	return nil
}

func (s *reviewService) List(ctx context.Context, appID uuid.UUID, page, perPage int) ([]*models.Review, int64, error) {
	if _, err := s.publishedApp(ctx, appID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}

	total, err := s.reviewRepo.CountByApp(ctx, appID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	reviews, err := s.reviewRepo.ListByApp(ctx, appID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, total, nil
}

func (s *reviewService) Summary(ctx context.Context, appID uuid.UUID) (rating.Summary, error) {
	if _, err := s.publishedApp(ctx, appID); err != nil {
		return rating.Summary{}, err
	}

	entries, err := s.reviewRepo.ListEntries(ctx, appID)
	if err != nil {
		return rating.Summary{}, fmt.Errorf("failed to load reviews: %w", err)
	}

	summary := rating.Summarize(entries)
	if summary.Skipped > 0 {
		s.logger.WarnContext(ctx, "stored ratings out of range",
			slog.String("app_id", appID.String()),
			slog.Int("skipped", summary.Skipped),
		)
	}
	return summary, nil
}

// publishedApp loads an application that accepts and shows reviews.
func (s *reviewService) publishedApp(ctx context.Context, appID uuid.UUID) (*models.Application, error) {
	app, err := s.appRepo.GetByID(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if app == nil || !app.IsPublished {
		return nil, apierrors.NewNotFoundError("Application")
	}
	return app, nil
}

func (s *reviewService) authoredReview(ctx context.Context, userID, appID, reviewID uuid.UUID) (*models.Review, error) {
	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	if review == nil || review.AppID != appID {
		return nil, apierrors.NewNotFoundError("Review")
	}
	if review.UserID != userID {
		return nil, apierrors.ErrForbidden.WithMessage("Only the author can change this review")
	}
	return review, nil
}

func (s *reviewService) auditLog(ctx context.Context, actorID uuid.UUID, event models.AuditEvent, review *models.Review, extra map[string]any) {
	metadata := map[string]any{"app_id": review.AppID, "rating": review.Rating}
	for k, v := range extra {
		metadata[k] = v
	}
	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		ActorID:      &actorID,
		Event:        event,
		ResourceType: models.ResourceTypeReview,
		ResourceID:   review.ID,
		Metadata:     metadata,
	})
}

// reviewError maps aggregator validation errors to API errors.
func reviewError(err error) error {
	if errors.Is(err, rating.ErrDuplicateReview) {
		return apierrors.ErrDuplicateReview
	}
	var invalid *rating.InvalidRatingError
	if errors.As(err, &invalid) {
		return apierrors.NewInvalidRatingError(invalid.Value)
	}
	return err
}

// Compile-time check to ensure reviewService implements ReviewService.
var _ ReviewService = (*reviewService)(nil)
