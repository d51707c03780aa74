package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ervin210/oauth-app-marketplace/internal/middleware"
	"github.com/ervin210/oauth-app-marketplace/internal/models"
	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
	"github.com/ervin210/oauth-app-marketplace/internal/pkg/response"
	"github.com/ervin210/oauth-app-marketplace/internal/rating"
	"github.com/ervin210/oauth-app-marketplace/internal/service"
)

const (
	defaultReviewPageSize = 20
	maxReviewPageSize     = 100
)

// ReviewHandler handles review requests for one application. It is mounted
// under /v1/apps/{id}/reviews.
type ReviewHandler struct {
	reviewService service.ReviewService
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(reviewService service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// Routes returns a chi router with review routes.
func (h *ReviewHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/summary", h.Summary)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuthenticated)
		r.Post("/", h.Submit)
		r.Put("/{reviewID}", h.Edit)
		r.Delete("/{reviewID}", h.Delete)
	})

	return r
}

// ReviewHTTPRequest is the body for submitting or editing a review. Rating
// is decoded as a number so that 3.5 is rejected as a rating rather than as
// malformed JSON.
type ReviewHTTPRequest struct {
	Rating *float64 `json:"rating"`
	Text   *string  `json:"text,omitempty"`
}

var errMissingRating = apierrors.NewValidationError("rating", "rating is required")

func (req ReviewHTTPRequest) rating() (int, error) {
	if req.Rating == nil {
		return 0, errMissingRating
	}
	value, err := rating.ParseRating(*req.Rating)
	if err != nil {
		return 0, reviewInputError(err)
	}
	return value, nil
}

func reviewInputError(err error) error {
	var invalid *rating.InvalidRatingError
	if errors.As(err, &invalid) {
		return apierrors.NewInvalidRatingError(invalid.Value)
	}
	return err
}

// Submit handles POST /v1/apps/{id}/reviews
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	var req ReviewHTTPRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	// The range is checked by the service, after the duplicate check.
	if req.Rating == nil {
		response.Error(w, errMissingRating)
		return
	}

	review, err := h.reviewService.Submit(r.Context(), service.SubmitReviewRequest{
		AppID:  appID,
		UserID: userID,
		Rating: *req.Rating,
		Text:   req.Text,
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	middleware.IncrementReviewsSubmitted()
	response.Created(w, review)
}

// Edit handles PUT /v1/apps/{id}/reviews/{reviewID}
func (h *ReviewHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	reviewID, err := uuidParam(r, "reviewID")
	if err != nil {
		response.Error(w, err)
		return
	}

	var req ReviewHTTPRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	value, err := req.rating()
	if err != nil {
		response.Error(w, err)
		return
	}

	review, err := h.reviewService.Edit(r.Context(), userID, appID, reviewID, service.EditReviewRequest{
		Rating: value,
		Text:   req.Text,
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, review)
}

// Delete handles DELETE /v1/apps/{id}/reviews/{reviewID}
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	reviewID, err := uuidParam(r, "reviewID")
	if err != nil {
		response.Error(w, err)
		return
	}

	if err := h.reviewService.Delete(r.Context(), userID, appID, reviewID); err != nil {
		response.Error(w, err)
		return
	}

	response.NoContent(w)
}

// List handles GET /v1/apps/{id}/reviews
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	page, perPage := pagination(r, defaultReviewPageSize, maxReviewPageSize)

	reviews, total, err := h.reviewService.List(r.Context(), appID, page, perPage)
	if err != nil {
		response.Error(w, err)
		return
	}
	if reviews == nil {
		reviews = []*models.Review{}
	}

	response.JSONWithMeta(w, http.StatusOK, reviews, response.NewPageMeta(page, perPage, total))
}

// Summary handles GET /v1/apps/{id}/reviews/summary
func (h *ReviewHandler) Summary(w http.ResponseWriter, r *http.Request) {
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	summary, err := h.reviewService.Summary(r.Context(), appID)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, summary)
}
