package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ervin210/oauth-app-marketplace/internal/middleware"
	"github.com/ervin210/oauth-app-marketplace/internal/models"
	"github.com/ervin210/oauth-app-marketplace/internal/pkg/response"
	"github.com/ervin210/oauth-app-marketplace/internal/service"
)

// SubscriptionHandler handles the signed-in user's subscriptions.
type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
	validate            *validator.Validate
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(subscriptionService service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		validate:            newValidator(),
	}
}

// Routes returns a chi router with subscription routes.
func (h *SubscriptionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireAuthenticated)

	r.Post("/", h.Subscribe)
	r.Get("/", h.List)
	r.Post("/{id}/cancel", h.Cancel)

	return r
}

// Subscribe handles POST /v1/subscriptions
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req service.SubscribeRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	sub, err := h.subscriptionService.Subscribe(r.Context(), userID, req)
	if err != nil {
		response.Error(w, err)
		return
	}

	middleware.IncrementSubscriptionsCreated()
	response.Created(w, sub)
}

// List handles GET /v1/subscriptions
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	subs, err := h.subscriptionService.List(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}

	response.OK(w, subs)
}

// Cancel handles POST /v1/subscriptions/{id}/cancel
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	subID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	sub, err := h.subscriptionService.Cancel(r.Context(), userID, subID)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, sub)
}
