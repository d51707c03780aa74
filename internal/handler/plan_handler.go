package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ervin210/oauth-app-marketplace/internal/middleware"
	"github.com/ervin210/oauth-app-marketplace/internal/models"
	"github.com/ervin210/oauth-app-marketplace/internal/pkg/response"
	"github.com/ervin210/oauth-app-marketplace/internal/service"
)

// PlanHandler handles pricing plan requests. It is mounted under
// /v1/apps/{id}/plans.
type PlanHandler struct {
	planService service.PlanService
	validate    *validator.Validate
}

// NewPlanHandler creates a new pricing plan handler.
func NewPlanHandler(planService service.PlanService) *PlanHandler {
	return &PlanHandler{
		planService: planService,
		validate:    newValidator(),
	}
}

// Routes returns a chi router with pricing plan routes.
func (h *PlanHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuthenticated)
		r.Post("/", h.Create)
		r.Put("/{planID}", h.Update)
		r.Delete("/{planID}", h.Delete)
	})

	return r
}

// DeletePlanResponse reports the effect of a plan deletion.
type DeletePlanResponse struct {
	PlanID                uuid.UUID `json:"plan_id"`
	OrphanedSubscriptions int64     `json:"orphaned_subscriptions"`
}

// List handles GET /v1/apps/{id}/plans
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	var viewer *uuid.UUID
	if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
		viewer = &userID
	}

	plans, err := h.planService.List(r.Context(), viewer, appID)
	if err != nil {
		response.Error(w, err)
		return
	}
	if plans == nil {
		plans = []*models.PricingPlan{}
	}

	response.OK(w, plans)
}

// Create handles POST /v1/apps/{id}/plans
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	var req service.PlanRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	plan, err := h.planService.Create(r.Context(), userID, appID, req)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Created(w, plan)
}

// Update handles PUT /v1/apps/{id}/plans/{planID}
func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	planID, err := uuidParam(r, "planID")
	if err != nil {
		response.Error(w, err)
		return
	}

	var req service.PlanRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	plan, err := h.planService.Update(r.Context(), userID, appID, planID, req)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, plan)
}

// Delete handles DELETE /v1/apps/{id}/plans/{planID}
func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	planID, err := uuidParam(r, "planID")
	if err != nil {
		response.Error(w, err)
		return
	}

	orphaned, err := h.planService.Delete(r.Context(), userID, appID, planID)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, DeletePlanResponse{PlanID: planID, OrphanedSubscriptions: orphaned})
}
