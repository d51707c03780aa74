package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ervin210/oauth-app-marketplace/internal/middleware"
	"github.com/ervin210/oauth-app-marketplace/internal/models"
	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
	"github.com/ervin210/oauth-app-marketplace/internal/pkg/response"
	"github.com/ervin210/oauth-app-marketplace/internal/service"
)

// AppHandler handles application management requests from owners.
type AppHandler struct {
	appService   service.AppService
	auditService service.AuditService
	validate     *validator.Validate
}

// NewAppHandler creates a new application handler.
func NewAppHandler(appService service.AppService, auditService service.AuditService) *AppHandler {
	return &AppHandler{
		appService:   appService,
		auditService: auditService,
		validate:     newValidator(),
	}
}

// Routes returns a chi router with application routes.
func (h *AppHandler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// Register adds the application routes to r. Every route needs a user.
func (h *AppHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuthenticated)

		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/publication", h.SetPublication)
		r.Post("/{id}/verification", h.RequestVerification)
		r.Post("/{id}/credentials", h.RotateCredentials)
		r.Get("/{id}/audit", h.Audit)
	})
}

// Create handles POST /v1/apps
func (h *AppHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req service.CreateAppRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}
	req.OwnerID = userID

	app, err := h.appService.Create(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Created(w, app)
}

// List handles GET /v1/apps
func (h *AppHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	apps, err := h.appService.List(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	if apps == nil {
		apps = []*models.Application{}
	}

	response.OK(w, apps)
}

// Get handles GET /v1/apps/{id}
func (h *AppHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	app, err := h.appService.Get(r.Context(), userID, appID)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, app)
}

// Update handles PATCH /v1/apps/{id}
func (h *AppHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	var req service.UpdateAppRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	app, err := h.appService.Update(r.Context(), userID, appID, req)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, app)
}

// Delete handles DELETE /v1/apps/{id}
func (h *AppHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	if err := h.appService.Delete(r.Context(), userID, appID); err != nil {
		response.Error(w, err)
		return
	}

	response.NoContent(w)
}

// SetPublication handles POST /v1/apps/{id}/publication
func (h *AppHandler) SetPublication(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	var req service.PublicationRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	app, err := h.appService.SetPublication(r.Context(), userID, appID, req)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, app)
}

// RequestVerification handles POST /v1/apps/{id}/verification
func (h *AppHandler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	app, err := h.appService.RequestVerification(r.Context(), userID, appID)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, app)
}

// RotateCredentials handles POST /v1/apps/{id}/credentials.
// The client secret is only ever returned by this response.
func (h *AppHandler) RotateCredentials(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	creds, err := h.appService.RotateCredentials(r.Context(), userID, appID)
	if err != nil {
		switch code := apierrors.AsAPIError(err).Code; code {
		case apierrors.ErrCredentialGeneration.Code, apierrors.ErrCredentialRetriesExhausted.Code:
			middleware.IncrementCredentialFailure(code)
		}
		response.Error(w, err)
		return
	}

	middleware.IncrementCredentialsRotated()
	w.Header().Set("Cache-Control", "no-store")
	response.Created(w, creds)
}

// Audit handles GET /v1/apps/{id}/audit
func (h *AppHandler) Audit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	// Ownership check.
	if _, err := h.appService.Get(r.Context(), userID, appID); err != nil {
		response.Error(w, err)
		return
	}

	filter := service.AuditFilter{Cursor: r.URL.Query().Get("cursor")}
	if event := r.URL.Query().Get("event"); event != "" {
		e := models.AuditEvent(event)
		filter.Event = &e
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			response.Error(w, apierrors.NewValidationError("limit", "must be a positive integer"))
			return
		}
		filter.Limit = n
	}

	logs, next, err := h.auditService.Query(r.Context(), models.ResourceTypeApp, appID, filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}

	response.JSONWithMeta(w, http.StatusOK, logs, &response.Meta{NextCursor: next})
}
