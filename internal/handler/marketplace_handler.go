package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
	"github.com/ervin210/oauth-app-marketplace/internal/pkg/response"
	"github.com/ervin210/oauth-app-marketplace/internal/service"
)

// MarketplaceHandler serves the public catalogue.
type MarketplaceHandler struct {
	marketplaceService service.MarketplaceService
}

// NewMarketplaceHandler creates a new marketplace handler.
func NewMarketplaceHandler(marketplaceService service.MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{marketplaceService: marketplaceService}
}

// Routes returns a chi router with marketplace routes.
func (h *MarketplaceHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/apps", h.List)
	r.Get("/apps/{id}", h.Get)
	return r
}

// List handles GET /v1/marketplace/apps?q=&verified=&sort=&page=&per_page=
func (h *MarketplaceHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	q := models.ListingQuery{
		Search: strings.TrimSpace(query.Get("q")),
		Sort:   models.ListingSort(query.Get("sort")),
	}
	if q.Sort != "" && !q.Sort.IsValid() {
		response.Error(w, apierrors.NewValidationError("sort", "must be one of: rating newest name"))
		return
	}
	if v := query.Get("verified"); v != "" {
		verified, err := strconv.ParseBool(v)
		if err != nil {
			response.Error(w, apierrors.NewValidationError("verified", "must be a boolean"))
			return
		}
		q.VerifiedOnly = verified
	}
	q.Page, _ = strconv.Atoi(query.Get("page"))
	q.PerPage, _ = strconv.Atoi(query.Get("per_page"))
	q = h.marketplaceService.NormalizeQuery(q)

	apps, total, err := h.marketplaceService.List(r.Context(), q)
	if err != nil {
		response.Error(w, err)
		return
	}
	if apps == nil {
		apps = []*models.ListedApp{}
	}

	response.JSONWithMeta(w, http.StatusOK, apps, response.NewPageMeta(q.Page, q.PerPage, total))
}

// Get handles GET /v1/marketplace/apps/{id}
func (h *MarketplaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	appID, err := uuidParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	detail, err := h.marketplaceService.Get(r.Context(), appID)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, detail)
}
