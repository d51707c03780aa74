package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ervin210/oauth-app-marketplace/internal/pkg/response"
)

// API groups the handlers served under /v1.
type API struct {
	Apps          *AppHandler
	Reviews       *ReviewHandler
	Plans         *PlanHandler
	Subscriptions *SubscriptionHandler
	Marketplace   *MarketplaceHandler
}

// Routes returns the /v1 router. Authentication is expected to have run
// already; routes that need a user enforce it themselves.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{
			"name":    "OAuth App Marketplace API",
			"version": "1.0.0",
		})
	})

	r.Mount("/marketplace", a.Marketplace.Routes())
	r.Mount("/subscriptions", a.Subscriptions.Routes())

	r.Route("/apps", func(r chi.Router) {
		a.Apps.Register(r)
		r.Mount("/{id}/reviews", a.Reviews.Routes())
		r.Mount("/{id}/plans", a.Plans.Routes())
	})

	return r
}

// Pinger is a dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health handles GET /health. It only reports that the process is serving.
func Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

// Ready handles GET /ready by pinging every named dependency.
func Ready(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				status[name] = "unavailable"
				status["status"] = "error"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "connected"
		}

		response.JSON(w, code, status)
	}
}
