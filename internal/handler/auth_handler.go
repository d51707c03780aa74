package handler

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ervin210/oauth-app-marketplace/internal/middleware"
	"github.com/ervin210/oauth-app-marketplace/internal/models"
	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
	"github.com/ervin210/oauth-app-marketplace/internal/pkg/response"
	"github.com/ervin210/oauth-app-marketplace/internal/service"
)

// OAuthStateCookie carries the login state between redirect and callback.
const OAuthStateCookie = "appmarket_oauth_state"

// AuthHandler handles marketplace sign-in through OAuth providers.
type AuthHandler struct {
	oauthService service.OAuthService
	auth         middleware.AuthConfig
	dashboardURL string
	logger       *slog.Logger
}

// NewAuthHandler creates a new auth handler. After a browser login the user
// is redirected to dashboardURL; API clients receive the session as JSON.
func NewAuthHandler(oauthService service.OAuthService, auth middleware.AuthConfig, dashboardURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		oauthService: oauthService,
		auth:         auth,
		dashboardURL: dashboardURL,
		logger:       logger,
	}
}

// Routes returns a chi router with auth routes.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/providers", h.Providers)
	r.Post("/logout", h.Logout)
	r.Get("/{provider}", h.Login)
	r.Get("/{provider}/callback", h.Callback)
	return r
}

// LoginResponse is returned to API clients after a successful login.
type LoginResponse struct {
	User         *models.User `json:"user"`
	SessionToken string       `json:"session_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// Providers handles GET /auth/providers
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string][]string{"providers": h.oauthService.GetSupportedProviders()})
}

// Login handles GET /auth/{provider}
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	state, err := newState()
	if err != nil {
		response.Error(w, apierrors.ErrServiceUnavailable)
		return
	}

	url, err := h.oauthService.GetAuthURL(provider, state)
	if err != nil {
		response.NotFound(w, "Provider")
		return
	}

	session, _ := h.auth.Store.Get(r, OAuthStateCookie)
	session.Values["state"] = state
	session.Options.MaxAge = int((10 * time.Minute).Seconds())
	if err := session.Save(r, w); err != nil {
		response.Error(w, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// Callback handles GET /auth/{provider}/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	stateSession, _ := h.auth.Store.Get(r, OAuthStateCookie)
	saved, _ := stateSession.Values["state"].(string)
	if saved == "" || saved != r.URL.Query().Get("state") {
		response.BadRequest(w, "Invalid OAuth state")
		return
	}
	// The state is single use.
	stateSession.Options.MaxAge = -1
	_ = stateSession.Save(r, w)

	code := r.URL.Query().Get("code")
	if code == "" {
		response.BadRequest(w, "Missing authorization code")
		return
	}

	user, session, err := h.oauthService.HandleCallback(r.Context(), provider, code)
	if err != nil {
		h.logger.WarnContext(r.Context(), "oauth callback failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		response.Error(w, apierrors.ErrUnauthorized.WithMessage("Sign-in failed"))
		return
	}

	if err := middleware.SaveSession(h.auth, w, r, session.ID); err != nil {
		response.Error(w, err)
		return
	}

	if h.dashboardURL != "" && !wantsJSON(r) {
		http.Redirect(w, r, h.dashboardURL, http.StatusFound)
		return
	}
	response.OK(w, LoginResponse{User: user, SessionToken: session.ID, ExpiresAt: session.ExpiresAt})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromRequest(h.auth, r)
	if err := h.oauthService.Logout(r.Context(), sessionID); err != nil {
		response.Error(w, err)
		return
	}
	if h.auth.Store != nil {
		_ = middleware.ClearSession(h.auth, w, r)
	}
	response.NoContent(w)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
