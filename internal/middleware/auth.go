package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
	"github.com/ervin210/oauth-app-marketplace/internal/pkg/response"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "appmarket_session"

// sessionIDValue is the cookie session field holding the server-side session ID.
const sessionIDValue = "session_id"

// SessionValidator resolves a session ID to the signed-in user.
type SessionValidator func(ctx context.Context, sessionID string) (uuid.UUID, error)

// AuthConfig holds authentication middleware configuration.
type AuthConfig struct {
	// Store decodes the signed session cookie. Nil disables cookie sessions.
	Store sessions.Store
	// CookieName is the session cookie name.
	CookieName string
}

func (c AuthConfig) cookieName() string {
	if c.CookieName == "" {
		return DefaultCookieName
	}
	return c.CookieName
}

// NewSessionStore creates the signed cookie store for browser sessions.
func NewSessionStore(secret string, maxAge time.Duration, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// SaveSession writes the session ID into the session cookie.
func SaveSession(cfg AuthConfig, w http.ResponseWriter, r *http.Request, sessionID string) error {
	session, _ := cfg.Store.Get(r, cfg.cookieName())
	session.Values[sessionIDValue] = sessionID
	return session.Save(r, w)
}

// ClearSession expires the session cookie.
func ClearSession(cfg AuthConfig, w http.ResponseWriter, r *http.Request) error {
	session, _ := cfg.Store.Get(r, cfg.cookieName())
	delete(session.Values, sessionIDValue)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// SessionIDFromRequest returns the session ID from the Authorization header
// or, failing that, from the session cookie.
func SessionIDFromRequest(cfg AuthConfig, r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	if cfg.Store == nil {
		return ""
	}
	session, err := cfg.Store.Get(r, cfg.cookieName())
	if err != nil {
		return ""
	}
	id, _ := session.Values[sessionIDValue].(string)
	return id
}

func authenticate(cfg AuthConfig, validate SessionValidator, r *http.Request) (context.Context, bool) {
	sessionID := SessionIDFromRequest(cfg, r)
	if sessionID == "" || validate == nil {
		return nil, false
	}

	userID, err := validate(r.Context(), sessionID)
	if err != nil || userID == uuid.Nil {
		return nil, false
	}

	ctx := context.WithValue(r.Context(), UserIDKey, userID)
	ctx = context.WithValue(ctx, SessionIDKey, sessionID)
	return ctx, true
}

// RequireUser rejects requests without a live session.
func RequireUser(cfg AuthConfig, validate SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, ok := authenticate(cfg, validate, r)
			if !ok {
				response.Error(w, apierrors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalUser attaches the user when a live session is present but never
// rejects the request.
func OptionalUser(cfg AuthConfig, validate SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ctx, ok := authenticate(cfg, validate, r); ok {
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for the signed-in user ID.
	UserIDKey contextKey = "user_id"
	// SessionIDKey is the context key for the session ID.
	SessionIDKey contextKey = "session_id"
)

// WithUserID returns a context carrying the given user.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// UserIDFromContext returns the signed-in user, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// SessionIDFromContext returns the session ID of an authenticated request.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDKey).(string)
	return id
}

// RequireAuthenticated rejects requests that an earlier OptionalUser did not
// attach a user to.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			response.Error(w, apierrors.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
