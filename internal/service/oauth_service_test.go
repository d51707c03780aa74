package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/ervin210/oauth-app-marketplace/internal/config"
	"github.com/ervin210/oauth-app-marketplace/internal/models"
	"github.com/ervin210/oauth-app-marketplace/internal/repository"
)

// Mock repositories for testing
type mockUserRepo struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*models.User
	createErr  error
	lastLogins map[uuid.UUID]int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:      make(map[uuid.UUID]*models.User),
		lastLogins: make(map[uuid.UUID]int),
	}
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) GetByOAuth(ctx context.Context, provider, providerID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.OAuthProvider == provider && u.OAuthProviderID == providerID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdateOAuth(ctx context.Context, userID uuid.UUID, provider, providerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.OAuthProvider = provider
		u.OAuthProviderID = providerID
	}
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLogins[id]++
	return nil
}

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*models.Session)}
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepo) Get(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Expired(time.Now()) {
		return nil, nil
	}
	return s, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

var (
	_ repository.UserRepository    = (*mockUserRepo)(nil)
	_ repository.SessionRepository = (*mockSessionRepo)(nil)
)

func githubOnlyConfig() *config.AuthConfig {
	return &config.AuthConfig{
		OAuthGitHubID:     "github-id",
		OAuthGitHubSecret: "github-secret",
		OAuthCallbackURL:  "http://localhost:8080",
	}
}

func TestNewOAuthService(t *testing.T) {
	cfg := &config.AuthConfig{
		OAuthGitHubID:     "github-id",
		OAuthGitHubSecret: "github-secret",
		OAuthGoogleID:     "google-id",
		OAuthGoogleSecret: "google-secret",
		OAuthCallbackURL:  "http://localhost:8080",
		SessionExpiry:     7 * 24 * time.Hour,
	}

	svc := NewOAuthService(cfg, newMockUserRepo(), newMockSessionRepo(), discardLogger())
	if svc == nil {
		t.Fatal("NewOAuthService returned nil")
	}

	providers := svc.GetSupportedProviders()
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	if providers[0] != ProviderGitHub || providers[1] != ProviderGoogle {
		t.Errorf("expected providers in name order, got %v", providers)
	}
}

func TestNewOAuthService_PartialConfig(t *testing.T) {
	svc := NewOAuthService(githubOnlyConfig(), newMockUserRepo(), newMockSessionRepo(), discardLogger())
	providers := svc.GetSupportedProviders()

	if len(providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(providers))
	}
	if providers[0] != "github" {
		t.Errorf("expected github provider, got %s", providers[0])
	}
}

func TestNewOAuthService_DefaultExpiry(t *testing.T) {
	svc := NewOAuthService(githubOnlyConfig(), newMockUserRepo(), newMockSessionRepo(), discardLogger()).(*oauthService)
	if svc.sessionExpiry != defaultSessionExpiry {
		t.Errorf("expected default expiry %v, got %v", defaultSessionExpiry, svc.sessionExpiry)
	}
}

func TestGetAuthURL(t *testing.T) {
	svc := NewOAuthService(githubOnlyConfig(), newMockUserRepo(), newMockSessionRepo(), discardLogger())

	tests := []struct {
		name      string
		provider  string
		state     string
		wantError bool
	}{
		{name: "GitHub valid", provider: "github", state: "test-state"},
		{name: "Unknown provider", provider: "facebook", state: "test-state", wantError: true},
		{name: "Unconfigured provider", provider: "google", state: "test-state", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := svc.GetAuthURL(tt.provider, tt.state)

			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(url, "state="+tt.state) {
				t.Errorf("expected state in URL, got %s", url)
			}
			if !strings.Contains(url, "client_id=github-id") {
				t.Errorf("expected client_id in URL, got %s", url)
			}
			if !strings.Contains(url, "github%2Fcallback") {
				t.Errorf("expected callback redirect in URL, got %s", url)
			}
		})
	}
}

func TestFindOrCreateUser_NewUser(t *testing.T) {
	userRepo := newMockUserRepo()
	svc := NewOAuthService(githubOnlyConfig(), userRepo, newMockSessionRepo(), discardLogger()).(*oauthService)

	user, err := svc.findOrCreateUser(context.Background(), "github", &OAuthUserInfo{
		ID:        "12345",
		Email:     "new@example.com",
		Name:      "New User",
		AvatarURL: "https://example.com/avatar.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.Email != "new@example.com" {
		t.Errorf("expected email 'new@example.com', got '%s'", user.Email)
	}
	if user.OAuthProvider != "github" || user.OAuthProviderID != "12345" {
		t.Errorf("expected github/12345 identity, got %s/%s", user.OAuthProvider, user.OAuthProviderID)
	}
	if user.Name == nil || *user.Name != "New User" {
		t.Error("expected name to be set")
	}
	if len(userRepo.users) != 1 {
		t.Errorf("expected 1 stored user, got %d", len(userRepo.users))
	}
}

func TestFindOrCreateUser_ExistingOAuthUser(t *testing.T) {
	userRepo := newMockUserRepo()
	existing := &models.User{
		ID:              uuid.New(),
		Email:           "existing@example.com",
		OAuthProvider:   "github",
		OAuthProviderID: "12345",
	}
	userRepo.users[existing.ID] = existing

	svc := NewOAuthService(githubOnlyConfig(), userRepo, newMockSessionRepo(), discardLogger()).(*oauthService)

	user, err := svc.findOrCreateUser(context.Background(), "github", &OAuthUserInfo{
		ID:    "12345",
		Email: "changed@example.com",
		Name:  "Renamed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.ID != existing.ID {
		t.Errorf("expected existing user %s, got %s", existing.ID, user.ID)
	}
	if user.Name == nil || *user.Name != "Renamed" {
		t.Error("expected profile name to be refreshed")
	}
	if len(userRepo.users) != 1 {
		t.Errorf("expected no new user, got %d users", len(userRepo.users))
	}
}

func TestFindOrCreateUser_LinksByEmail(t *testing.T) {
	userRepo := newMockUserRepo()
	existing := &models.User{
		ID:              uuid.New(),
		Email:           "shared@example.com",
		OAuthProvider:   "google",
		OAuthProviderID: "g-1",
	}
	userRepo.users[existing.ID] = existing

	svc := NewOAuthService(githubOnlyConfig(), userRepo, newMockSessionRepo(), discardLogger()).(*oauthService)

	user, err := svc.findOrCreateUser(context.Background(), "github", &OAuthUserInfo{
		ID:    "777",
		Email: "shared@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.ID != existing.ID {
		t.Errorf("expected identity linked to %s, got %s", existing.ID, user.ID)
	}
	if user.OAuthProvider != "github" || user.OAuthProviderID != "777" {
		t.Errorf("expected github/777 identity, got %s/%s", user.OAuthProvider, user.OAuthProviderID)
	}
}

func TestFindOrCreateUser_NoEmail(t *testing.T) {
	userRepo := newMockUserRepo()
	svc := NewOAuthService(githubOnlyConfig(), userRepo, newMockSessionRepo(), discardLogger()).(*oauthService)

	_, err := svc.findOrCreateUser(context.Background(), "github", &OAuthUserInfo{ID: "1"})
	if err == nil {
		t.Fatal("expected error for account without email")
	}
	if len(userRepo.users) != 0 {
		t.Error("expected no user to be created")
	}
}

// newFakeGitHub serves the token endpoint and the user API of a GitHub-like provider.
func newFakeGitHub(t *testing.T, userJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/login/oauth/access_token":
			if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"bad_verification_code"}`))
				return
			}
			w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
		case "/user":
			if r.Header.Get("Authorization") != "Bearer gho_test" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(userJSON))
		case "/user/emails":
			w.Write([]byte(`[
				{"email": "unverified@example.com", "primary": false, "verified": false},
				{"email": "octo@example.com", "primary": true, "verified": true}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func pointGitHubAt(svc *oauthService, server *httptest.Server) {
	p := svc.providers[ProviderGitHub]
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:   server.URL + "/login/oauth/authorize",
		TokenURL:  server.URL + "/login/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.userInfoURL = server.URL + "/user"
	p.emailsURL = server.URL + "/user/emails"
}

func TestHandleCallback_GitHub(t *testing.T) {
	server := newFakeGitHub(t, `{"id": 583231, "login": "octocat", "email": "", "avatar_url": "https://avatars.example.com/u/583231"}`)
	defer server.Close()

	userRepo := newMockUserRepo()
	sessionRepo := newMockSessionRepo()
	svc := NewOAuthService(githubOnlyConfig(), userRepo, sessionRepo, discardLogger()).(*oauthService)
	pointGitHubAt(svc, server)

	user, session, err := svc.HandleCallback(context.Background(), ProviderGitHub, "good-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.Email != "octo@example.com" {
		t.Errorf("expected primary verified email, got %s", user.Email)
	}
	if user.Name == nil || *user.Name != "octocat" {
		t.Error("expected login to be used as name")
	}
	if user.OAuthProviderID != "583231" {
		t.Errorf("expected provider id 583231, got %s", user.OAuthProviderID)
	}
	if session.UserID != user.ID {
		t.Error("expected session to belong to the user")
	}
	if len(session.ID) < 40 {
		t.Errorf("expected a long random session id, got %q", session.ID)
	}
	if _, ok := sessionRepo.sessions[session.ID]; !ok {
		t.Error("expected session to be stored")
	}
	if userRepo.lastLogins[user.ID] != 1 {
		t.Error("expected last login to be recorded")
	}

	// A second login reuses the account.
	again, _, err := svc.HandleCallback(context.Background(), ProviderGitHub, "good-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ID != user.ID {
		t.Error("expected the same user on second login")
	}
}

func TestHandleCallback_BadCode(t *testing.T) {
	server := newFakeGitHub(t, `{"id": 1, "login": "x"}`)
	defer server.Close()

	userRepo := newMockUserRepo()
	svc := NewOAuthService(githubOnlyConfig(), userRepo, newMockSessionRepo(), discardLogger()).(*oauthService)
	pointGitHubAt(svc, server)

	_, _, err := svc.HandleCallback(context.Background(), ProviderGitHub, "stale-code")
	if err == nil {
		t.Fatal("expected token exchange error")
	}
	if !strings.Contains(err.Error(), "token exchange failed") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(userRepo.users) != 0 {
		t.Error("expected no user to be created")
	}
}

func TestHandleCallback_MissingUserID(t *testing.T) {
	server := newFakeGitHub(t, `{"login": "ghost", "email": "ghost@example.com"}`)
	defer server.Close()

	svc := NewOAuthService(githubOnlyConfig(), newMockUserRepo(), newMockSessionRepo(), discardLogger()).(*oauthService)
	pointGitHubAt(svc, server)

	if _, _, err := svc.HandleCallback(context.Background(), ProviderGitHub, "good-code"); err == nil {
		t.Fatal("expected error for a user without id")
	}
}

func TestDecodeGoogleUser(t *testing.T) {
	info, err := decodeGoogleUser(nil, []byte(`{
		"id": "google-12345",
		"email": "test@gmail.com",
		"name": "Test User",
		"picture": "https://lh3.googleusercontent.com/photo.jpg"
	}`), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info.ID != "google-12345" || info.Email != "test@gmail.com" {
		t.Errorf("unexpected identity: %+v", info)
	}
	if info.AvatarURL != "https://lh3.googleusercontent.com/photo.jpg" {
		t.Errorf("expected picture as avatar, got %s", info.AvatarURL)
	}
}

func TestResolveSessionAndLogout(t *testing.T) {
	sessionRepo := newMockSessionRepo()
	svc := NewOAuthService(githubOnlyConfig(), newMockUserRepo(), sessionRepo, discardLogger())
	ctx := context.Background()

	userID := uuid.New()
	sessionRepo.sessions["live"] = &models.Session{ID: "live", UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}
	sessionRepo.sessions["stale"] = &models.Session{ID: "stale", UserID: userID, ExpiresAt: time.Now().Add(-time.Minute)}

	got, err := svc.ResolveSession(ctx, "live")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != userID {
		t.Errorf("expected user %s, got %s", userID, got)
	}

	for _, id := range []string{"", "stale", "unknown"} {
		if _, err := svc.ResolveSession(ctx, id); err != ErrInvalidSession {
			t.Errorf("session %q: expected ErrInvalidSession, got %v", id, err)
		}
	}

	if err := svc.Logout(ctx, "live"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.ResolveSession(ctx, "live"); err != ErrInvalidSession {
		t.Errorf("expected session to be gone after logout, got %v", err)
	}
	if err := svc.Logout(ctx, ""); err != nil {
		t.Errorf("expected empty logout to be a no-op, got %v", err)
	}
}
