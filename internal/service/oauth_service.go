package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/ervin210/oauth-app-marketplace/internal/config"
	"github.com/ervin210/oauth-app-marketplace/internal/models"
	"github.com/ervin210/oauth-app-marketplace/internal/repository"
)

const (
	ProviderGitHub = "github"
	ProviderGoogle = "google"

	defaultSessionExpiry = 7 * 24 * time.Hour
	sessionIDBytes       = 32
)

// OAuthUserInfo contains user information fetched from OAuth providers.
type OAuthUserInfo struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// OAuthService signs users in to the marketplace through external identity
// providers and manages their sessions.
type OAuthService interface {
	// GetAuthURL returns the authorization URL for the given provider.
	GetAuthURL(provider, state string) (string, error)

	// HandleCallback exchanges the code, finds or creates the user and opens a session.
	HandleCallback(ctx context.Context, provider, code string) (*models.User, *models.Session, error)

	// ResolveSession returns the user ID of a live session.
	ResolveSession(ctx context.Context, sessionID string) (uuid.UUID, error)

	// Logout ends a session.
	Logout(ctx context.Context, sessionID string) error

	// GetSupportedProviders returns the configured providers in name order.
	GetSupportedProviders() []string
}

// ErrInvalidSession is returned for unknown or expired sessions.
var ErrInvalidSession = errors.New("invalid or expired session")

type oauthProvider struct {
	config      *oauth2.Config
	userInfoURL string
	emailsURL   string
	decode      func(client *http.Client, body []byte, p *oauthProvider) (*OAuthUserInfo, error)
}

type oauthService struct {
	providers     map[string]*oauthProvider
	userRepo      repository.UserRepository
	sessionRepo   repository.SessionRepository
	sessionExpiry time.Duration
	logger        *slog.Logger
}

// NewOAuthService creates a new OAuth service for the providers that have
// credentials configured.
func NewOAuthService(
	cfg *config.AuthConfig,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	logger *slog.Logger,
) OAuthService {
	providers := make(map[string]*oauthProvider)

	if cfg.OAuthGitHubID != "" && cfg.OAuthGitHubSecret != "" {
		providers[ProviderGitHub] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.OAuthGitHubID,
				ClientSecret: cfg.OAuthGitHubSecret,
				Endpoint:     github.Endpoint,
				RedirectURL:  cfg.OAuthCallbackURL + "/auth/github/callback",
				Scopes:       []string{"read:user", "user:email"},
			},
			userInfoURL: "https://api.github.com/user",
			emailsURL:   "https://api.github.com/user/emails",
			decode:      decodeGitHubUser,
		}
	}

	if cfg.OAuthGoogleID != "" && cfg.OAuthGoogleSecret != "" {
		providers[ProviderGoogle] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.OAuthGoogleID,
				ClientSecret: cfg.OAuthGoogleSecret,
				Endpoint:     google.Endpoint,
				RedirectURL:  cfg.OAuthCallbackURL + "/auth/google/callback",
				Scopes:       []string{"openid", "email", "profile"},
			},
			userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
			decode:      decodeGoogleUser,
		}
	}

	expiry := cfg.SessionExpiry
	if expiry <= 0 {
		expiry = defaultSessionExpiry
	}

	return &oauthService{
		providers:     providers,
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		sessionExpiry: expiry,
		logger:        logger,
	}
}

func (s *oauthService) provider(name string) (*oauthProvider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown or unconfigured provider: %s", name)
	}
	return p, nil
}

func (s *oauthService) GetAuthURL(provider, state string) (string, error) {
	p, err := s.provider(provider)
	if err != nil {
		return "", err
	}
	return p.config.AuthCodeURL(state), nil
}

func (s *oauthService) HandleCallback(ctx context.Context, provider, code string) (*models.User, *models.Session, error) {
	p, err := s.provider(provider)
	if err != nil {
		return nil, nil, err
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("token exchange failed: %w", err)
	}

	info, err := s.fetchUserInfo(ctx, p, token)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if info.ID == "" {
		return nil, nil, fmt.Errorf("%s returned no user id", provider)
	}

	user, err := s.findOrCreateUser(ctx, provider, info)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find or create user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to record login",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	return user, session, nil
}

func (s *oauthService) ResolveSession(ctx context.Context, sessionID string) (uuid.UUID, error) {
	if sessionID == "" {
		return uuid.Nil, ErrInvalidSession
	}
	session, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return uuid.Nil, ErrInvalidSession
	}
	return session.UserID, nil
}

func (s *oauthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessionRepo.Delete(ctx, sessionID)
}

func (s *oauthService) GetSupportedProviders() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *oauthService) fetchUserInfo(ctx context.Context, p *oauthProvider, token *oauth2.Token) (*OAuthUserInfo, error) {
	client := p.config.Client(ctx, token)
	body, err := getJSON(client, p.userInfoURL)
	if err != nil {
		return nil, err
	}
	return p.decode(client, body, p)
}

func getJSON(client *http.Client, url string) ([]byte, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return raw, nil
}

func decodeGitHubUser(client *http.Client, body []byte, p *oauthProvider) (*OAuthUserInfo, error) {
	var data struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode GitHub user: %w", err)
	}

	info := &OAuthUserInfo{
		ID:        strconv.FormatInt(data.ID, 10),
		Email:     data.Email,
		Name:      data.Name,
		AvatarURL: data.AvatarURL,
	}
	if data.ID == 0 {
		info.ID = ""
	}
	if info.Name == "" {
		info.Name = data.Login
	}

	// Private emails are only listed on the emails endpoint.
	if info.Email == "" && p.emailsURL != "" {
		if email, err := primaryGitHubEmail(client, p.emailsURL); err == nil {
			info.Email = email
		}
	}
	return info, nil
}

func primaryGitHubEmail(client *http.Client, url string) (string, error) {
	body, err := getJSON(client, url)
	if err != nil {
		return "", err
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.Unmarshal(body, &emails); err != nil {
		return "", err
	}

	fallback := ""
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email, nil
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("no verified email")
	}
	return fallback, nil
}

func decodeGoogleUser(_ *http.Client, body []byte, _ *oauthProvider) (*OAuthUserInfo, error) {
	var data struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode Google user: %w", err)
	}

	return &OAuthUserInfo{
		ID:        data.ID,
		Email:     data.Email,
		Name:      data.Name,
		AvatarURL: data.Picture,
	}, nil
}

func (s *oauthService) findOrCreateUser(ctx context.Context, provider string, info *OAuthUserInfo) (*models.User, error) {
	user, err := s.userRepo.GetByOAuth(ctx, provider, info.ID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		user.Name = optional(info.Name)
		user.AvatarURL = optional(info.AvatarURL)
		if err := s.userRepo.Update(ctx, user); err != nil {
			s.logger.WarnContext(ctx, "failed to refresh user profile",
				slog.String("user_id", user.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		return user, nil
	}

	// Link the identity to an account registered with the same email.
	if info.Email != "" {
		user, err = s.userRepo.GetByEmail(ctx, info.Email)
		if err != nil {
			return nil, err
		}
		if user != nil {
			if err := s.userRepo.UpdateOAuth(ctx, user.ID, provider, info.ID); err != nil {
				return nil, err
			}
			user.OAuthProvider = provider
			user.OAuthProviderID = info.ID
			return user, nil
		}
	}

	if info.Email == "" {
		return nil, fmt.Errorf("%s account has no verified email", provider)
	}

	user = &models.User{
		ID:              uuid.New(),
		Email:           info.Email,
		Name:            optional(info.Name),
		AvatarURL:       optional(info.AvatarURL),
		OAuthProvider:   provider,
		OAuthProviderID: info.ID,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *oauthService) createSession(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &models.Session{
		ID:        base64.RawURLEncoding.EncodeToString(b),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionExpiry),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time check to ensure oauthService implements OAuthService.
var _ OAuthService = (*oauthService)(nil)
