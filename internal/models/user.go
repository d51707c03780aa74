package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a marketplace account created on first OAuth login.
type User struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Email           string     `json:"email" db:"email"`
	Name            *string    `json:"name,omitempty" db:"name"`
	AvatarURL       *string    `json:"avatar_url,omitempty" db:"avatar_url"`
	OAuthProvider   string     `json:"oauth_provider" db:"oauth_provider"`
	OAuthProviderID string     `json:"-" db:"oauth_provider_id"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Session represents an authenticated user session.
type Session struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
