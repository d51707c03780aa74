package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VerificationStatus is the review state of an application.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
)

var verificationTransitions = map[VerificationStatus][]VerificationStatus{
	VerificationUnverified: {VerificationPending},
	VerificationPending:    {VerificationVerified, VerificationUnverified},
	VerificationVerified:   {VerificationUnverified},
}

// IsValid checks if the status is a known verification status.
func (s VerificationStatus) IsValid() bool {
	_, ok := verificationTransitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s VerificationStatus) CanTransitionTo(next VerificationStatus) bool {
	for _, allowed := range verificationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Application is a registered OAuth client application.
type Application struct {
	ID                  uuid.UUID          `json:"id" db:"id"`
	OwnerID             uuid.UUID          `json:"owner_id" db:"owner_id"`
	Name                string             `json:"name" db:"name"`
	Description         string             `json:"description" db:"description"`
	HomepageURL         string             `json:"homepage_url" db:"homepage_url"`
	CallbackURL         string             `json:"callback_url" db:"callback_url"`
	LogoURL             *string            `json:"logo_url,omitempty" db:"logo_url"`
	IsPublished         bool               `json:"is_published" db:"is_published"`
	IsListed            bool               `json:"is_listed" db:"is_listed"`
	VerificationStatus  VerificationStatus `json:"verification_status" db:"verification_status"`
	ClientID            *string            `json:"client_id,omitempty" db:"client_id"`
	ClientSecretHash    *string            `json:"-" db:"client_secret_hash"`
	ClientSecretPrefix  *string            `json:"client_secret_prefix,omitempty" db:"client_secret_prefix"`
	CredentialsVersion  int64              `json:"credentials_version" db:"credentials_version"`
	CredentialsIssuedAt *time.Time         `json:"credentials_issued_at,omitempty" db:"credentials_issued_at"`
	CreatedAt           time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at" db:"updated_at"`
}

// HasCredentials reports whether a credential pair has been issued.
func (a *Application) HasCredentials() bool {
	return a.ClientID != nil && *a.ClientID != ""
}

// CurrentClientID returns the issued client ID or an empty string.
func (a *Application) CurrentClientID() string {
	if a.ClientID == nil {
		return ""
	}
	return *a.ClientID
}

// IsVisible reports whether the application appears in the public marketplace.
func (a *Application) IsVisible() bool {
	return a.IsPublished && a.IsListed
}

// SetPublication applies publish and list flags, rejecting a listed draft.
func (a *Application) SetPublication(published, listed bool) error {
	if listed && !published {
		return fmt.Errorf("an application must be published before it can be listed")
	}
	a.IsPublished = published
	a.IsListed = listed
	return nil
}

// PublicApplication is the marketplace view of an application.
type PublicApplication struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	Name               string             `json:"name" db:"name"`
	Description        string             `json:"description" db:"description"`
	HomepageURL        string             `json:"homepage_url" db:"homepage_url"`
	LogoURL            *string            `json:"logo_url,omitempty" db:"logo_url"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
}

// Public returns the marketplace view of the application.
func (a *Application) Public() *PublicApplication {
	return &PublicApplication{
		ID:                 a.ID,
		Name:               a.Name,
		Description:        a.Description,
		HomepageURL:        a.HomepageURL,
		LogoURL:            a.LogoURL,
		VerificationStatus: a.VerificationStatus,
		CreatedAt:          a.CreatedAt,
	}
}
