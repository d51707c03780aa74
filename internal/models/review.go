package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ervin210/oauth-app-marketplace/internal/rating"
)

// Review is a user's rating of an application.
type Review struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AppID     uuid.UUID `json:"app_id" db:"app_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Rating    int       `json:"rating" db:"rating"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Entry returns the rating-relevant part of the review.
func (r *Review) Entry() rating.Entry {
	return rating.Entry{UserID: r.UserID, Rating: r.Rating}
}

// ReviewEntries converts reviews into aggregator entries.
func ReviewEntries(reviews []*Review) []rating.Entry {
	entries := make([]rating.Entry, 0, len(reviews))
	for _, r := range reviews {
		entries = append(entries, r.Entry())
	}
	return entries
}
