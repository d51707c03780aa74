package models

import "github.com/ervin210/oauth-app-marketplace/internal/rating"

// ListingSort orders marketplace listings.
type ListingSort string

const (
	SortByRating ListingSort = "rating"
	SortByNewest ListingSort = "newest"
	SortByName   ListingSort = "name"
)

// IsValid checks if the sort is known.
func (s ListingSort) IsValid() bool {
	switch s {
	case SortByRating, SortByNewest, SortByName:
		return true
	}
	return false
}

// ListingQuery filters the public marketplace listing.
type ListingQuery struct {
	Search       string
	VerifiedOnly bool
	Sort         ListingSort
	Page         int
	PerPage      int
}

// Offset returns the row offset for the query's page.
func (q ListingQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

// ListedApp is a marketplace entry with its rating summary.
type ListedApp struct {
	*PublicApplication
	Rating rating.Summary `json:"rating"`
}

// AppDetail is the public detail of a listed application.
type AppDetail struct {
	*PublicApplication
	Rating rating.Summary `json:"rating"`
	Plans  []*PricingPlan `json:"plans"`
}
