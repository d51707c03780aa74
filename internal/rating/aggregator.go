// Package rating aggregates app review ratings and validates review submissions.
//
// Everything here is a pure transformation over values supplied per call.
package rating

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

const (
	// MinRating is the lowest star rating.
	MinRating = 1
	// MaxRating is the highest star rating.
	MaxRating = 5
)

// ErrDuplicateReview is returned when a user already reviewed the application.
var ErrDuplicateReview = errors.New("user has already reviewed this application")

// InvalidRatingError is returned for a rating that is not an integer in [1,5].
type InvalidRatingError struct {
	Value float64
}

func (e *InvalidRatingError) Error() string {
	return fmt.Sprintf("rating must be an integer between %d and %d, got %v", MinRating, MaxRating, e.Value)
}

// Entry is one persisted rating.
type Entry struct {
	UserID uuid.UUID
	Rating int
}

// Candidate is a review submission before validation. A nil Text means the
// client omitted it.
type Candidate struct {
	UserID uuid.UUID
	Rating int
	Text   *string
}

// Accepted is a validated review record.
type Accepted struct {
	UserID uuid.UUID
	Rating int
	Text   string
}

// Summary describes the rating distribution of one application.
// Histogram and Percentages are ordered from 5 stars down to 1 star.
type Summary struct {
	Average     float64    `json:"average"`
	Total       int        `json:"total"`
	Histogram   [5]int     `json:"histogram"`
	Percentages [5]float64 `json:"percentages"`
	Skipped     int        `json:"skipped"`
}

// Summarize computes the summary of a list of ratings. Ratings outside [1,5]
// are left out of every figure and counted in Skipped.
func Summarize(entries []Entry) Summary {
	var s Summary
	sum := 0

	for _, e := range entries {
		if !inRange(e.Rating) {
			s.Skipped++
			continue
		}
		s.Histogram[MaxRating-e.Rating]++
		s.Total++
		sum += e.Rating
	}

	if s.Total == 0 {
		return s
	}

	s.Average = float64(sum) / float64(s.Total)
	for i, count := range s.Histogram {
		s.Percentages[i] = float64(count) / float64(s.Total) * 100
	}
	return s
}

// ValidateSubmission checks a new review against the reviews already stored for
// the same application.
func ValidateSubmission(existing []Entry, c Candidate) (Accepted, error) {
	for _, e := range existing {
		if e.UserID == c.UserID {
			return Accepted{}, ErrDuplicateReview
		}
	}
	if !inRange(c.Rating) {
		return Accepted{}, &InvalidRatingError{Value: float64(c.Rating)}
	}
	return Accepted{
		UserID: c.UserID,
		Rating: c.Rating,
		Text:   normalizeText(c.Text),
	}, nil
}

// ValidateEdit checks a change to an existing review. Authorship is the
// caller's concern.
func ValidateEdit(existing Entry, newRating int, newText *string) (Accepted, error) {
	if !inRange(newRating) {
		return Accepted{}, &InvalidRatingError{Value: float64(newRating)}
	}
	return Accepted{
		UserID: existing.UserID,
		Rating: newRating,
		Text:   normalizeText(newText),
	}, nil
}

// ParseRating converts a decoded JSON number into a star rating.
func ParseRating(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || v < MinRating || v > MaxRating {
		return 0, &InvalidRatingError{Value: v}
	}
	return int(v), nil
}

func inRange(r int) bool {
	return r >= MinRating && r <= MaxRating
}

func normalizeText(text *string) string {
	if text == nil {
		return ""
	}
	return *text
}
