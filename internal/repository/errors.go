// Package repository provides data access layer implementations.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ervin210/oauth-app-marketplace/internal/rating"
)

const (
	uniqueViolation = "23505"

	constraintAppClientID  = "applications_client_id_key"
	constraintReviewAuthor = "app_reviews_app_user_key"
)

// ErrClientIDTaken is returned when a new client ID collides with one stored
// for another application.
var ErrClientIDTaken = errors.New("client id already assigned")

// isUniqueViolation reports whether err is a unique violation of the named
// constraint. An empty constraint matches any unique violation.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// mapWriteError turns the unique violations with a domain meaning into their
// sentinel errors. Other errors are returned unchanged.
func mapWriteError(err error) error {
	switch {
	case isUniqueViolation(err, constraintAppClientID):
		return ErrClientIDTaken
	case isUniqueViolation(err, constraintReviewAuthor):
		return rating.ErrDuplicateReview
	}
	return err
}
