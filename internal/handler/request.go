// Package handler provides HTTP handlers for the marketplace API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ervin210/oauth-app-marketplace/internal/middleware"
	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
	"github.com/ervin210/oauth-app-marketplace/internal/pkg/response"
)

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON decodes the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierrors.ErrBadRequest.WithMessage("Invalid request body")
	}
	return nil
}

// decodeAndValidate decodes the request body and runs struct validation.
func decodeAndValidate(r *http.Request, v *validator.Validate, dst any) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	return validationError(v.Struct(dst))
}

// validationError converts validator failures into a validation APIError.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierrors.ErrBadRequest.WithMessage(err.Error())
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = describe(fe)
	}
	return apierrors.NewValidationErrors(fields)
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "http_url", "url":
		return "must be an absolute http(s) URL"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "alpha":
		return "must contain letters only"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// uuidParam parses a UUID URL parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apierrors.NewValidationError(name, "invalid UUID format")
	}
	return id, nil
}

// currentUser returns the signed-in user or writes 401.
func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Error(w, apierrors.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

// pagination reads page and per_page query parameters. Missing or invalid
// values fall back to the first page and the default size.
func pagination(r *http.Request, defaultSize, maxSize int) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = defaultSize
	}
	if perPage > maxSize {
		perPage = maxSize
	}
	return page, perPage
}
