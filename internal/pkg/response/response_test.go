package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/ervin210/oauth-app-marketplace/internal/pkg/errors"
)

func TestNewPageMeta(t *testing.T) {
	tests := []struct {
		page, perPage int
		total         int64
		wantPages     int
	}{
		{1, 20, 0, 0},
		{1, 20, 20, 1},
		{2, 20, 21, 2},
		{1, 0, 5, 0},
	}
	for _, tt := range tests {
		meta := NewPageMeta(tt.page, tt.perPage, tt.total)
		if meta.TotalPages != tt.wantPages {
			t.Errorf("NewPageMeta(%d, %d, %d).TotalPages = %d, want %d", tt.page, tt.perPage, tt.total, meta.TotalPages, tt.wantPages)
		}
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"api error", apierrors.ErrDuplicateReview, http.StatusConflict, "duplicate_review"},
		{"wrapped api error", fmt.Errorf("submit: %w", apierrors.NewInvalidRatingError(3.5)), http.StatusBadRequest, "invalid_rating"},
		{"plain error is hidden", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, tt.err)

			require.Equal(t, tt.wantStatus, rec.Code)
			var body struct {
				Error apierrors.APIError `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}
