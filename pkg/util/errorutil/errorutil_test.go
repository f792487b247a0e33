package errorutil_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/spec-kit/helpdesk-tickets/pkg/util/errorutil"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "domain error passes through wrapping",
			err:        fmt.Errorf("approve: %w", apperrors.NewConflict("already solved", nil)),
			wantCode:   apperrors.CodeConflict,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "missing row becomes not found",
			err:        fmt.Errorf("get ticket: %w", pgx.ErrNoRows),
			wantCode:   apperrors.CodeNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unknown error becomes internal",
			err:        errors.New("connection reset"),
			wantCode:   apperrors.CodeInternal,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "upstream unavailable",
			err:        apperrors.NewUpstreamUnavailable("user directory", errors.New("timeout")),
			wantCode:   apperrors.CodeUpstreamUnavailable,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := apperrors.ToDomainError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.HTTPStatus)
		})
	}
}

func TestStoreFailureHidesCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := apperrors.NewStoreFailure("approve resolution", cause)

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "internal server error", domainErr.Message)
	assert.ErrorIs(t, err, cause)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	assert.Nil(t, apperrors.MapError(nil))
}
