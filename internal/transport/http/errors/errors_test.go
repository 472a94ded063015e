package errors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"credential-service/internal/service"

	"github.com/stretchr/testify/require"
)

func TestToHTTP_Mapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{"invalid token", service.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
		{"token expired", service.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
		{"email taken", service.ErrEmailTaken, http.StatusConflict, "email_taken"},
		{"username taken", service.ErrUsernameTaken, http.StatusConflict, "username_taken"},
		{"invalid reset token", service.ErrInvalidResetToken, http.StatusBadRequest, "invalid_reset_token"},
		{"user not found", service.ErrUserNotFound, http.StatusNotFound, "not_found"},
		{"invalid email", service.ErrInvalidEmail, http.StatusBadRequest, "invalid_argument"},
		{"weak password", service.ErrWeakPassword, http.StatusBadRequest, "invalid_argument"},
		{"malformed request", ErrMalformedRequest, http.StatusBadRequest, "invalid_argument"},
		{"unknown error", errors.New("db down"), http.StatusInternalServerError, "internal"},
		{"nil error", nil, http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			status, resp := ToHTTP(tc.err)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.code, resp.Error.Code)
			require.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestToHTTP_WrappedSentinel(t *testing.T) {
	t.Parallel()

	// Сервисный слой оборачивает сентинелы через fmt.Errorf("%s: %w").
	status, resp := ToHTTP(fmt.Errorf("service.auth.Login: %w", service.ErrInvalidCredentials))
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "invalid_credentials", resp.Error.Code)
}

func TestWriteError_EnvelopeAndRequestID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()

	WriteError(rec, req, service.ErrInvalidCredentials)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t,
		`{"error":{"code":"invalid_credentials","message":"invalid credentials","request_id":"req-42"}}`,
		rec.Body.String())

	// Внутренние детали не утекают наружу.
	status, resp := ToHTTP(errors.New("pq: connection refused"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.NotContains(t, resp.Error.Message, "pq:")
}
