package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shaka/internal/httputil"
	"shaka/internal/model"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject string, expiresIn time.Duration) string {
	t.Helper()
	token, err := NewHMACVerifier(testSecret).Sign(jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	})
	require.NoError(t, err)
	return token
}

// echoUser writes the authenticated user ID, or "anonymous".
func echoUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		userID = "anonymous"
	}
	_, _ = w.Write([]byte(userID))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error.Code
}

func TestAuthMiddleware(t *testing.T) {
	protected := AuthMiddleware(NewHMACVerifier(testSecret))(http.HandlerFunc(echoUser))

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantBody   string
		wantCode   string
	}{
		{
			name: "bearer header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", time.Hour))
			},
			wantStatus: http.StatusOK,
			wantBody:   "user-1",
		},
		{
			name: "cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "access_token", Value: signToken(t, "user-2", time.Hour)})
			},
			wantStatus: http.StatusOK,
			wantBody:   "user-2",
		},
		{
			name: "query parameter",
			setup: func(r *http.Request) {
				r.URL.RawQuery = "access_token=" + signToken(t, "user-3", time.Hour)
			},
			wantStatus: http.StatusOK,
			wantBody:   "user-3",
		},
		{
			name:       "missing token",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   httputil.ErrCodeUnauthorized,
		},
		{
			name: "expired token",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", -time.Minute))
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   model.CodeTokenExpired,
		},
		{
			name: "wrong secret",
			setup: func(r *http.Request) {
				token, err := NewHMACVerifier("other").Sign(jwt.RegisteredClaims{Subject: "user-1"})
				require.NoError(t, err)
				r.Header.Set("Authorization", "Bearer "+token)
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   model.CodeTokenInvalid,
		},
		{
			name: "no subject",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, "", time.Hour))
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   model.CodeTokenInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, rec))
			} else {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	h := OptionalAuthMiddleware(NewHMACVerifier(testSecret))(http.HandlerFunc(echoUser))

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/u1", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("invalid token is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/u1", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/u1", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "viewer", time.Hour))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "viewer", rec.Body.String())
	})
}

func TestGetUserIDFromContext_Empty(t *testing.T) {
	_, ok := GetUserIDFromContext(WithUserID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), ""))
	assert.False(t, ok)
}
