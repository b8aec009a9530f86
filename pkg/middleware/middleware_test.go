package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/config"
	"clientbridge/pkg/database"
	"clientbridge/pkg/models"
	"clientbridge/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-secret"

type stubUsers struct {
	err error
}

func (s stubUsers) LoadUser(ctx context.Context, authUser models.AuthUser, accessToken string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.User{ID: authUser.ID, Email: authUser.Email, Name: "Sarah", Role: models.RoleFreelancer}, nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func whoAmI(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := RequireUser(r.Context())
		if err != nil {
			utils.WriteAppError(w, r, err)
			return
		}
		caller, ok := database.CallerFrom(r.Context())
		assert.True(t, ok)
		assert.Equal(t, user.ID, caller.UserID)
		assert.Equal(t, GetAccessToken(r.Context()), caller.AccessToken)
		utils.WriteSuccessResponse(w, user)
	})
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: secret}
	jwtService := utils.NewJWTService(secret)
	access, refresh, _, err := jwtService.GenerateTokenPair("user-1", "sarah@example.com")
	require.NoError(t, err)

	h := AuthMiddleware(cfg, stubUsers{})(whoAmI(t))

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"not bearer", "Token " + access, "", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + mustToken(t, "other-secret"), "", http.StatusUnauthorized},
		{"header", "Bearer " + access, "", http.StatusOK},
		{"query for websockets", "", access, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/api/projects"
			if tc.query != "" {
				target += "?access_token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusUnauthorized {
				assert.Equal(t, string(apperrors.KindUnauthenticated), errorCode(t, rec))
			}
		})
	}
}

func TestAuthMiddleware_MissingProfile(t *testing.T) {
	cfg := &config.Config{JWTSecret: secret}
	users := stubUsers{err: apperrors.Unauthenticated("No profile").WithCode(apperrors.CodeProfileMissing)}
	h := AuthMiddleware(cfg, users)(whoAmI(t))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(apperrors.CodeProfileMissing), errorCode(t, rec))
}

func TestOptionalAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: secret}
	var seen *models.User
	h := OptionalAuthMiddleware(cfg, stubUsers{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/invites/abc", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, seen)

	req = httptest.NewRequest(http.MethodGet, "/api/invites/abc", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret))
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, "user-1", seen.ID)
}

func TestRateLimitByIP(t *testing.T) {
	h := RateLimitByIP(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	limited := call("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", errorCode(t, limited))

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, call("10.0.0.2").Code)
}

func TestRecovery(t *testing.T) {
	cfg := &config.Config{Environment: "production"}
	h := Recovery(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getClientIP(req))
}

func mustToken(t *testing.T, key string) string {
	t.Helper()
	token, _, err := utils.NewJWTService(key).GenerateAccessToken("user-1", "sarah@example.com")
	require.NoError(t, err)
	return token
}

func TestNormalize(t *testing.T) {
	var seen *http.Request
	h := Normalize()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
	}))

	cases := []struct {
		name    string
		target  string
		path    string
		rawPath string
	}{
		{"trailing slash", "/api/projects/", "/api/projects", ""},
		{"root stays", "/", "/", ""},
		{"escaped trailing space", "/api/invites/%79abc%20%20", "/api/invites/yabc", "/api/invites/%79abc"},
		{"escaped slash kept", "/api/invites/a%2Fb/", "/api/invites/a/b", "/api/invites/a%2Fb"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.target, nil))
			require.NotNil(t, seen)
			assert.Equal(t, tc.path, seen.URL.Path)
			assert.Equal(t, tc.rawPath, seen.URL.RawPath)
		})
	}
}

func TestNormalize_ForwardedHeaders(t *testing.T) {
	var seen *http.Request
	h := Normalize()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS, http")
	req.Header.Set("X-Forwarded-Host", "app.example.com, internal:8080")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "https", seen.URL.Scheme)
	assert.Equal(t, "app.example.com", seen.Host)

	req = httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("X-Forwarded-Proto", "gopher")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "gopher", seen.URL.Scheme)
}
