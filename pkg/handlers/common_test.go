package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"clientbridge/pkg/apperrors"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestPathParamDecodesOnce(t *testing.T) {
	var (
		got    string
		gotErr error
	)
	router := chi.NewRouter()
	router.Get("/api/invites/{token}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = pathParam(r, "token")
	})

	cases := []struct {
		path string
		want string
	}{
		{"/api/invites/yJ3k_a-9", "yJ3k_a-9"},
		{"/api/invites/%79J3k_a-9", "yJ3k_a-9"},
		{"/api/invites/ab%2Fcd", "ab/cd"},
		// %2541 decodes to the literal %41, not to A
		{"/api/invites/x%2541", "x%41"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.NoError(t, gotErr)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPathParamRejectsBadEscape(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/invites/abc", nil)
	req.URL.RawPath = "/api/invites/ab%zz"
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("token", "ab%zz")
	req = req.WithContext(contextWithRoute(req, rctx))

	_, err := pathParam(req, "token")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), fmt.Sprint(err))
}

func contextWithRoute(r *http.Request, rctx *chi.Context) context.Context {
	return context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
}
