package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_SaveAndURL(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(Config{BasePath: dir, BaseURL: "http://localhost:3000/files/"})
	require.NoError(t, err)

	ctx := context.Background()
	path := "projects/p1/thread-images/u1/1700000000000.png"
	require.NoError(t, s.Save(ctx, path, strings.NewReader("png-bytes"), 9, "image/png"))

	data, err := os.ReadFile(filepath.Join(dir, path))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	url, err := s.GetURL(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/files/"+path, url)

	require.NoError(t, s.Delete(ctx, path))
	_, err = os.Stat(filepath.Join(dir, path))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorage_StaysInsideBase(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(Config{BasePath: filepath.Join(dir, "uploads")})
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "text/plain"))
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "uploads", "escape.txt"))
	assert.NoError(t, err)
}

func TestSupabaseStorage_Upload(t *testing.T) {
	var gotPath, gotAuth, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"Key":"project-files/x"}`))
	}))
	defer srv.Close()

	s, err := NewSupabaseStorage(Config{Endpoint: srv.URL, APIKey: "anon", Bucket: "project-files"})
	require.NoError(t, err)

	ctx := database.WithCaller(context.Background(), database.Caller{UserID: "u1", AccessToken: "user-token"})
	require.NoError(t, s.Save(ctx, "projects/p1/a.png", strings.NewReader("abc"), 3, "image/png"))
	assert.Equal(t, "/storage/v1/object/project-files/projects/p1/a.png", gotPath)
	assert.Equal(t, "Bearer user-token", gotAuth)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, "abc", gotBody)

	url, err := s.GetURL(ctx, "projects/p1/a.png")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/project-files/projects/p1/a.png", url)
}

func TestSupabaseStorage_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"new row violates row-level security policy"}`))
	}))
	defer srv.Close()

	s, err := NewSupabaseStorage(Config{Endpoint: srv.URL, APIKey: "anon", Bucket: "project-files"})
	require.NoError(t, err)
	err = s.Save(context.Background(), "a.png", strings.NewReader("abc"), 3, "image/png")
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
}

func TestNewStorage_UnknownType(t *testing.T) {
	_, err := NewStorage(context.Background(), Config{Type: "ftp"})
	assert.Error(t, err)
}
