package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/database"
)

// SupabaseStorage uploads to the platform's object store under /storage/v1.
// Uploads carry the caller's access token so bucket policies apply.
type SupabaseStorage struct {
	baseURL    string
	apiKey     string
	bucket     string
	httpClient *http.Client
}

// NewSupabaseStorage creates a new Supabase storage instance
func NewSupabaseStorage(cfg Config) (*SupabaseStorage, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("endpoint and bucket are required for Supabase storage")
	}
	return &SupabaseStorage{
		baseURL: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:  cfg.APIKey,
		bucket:  cfg.Bucket,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

func (s *SupabaseStorage) do(ctx context.Context, method, path string, body io.Reader, size int64, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+"/storage/v1/object/"+s.bucket+"/"+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if size > 0 {
		req.ContentLength = size
	}

	bearer := s.apiKey
	if caller, ok := database.CallerFrom(ctx); ok && caller.AccessToken != "" {
		bearer = caller.AccessToken
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperrors.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		cause := fmt.Errorf("storage request failed with status %d: %s", resp.StatusCode, string(msg))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperrors.Wrap(cause, apperrors.KindUnauthorized, "You are not allowed to upload to this project")
		case http.StatusRequestEntityTooLarge:
			return apperrors.ErrFileTooLarge
		case http.StatusConflict:
			return apperrors.Backend(cause, "File already exists").WithCode(apperrors.CodeDuplicate)
		default:
			return apperrors.Backend(cause, "Upload failed")
		}
	}
	return nil
}

// Save uploads a file; existing objects are never overwritten
func (s *SupabaseStorage) Save(ctx context.Context, path string, reader io.Reader, size int64, contentType string) error {
	return s.do(ctx, http.MethodPost, path, reader, size, map[string]string{
		"Content-Type":  contentType,
		"Cache-Control": "max-age=3600",
		"x-upsert":      "false",
	})
}

// Delete removes a file from the bucket
func (s *SupabaseStorage) Delete(ctx context.Context, path string) error {
	return s.do(ctx, http.MethodDelete, path, nil, 0, nil)
}

// GetURL returns the bucket's public URL for the file
func (s *SupabaseStorage) GetURL(ctx context.Context, path string) (string, error) {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, path), nil
}
