package storage

import (
	"context"
	"fmt"
	"io"
)

// Storage defines the interface for file storage operations
type Storage interface {
	// Save stores size bytes from reader at the given path
	Save(ctx context.Context, path string, reader io.Reader, size int64, contentType string) error

	// Delete removes a file at the given path
	Delete(ctx context.Context, path string) error

	// GetURL returns a public URL for the file
	GetURL(ctx context.Context, path string) (string, error)
}

// Config holds storage configuration
type Config struct {
	Type      string // supabase, s3, local
	BasePath  string // For local storage
	BaseURL   string // Public URL base
	Bucket    string // For Supabase/S3
	Region    string // For S3
	AccessKey string // For S3
	SecretKey string // For S3
	Endpoint  string // Supabase project URL, or a custom S3 endpoint
	APIKey    string // Supabase anon key
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStorage(cfg)
	case "s3":
		return NewS3Storage(ctx, cfg)
	case "supabase":
		return NewSupabaseStorage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
