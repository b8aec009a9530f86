package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/logger"
	"clientbridge/pkg/models"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageSize is the largest accepted image attachment (5 MiB)
const MaxImageSize = 5 << 20

// sniffLen matches mimetype's default read limit
const sniffLen = 3072

// Attachment is an uploaded image before it reaches storage
type Attachment struct {
	Filename    string
	ContentType string // as declared by the uploader
	Size        int64
	Body        io.Reader
}

// ValidateImage checks the declared type and size without reading the body
func ValidateImage(contentType string, size int64) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return apperrors.ErrInvalidFileType
	}
	if size <= 0 {
		return apperrors.Validation("Image is empty")
	}
	if size > MaxImageSize {
		return apperrors.ErrFileTooLarge
	}
	return nil
}

// ImagePath is where an uploader's image for a project is stored
func ImagePath(projectID, uploaderID string, unixMillis int64, ext string) string {
	return fmt.Sprintf("projects/%s/thread-images/%s/%d%s", projectID, uploaderID, unixMillis, ext)
}

// UploadImage validates an attachment, stores it and returns its public URL.
// Nothing is written when validation fails.
func (s *Service) UploadImage(ctx context.Context, actor *models.User, projectID string, att *Attachment) (string, error) {
	if err := ValidateImage(att.ContentType, att.Size); err != nil {
		return "", err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(att.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", apperrors.Wrap(err, apperrors.KindValidation, "Could not read image")
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", apperrors.ErrInvalidFileType
	}

	if s.storage == nil {
		return "", apperrors.Backend(errors.New("no storage driver"), "File storage is not configured")
	}

	ext := detected.Extension()
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(att.Filename))
	}
	path := ImagePath(projectID, actor.ID, s.now().UnixMilli(), ext)
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), att.Body), att.Size)

	if err := s.storage.Save(ctx, path, body, att.Size, detected.String()); err != nil {
		return "", err
	}
	url, err := s.storage.GetURL(ctx, path)
	if err != nil {
		return "", err
	}
	logger.FromContext(ctx).Debug("image uploaded", "path", path, "size", att.Size)
	return url, nil
}
