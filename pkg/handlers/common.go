package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/middleware"
	"clientbridge/pkg/models"
	"clientbridge/pkg/services"
	"clientbridge/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead leaves room for the text fields next to the image part
const multipartOverhead = 1 << 20

// currentUser writes a 401 and returns false when the request is anonymous
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteAppError(w, r, err)
		return nil, false
	}
	return user, true
}

// pathParam 返回只解码一次的路径参数。
// chi 在请求含转义字符时按 RawPath 路由，此时参数仍是编码形式
func pathParam(r *http.Request, key string) (string, error) {
	value := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return value, nil
	}
	decoded, err := url.PathUnescape(value)
	if err != nil {
		return "", apperrors.Validation("Malformed " + key).WithDetails(map[string]string{key: value})
	}
	return decoded, nil
}

// isMultipart reports whether the request carries a form upload
func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// parseMultipart 解析表单，超出上限时报告 FILE_TOO_LARGE
func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(services.MaxImageSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.ErrFileTooLarge
		}
		return apperrors.Wrap(err, apperrors.KindValidation, "Invalid multipart form")
	}
	return nil
}

// formImage returns the optional "image" part; the caller closes the file
func formImage(r *http.Request) (*services.Attachment, multipart.File, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.KindValidation, "Invalid image part")
	}
	return &services.Attachment{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, file, nil
}

// formString returns a trimmed form value, or nil when it is absent or blank
func formString(r *http.Request, key string) *string {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return nil
	}
	return &v
}
