// Package client is a typed HTTP client for the ClientBridge API. It also
// serves as the remote backend of a session.Manager.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"clientbridge/pkg/apperrors"
)

// Client talks to one ClientBridge server. The zero token means anonymous.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// New creates an anonymous client
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying http.Client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.httpClient = hc
	return &cp
}

// WithToken returns a copy that authenticates as the holder of accessToken
func (c *Client) WithToken(accessToken string) *Client {
	cp := *c
	cp.token = accessToken
	return &cp
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string      `json:"code"`
		Kind    string      `json:"kind"`
		Message string      `json:"message"`
		Details interface{} `json:"details"`
	} `json:"error"`
}

// do sends a JSON request and decodes the data member of the envelope into out
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Network(err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// decodeResponse unwraps the response envelope into out, or into an AppError
func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Network(err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return statusError(resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return apperrors.Backend(err, "Unexpected response from server")
	}
	if resp.StatusCode >= 400 || !env.Success {
		if env.Error == nil {
			return statusError(resp.StatusCode, resp.Status)
		}
		return decodeError(resp.StatusCode, env.Error.Kind, env.Error.Code, env.Error.Message, env.Error.Details)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperrors.Backend(err, "Unexpected response from server")
	}
	return nil
}

// decodeError rebuilds the server's AppError from the envelope
func decodeError(status int, kind, code, message string, details interface{}) error {
	appErr := &apperrors.AppError{Kind: apperrors.Kind(kind), Message: message, Details: details}
	if appErr.Kind == "" {
		appErr.Kind = kindForStatus(status)
	}
	if code != "" && code != kind {
		appErr.Code = apperrors.Code(code)
	}
	return appErr
}

func statusError(status int, message string) error {
	return apperrors.New(kindForStatus(status), message)
}

func kindForStatus(status int) apperrors.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return apperrors.KindValidation
	case http.StatusUnauthorized:
		return apperrors.KindUnauthenticated
	case http.StatusForbidden:
		return apperrors.KindForbidden
	case http.StatusNotFound:
		return apperrors.KindNotFound
	}
	return apperrors.KindBackend
}

// Image is an attachment to upload with a thread or reply
type Image struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// doMultipart posts text fields and an optional image as multipart/form-data
func (c *Client) doMultipart(ctx context.Context, path string, fields map[string]string, image *Image, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to encode form: %w", err)
		}
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(image.Filename)))
		h.Set("Content-Type", image.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("failed to encode form: %w", err)
		}
		if _, err := io.Copy(part, image.Body); err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to encode form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, out)
}

func pathEscape(id string) string {
	return url.PathEscape(id)
}
