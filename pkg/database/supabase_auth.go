package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/models"
)

// SupabaseAuth talks to the platform's GoTrue endpoints under /auth/v1
type SupabaseAuth struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseAuth 创建认证客户端
func NewSupabaseAuth(baseURL, anonKey string) *SupabaseAuth {
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "https://" + baseURL
	}
	return &SupabaseAuth{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  anonKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// gotrueSession covers both sign-up shapes: a session, or a bare user when confirmation is pending
type gotrueSession struct {
	AccessToken      string           `json:"access_token"`
	RefreshToken     string           `json:"refresh_token"`
	ExpiresIn        int64            `json:"expires_in"`
	TokenType        string           `json:"token_type"`
	User             *models.AuthUser `json:"user"`
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	EmailConfirmedAt *time.Time       `json:"email_confirmed_at"`
}

func (s *gotrueSession) authUser() models.AuthUser {
	if s.User != nil {
		return *s.User
	}
	return models.AuthUser{ID: s.ID, Email: s.Email, EmailConfirmedAt: s.EmailConfirmedAt}
}

func (s *gotrueSession) session() *models.Session {
	if s.AccessToken == "" {
		return nil
	}
	return &models.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    s.ExpiresIn,
		TokenType:    s.TokenType,
		User:         s.authUser(),
	}
}

type gotrueError struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

func (e gotrueError) message() string {
	for _, m := range []string{e.Msg, e.ErrorDescription, e.Message, e.Error} {
		if m != "" {
			return m
		}
	}
	return "Authentication request failed"
}

// translateAuthError maps GoTrue failures by error_code and status, never by message text
func translateAuthError(status int, body []byte) error {
	var gErr gotrueError
	_ = json.Unmarshal(body, &gErr)
	cause := fmt.Errorf("auth request failed with status %d: %s", status, string(body))

	switch gErr.ErrorCode {
	case "invalid_credentials":
		return apperrors.Wrap(cause, apperrors.KindUnauthenticated, "Invalid email or password").WithCode(apperrors.CodeInvalidCredentials)
	case "email_not_confirmed":
		return apperrors.Wrap(cause, apperrors.KindUnauthenticated, "Please confirm your email before signing in").WithCode(apperrors.CodeEmailNotConfirmed)
	case "user_already_exists", "email_exists":
		return apperrors.Wrap(cause, apperrors.KindValidation, "An account with this email already exists").WithCode(apperrors.CodeUserExists)
	case "weak_password", "validation_failed", "email_address_invalid":
		return apperrors.Wrap(cause, apperrors.KindValidation, gErr.message())
	case "bad_jwt", "session_not_found", "session_expired", "refresh_token_not_found", "refresh_token_already_used":
		return apperrors.Wrap(cause, apperrors.KindUnauthenticated, "Session expired, please sign in again")
	}

	switch {
	case gErr.Error == "invalid_grant":
		return apperrors.Wrap(cause, apperrors.KindUnauthenticated, "Invalid email or password").WithCode(apperrors.CodeInvalidCredentials)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.Wrap(cause, apperrors.KindUnauthenticated, gErr.message())
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return apperrors.Wrap(cause, apperrors.KindValidation, gErr.message())
	default:
		return apperrors.Backend(cause, gErr.message())
	}
}

func (a *SupabaseAuth) do(ctx context.Context, method, endpoint, bearer string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+"/auth/v1"+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if bearer == "" {
		bearer = a.apiKey
	}
	req.Header.Set("apikey", a.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return apperrors.Network(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Network(err)
	}
	if resp.StatusCode >= 400 {
		return translateAuthError(resp.StatusCode, respBody)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperrors.Backend(err, "Unexpected response from auth service")
		}
	}
	return nil
}

// SignUp 注册；需要邮件确认时 Session 为 nil
func (a *SupabaseAuth) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*models.SignUpOutcome, error) {
	payload := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	if len(metadata) > 0 {
		payload["data"] = metadata
	}

	var res gotrueSession
	if err := a.do(ctx, http.MethodPost, "/signup", "", payload, &res); err != nil {
		return nil, err
	}
	user := res.authUser()
	if user.ID == "" {
		return nil, apperrors.Backend(fmt.Errorf("signup returned no user"), "Sign-up failed")
	}
	return &models.SignUpOutcome{User: user, Session: res.session()}, nil
}

func (a *SupabaseAuth) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	payload := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	var res gotrueSession
	if err := a.do(ctx, http.MethodPost, "/token?grant_type=password", "", payload, &res); err != nil {
		return nil, err
	}
	if s := res.session(); s != nil {
		return s, nil
	}
	return nil, apperrors.Backend(fmt.Errorf("token grant returned no access token"), "Sign-in failed")
}

func (a *SupabaseAuth) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	var res gotrueSession
	payload := map[string]interface{}{"refresh_token": refreshToken}
	if err := a.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", payload, &res); err != nil {
		return nil, err
	}
	if s := res.session(); s != nil {
		return s, nil
	}
	return nil, apperrors.Unauthenticated("Session expired, please sign in again")
}

func (a *SupabaseAuth) SignOut(ctx context.Context, accessToken string) error {
	return a.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

// GetUser 向平台查询令牌对应的最新身份
func (a *SupabaseAuth) GetUser(ctx context.Context, accessToken string) (*models.AuthUser, error) {
	if accessToken == "" {
		return nil, apperrors.Unauthenticated("Authentication required")
	}
	var user models.AuthUser
	if err := a.do(ctx, http.MethodGet, "/user", accessToken, nil, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, apperrors.Unauthenticated("Authentication required")
	}
	return &user, nil
}
