package client

import (
	"context"
	"net/http"
	"net/url"

	"clientbridge/pkg/models"
)

// SignUp registers a new account
func (c *Client) SignUp(ctx context.Context, req models.SignUpRequest) (*models.SignUpResult, error) {
	var res models.SignUpResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SignIn exchanges credentials for a session
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var res struct {
		Session *models.Session `json:"session"`
		User    *models.User    `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", models.SignInRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	return res.Session, nil
}

// Refresh exchanges a refresh token for a new session
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	var s models.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", models.RefreshTokenRequest{RefreshToken: refreshToken}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SignOut ends the session on the server
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.WithToken(accessToken).do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// LoadProfile returns the user behind accessToken
func (c *Client) LoadProfile(ctx context.Context, accessToken string) (*models.User, error) {
	var u models.User
	if err := c.WithToken(accessToken).do(ctx, http.MethodGet, "/api/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// JoinProject redeems an invite token and returns the project id
func (c *Client) JoinProject(ctx context.Context, accessToken, token string) (string, error) {
	var res struct {
		ProjectID string `json:"project_id"`
	}
	body := map[string]string{"token": token}
	if err := c.WithToken(accessToken).do(ctx, http.MethodPost, "/api/invites/accept", body, &res); err != nil {
		return "", err
	}
	return res.ProjectID, nil
}

// ResolveInvite looks up what an invite token points to. viewerEmail is
// only consulted when the client is anonymous.
func (c *Client) ResolveInvite(ctx context.Context, token, viewerEmail string) (*models.InviteSummary, error) {
	path := "/api/invites/" + pathEscape(token)
	if viewerEmail != "" {
		path += "?email=" + url.QueryEscape(viewerEmail)
	}
	var s models.InviteSummary
	if err := c.do(ctx, http.MethodGet, path, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
