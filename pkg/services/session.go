package services

import (
	"context"
	"strings"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/database"
	"clientbridge/pkg/logger"
	"clientbridge/pkg/models"
)

// SignInResult pairs a session with the profile it belongs to
type SignInResult struct {
	Session *models.Session `json:"session"`
	User    *models.User    `json:"user"`
}

// SignUp creates the auth identity and then its profile row. When the
// request carries an invite token and a session came back, the token is
// redeemed straight away.
func (s *Service) SignUp(ctx context.Context, req models.SignUpRequest) (*models.SignUpResult, error) {
	email := strings.TrimSpace(req.Email)
	name := strings.TrimSpace(req.Name)
	if !req.Role.Valid() {
		return nil, apperrors.Validation("role must be freelancer or client")
	}
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}

	outcome, err := s.auth.SignUp(ctx, email, req.Password, map[string]interface{}{
		"name": name,
		"role": string(req.Role),
	})
	if err != nil {
		return nil, err
	}

	caller := database.Caller{UserID: outcome.User.ID, Email: outcome.User.Email}
	if outcome.Session != nil {
		caller.AccessToken = outcome.Session.AccessToken
	}
	actx := database.WithCaller(ctx, caller)

	profile := &models.Profile{ID: outcome.User.ID, Name: name, Role: req.Role}
	if err := s.db.CreateProfile(actx, profile); err != nil && !isDuplicate(err) {
		if outcome.Session != nil {
			return nil, err
		}
		// 未确认邮箱时没有会话，资料行由平台触发器补建
		logger.FromContext(ctx).Warn("profile insert deferred until confirmation", "user_id", outcome.User.ID, "error", err)
	}

	if outcome.Session == nil {
		return &models.SignUpResult{Status: models.SignUpPendingConfirmation}, nil
	}

	result := &models.SignUpResult{
		Status:  models.SignUpAuthenticated,
		Session: outcome.Session,
		User:    models.NewUser(&outcome.User, profile),
	}
	if token := strings.TrimSpace(req.InviteToken); token != "" {
		projectID, err := s.JoinProject(ctx, outcome.Session.AccessToken, token)
		if err != nil {
			logger.FromContext(ctx).Warn("invite redemption after sign-up failed", "user_id", outcome.User.ID, "error", err)
		} else {
			result.ProjectID = projectID
		}
	}
	return result, nil
}

// SignIn checks the credentials and loads the profile behind them
func (s *Service) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	session, err := s.auth.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	user, err := s.LoadUser(ctx, session.User, session.AccessToken)
	if err != nil {
		return nil, err
	}
	return &SignInResult{Session: session, User: user}, nil
}

// Refresh exchanges a refresh token for a new session
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	return s.auth.RefreshSession(ctx, refreshToken)
}

// Logout always succeeds; a failed remote sign-out is only logged.
func (s *Service) Logout(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	if err := s.auth.SignOut(ctx, accessToken); err != nil {
		logger.FromContext(ctx).Warn("remote sign-out failed", "error", err)
	}
}

// CurrentUser resolves an access token against the auth provider
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	authUser, err := s.auth.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return s.LoadUser(ctx, *authUser, accessToken)
}

// LoadUser joins an auth identity with its profile. A missing profile means
// the identity is not usable yet.
func (s *Service) LoadUser(ctx context.Context, authUser models.AuthUser, accessToken string) (*models.User, error) {
	actx := database.WithCaller(ctx, database.Caller{UserID: authUser.ID, Email: authUser.Email, AccessToken: accessToken})
	profile, err := s.db.GetProfile(actx, authUser.ID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.Unauthenticated("No profile exists for this account").WithCode(apperrors.CodeProfileMissing)
		}
		return nil, err
	}
	return models.NewUser(&authUser, profile), nil
}
