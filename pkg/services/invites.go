package services

import (
	"context"
	"strings"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/database"
	"clientbridge/pkg/logger"
	"clientbridge/pkg/models"
	"clientbridge/pkg/utils"
)

// ResolveInvite looks a token up without writing anything. The token must
// already be decoded; it is compared exactly.
func (s *Service) ResolveInvite(ctx context.Context, token, viewerEmail string) (*models.InviteSummary, error) {
	if token == "" {
		return nil, apperrors.ErrInvalidInvite
	}
	return s.db.GetProjectByInviteToken(ctx, token, strings.TrimSpace(viewerEmail))
}

// InviteURL is the link a client follows to redeem the project's token
func (s *Service) InviteURL(project *models.Project) string {
	return utils.InviteURL(s.baseURL, project.InviteToken)
}

// JoinProject redeems an invite token for the identity behind accessToken.
// The identity is fetched fresh so a just-finished sign-up is seen.
// Redeeming twice returns the same project id.
func (s *Service) JoinProject(ctx context.Context, accessToken, token string) (string, error) {
	if accessToken == "" {
		return "", apperrors.Unauthenticated("Sign in to join this project")
	}
	identity, err := s.auth.GetUser(ctx, accessToken)
	if err != nil {
		return "", err
	}
	ctx = database.WithCaller(ctx, database.Caller{UserID: identity.ID, Email: identity.Email, AccessToken: accessToken})
	log := logger.FromContext(ctx).With("user_id", identity.ID)

	invite, err := s.db.GetProjectByInviteToken(ctx, token, identity.Email)
	if err != nil {
		return "", err
	}

	if _, err := s.db.GetProjectClient(ctx, invite.ProjectID, identity.ID); err == nil {
		log.Debug("invite already redeemed", "project_id", invite.ProjectID)
		return invite.ProjectID, nil
	} else if !apperrors.IsKind(err, apperrors.KindNotFound) {
		return "", err
	}

	if _, err := s.db.AddProjectClient(ctx, invite.ProjectID, identity.ID); err != nil {
		switch {
		case isDuplicate(err):
			// 并发兑换：另一请求已插入
			return invite.ProjectID, nil
		case apperrors.IsKind(err, apperrors.KindUnauthorized):
			return "", apperrors.Wrap(err, apperrors.KindUnauthorized, "Your email is not authorized to join this project")
		default:
			return "", err
		}
	}

	log.Info("client joined project", "project_id", invite.ProjectID)
	return invite.ProjectID, nil
}
