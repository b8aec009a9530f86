package services

import (
	"context"
	"time"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/database"
	"clientbridge/pkg/mailer"
	"clientbridge/pkg/models"
	"clientbridge/pkg/realtime"
	"clientbridge/pkg/storage"
)

// Options wires a Service to its collaborators. Hub, Mailer and Storage are optional.
type Options struct {
	DB      database.DatabaseInterface
	Auth    database.AuthProvider
	Storage storage.Storage
	Hub     realtime.Hub
	Mailer  mailer.Mailer
	BaseURL string
	Now     func() time.Time
}

// Service 业务层：角色校验、邀请、通知扇出与派生字段都在这里
type Service struct {
	db      database.DatabaseInterface
	auth    database.AuthProvider
	storage storage.Storage
	hub     realtime.Hub
	mailer  mailer.Mailer
	baseURL string
	now     func() time.Time
}

// New creates a Service
func New(opts Options) *Service {
	s := &Service{
		db:      opts.DB,
		auth:    opts.Auth,
		storage: opts.Storage,
		hub:     opts.Hub,
		mailer:  opts.Mailer,
		baseURL: opts.BaseURL,
		now:     opts.Now,
	}
	if s.mailer == nil {
		s.mailer = mailer.NoopMailer{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// DB exposes the store for health checks
func (s *Service) DB() database.DatabaseInterface {
	return s.db
}

// requireMember loads the project and checks the actor owns it or has joined it.
func (s *Service) requireMember(ctx context.Context, actor *models.User, projectID string) (*models.Project, error) {
	if actor == nil {
		return nil, apperrors.Unauthenticated("Authentication required")
	}
	project, err := s.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.FreelancerID == actor.ID {
		return project, nil
	}
	if actor.Role != models.RoleClient {
		return nil, apperrors.ErrNotMember
	}
	if _, err := s.db.GetProjectClient(ctx, projectID, actor.ID); err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.ErrNotMember
		}
		return nil, err
	}
	return project, nil
}

// requireOwner is requireMember restricted to the project's freelancer
func (s *Service) requireOwner(ctx context.Context, actor *models.User, projectID string) (*models.Project, error) {
	if actor == nil {
		return nil, apperrors.Unauthenticated("Authentication required")
	}
	if !actor.IsFreelancer() {
		return nil, apperrors.ErrFreelancerOnly
	}
	project, err := s.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.FreelancerID != actor.ID {
		return nil, apperrors.ErrFreelancerOnly
	}
	return project, nil
}

// profileNames maps user ids to the names the viewer is allowed to see
func (s *Service) profileNames(ctx context.Context, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names
	}
	profiles, err := s.db.ListProfiles(ctx, uniqueStrings(ids))
	if err != nil {
		// 客户端角色可能看不到其他人的资料，降级为占位名
		return names
	}
	for _, p := range profiles {
		names[p.ID] = p.Name
	}
	return names
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func isDuplicate(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeDuplicate)
}
