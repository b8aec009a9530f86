package services

import (
	"context"
	"strings"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/logger"
	"clientbridge/pkg/mailer"
	"clientbridge/pkg/models"
	"clientbridge/pkg/utils"
)

// NormalizeEmails trims, lower-cases and de-duplicates addresses, dropping blanks
func NormalizeEmails(emails []string) []string {
	cleaned := make([]string, 0, len(emails))
	for _, e := range emails {
		cleaned = append(cleaned, strings.ToLower(strings.TrimSpace(e)))
	}
	return uniqueStrings(cleaned)
}

// CreateProject creates a project owned by the actor with a fresh invite
// token, default categories and the allow-listed client e-mails.
func (s *Service) CreateProject(ctx context.Context, actor *models.User, req models.CreateProjectRequest) (*models.ProjectDetail, error) {
	if !actor.IsFreelancer() {
		return nil, apperrors.Forbidden("Only freelancers can create projects")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}

	token, err := utils.GenerateURLToken(utils.InviteTokenBytes)
	if err != nil {
		return nil, apperrors.Backend(err, "Failed to generate invite token")
	}

	project := &models.Project{
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		Timeline:     strings.TrimSpace(req.Timeline),
		Status:       models.ProjectActive,
		FreelancerID: actor.ID,
		InviteToken:  token,
	}
	if err := s.db.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("project_id", project.ID)

	for _, c := range models.DefaultCategories {
		c.ProjectID = project.ID
		if err := s.db.CreateCategory(ctx, &c); err != nil {
			log.Warn("failed to seed category", "name", c.Name, "error", err)
		}
	}

	emails := NormalizeEmails(req.ClientEmails)
	if err := s.db.AddAllowedClients(ctx, project.ID, emails); err != nil {
		return nil, err
	}
	s.sendInvites(ctx, actor, project, emails)

	log.Info("project created", "clients", len(emails))
	return &models.ProjectDetail{Project: *project, Clients: []models.User{}, AllowedClients: emails}, nil
}

// sendInvites mails the invite link to each address; failures are only logged
func (s *Service) sendInvites(ctx context.Context, actor *models.User, project *models.Project, emails []string) {
	if len(emails) == 0 {
		return
	}
	link := s.InviteURL(project)
	for _, email := range emails {
		err := s.mailer.SendInvite(ctx, mailer.Invite{
			To:             email,
			ProjectName:    project.Name,
			FreelancerName: actor.Name,
			InviteURL:      link,
		})
		if err != nil {
			logger.FromContext(ctx).Warn("invite e-mail failed", "project_id", project.ID, "to", email, "error", err)
		}
	}
}

// ListProjects returns the projects the actor owns (freelancer) or joined (client)
func (s *Service) ListProjects(ctx context.Context, actor *models.User) ([]models.Project, error) {
	var (
		list []models.Project
		err  error
	)
	if actor.IsFreelancer() {
		list, err = s.db.ListProjectsByFreelancer(ctx, actor.ID)
	} else {
		list, err = s.db.ListProjectsByClient(ctx, actor.ID)
		for i := range list {
			list[i].InviteToken = ""
		}
	}
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Project{}
	}
	return list, nil
}

// GetProject returns a project with its joined clients. The owner also
// sees the invite token and the allow-list.
func (s *Service) GetProject(ctx context.Context, actor *models.User, id string) (*models.ProjectDetail, error) {
	project, err := s.requireMember(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	detail := &models.ProjectDetail{Project: *project, Clients: []models.User{}}

	clientIDs, err := s.db.ListProjectClientIDs(ctx, id, actor.Role)
	if err != nil {
		return nil, err
	}
	names := s.profileNames(ctx, clientIDs)
	for _, cid := range clientIDs {
		detail.Clients = append(detail.Clients, models.User{
			ID:   cid,
			Name: models.DisplayName(names, cid, actor),
			Role: models.RoleClient,
		})
	}

	if project.FreelancerID == actor.ID {
		allowed, err := s.db.ListAllowedClients(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, a := range allowed {
			detail.AllowedClients = append(detail.AllowedClients, a.Email)
		}
	} else {
		detail.InviteToken = ""
	}
	return detail, nil
}

// UpdateProject applies the non-nil fields of req; owner only
func (s *Service) UpdateProject(ctx context.Context, actor *models.User, id string, req models.UpdateProjectRequest) (*models.Project, error) {
	project, err := s.requireOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.Validation("name cannot be empty")
		}
		project.Name = name
	}
	if req.Description != nil {
		project.Description = strings.TrimSpace(*req.Description)
	}
	if req.Timeline != nil {
		project.Timeline = strings.TrimSpace(*req.Timeline)
	}
	if req.Status != nil {
		project.Status = *req.Status
	}
	if err := s.db.UpdateProject(ctx, project); err != nil {
		return nil, err
	}
	return s.db.GetProject(ctx, id)
}

// AddAllowedClients extends the allow-list and mails the new addresses
func (s *Service) AddAllowedClients(ctx context.Context, actor *models.User, id string, emails []string) ([]string, error) {
	project, err := s.requireOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	existing, err := s.db.ListAllowedClients(ctx, id)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		known[strings.ToLower(a.Email)] = struct{}{}
	}

	var added []string
	for _, e := range NormalizeEmails(emails) {
		if _, ok := known[e]; !ok {
			added = append(added, e)
		}
	}
	if err := s.db.AddAllowedClients(ctx, id, added); err != nil {
		return nil, err
	}
	s.sendInvites(ctx, actor, project, added)

	all := make([]string, 0, len(existing)+len(added))
	for _, a := range existing {
		all = append(all, a.Email)
	}
	return append(all, added...), nil
}

// recomputeProgress writes the derived progress back to the project row.
// A failed recompute or write-back is logged and the triggering todo change still
// stands; when the todos cannot be reloaded the stored progress is reported.
func (s *Service) recomputeProgress(ctx context.Context, project *models.Project) int {
	projectID := project.ID
	todos, err := s.db.ListTodos(ctx, projectID)
	if err != nil {
		logger.FromContext(ctx).Warn("progress recompute skipped", "project_id", projectID, "error", err)
		return project.Progress
	}
	completed := 0
	for _, t := range todos {
		if t.Completed {
			completed++
		}
	}
	progress := models.ComputeProgress(len(todos), completed)
	if err := s.db.UpdateProjectProgress(ctx, projectID, progress); err != nil {
		logger.FromContext(ctx).Warn("progress write-back failed", "project_id", projectID, "error", err)
	}
	return progress
}
