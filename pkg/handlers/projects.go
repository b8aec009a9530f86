package handlers

import (
	"net/http"

	"clientbridge/pkg/config"
	"clientbridge/pkg/models"
	"clientbridge/pkg/services"
	"clientbridge/pkg/utils"

	"github.com/go-chi/chi/v5"
)

type ProjectsHandler struct {
	config *config.Config
	svc    *services.Service
}

func NewProjectsHandler(cfg *config.Config, svc *services.Service) *ProjectsHandler {
	return &ProjectsHandler{config: cfg, svc: svc}
}

// GET /api/projects
func (h *ProjectsHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	projects, err := h.svc.ListProjects(r.Context(), user)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	utils.WriteSuccessResponse(w, projects)
}

// POST /api/projects
func (h *ProjectsHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.CreateProjectRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	project, err := h.svc.CreateProject(r.Context(), user, req)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{
		"project":    project,
		"invite_url": h.svc.InviteURL(&project.Project),
	})
}

// GET /api/projects/{id}
func (h *ProjectsHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	project, err := h.svc.GetProject(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, project)
}

// PUT /api/projects/{id}
func (h *ProjectsHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.UpdateProjectRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	project, err := h.svc.UpdateProject(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, project)
}

// POST /api/projects/{id}/allowed-clients
func (h *ProjectsHandler) AddAllowedClients(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.AddAllowedClientsRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	added, err := h.svc.AddAllowedClients(r.Context(), user, chi.URLParam(r, "id"), req.Emails)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	if added == nil {
		added = []string{}
	}
	utils.WriteSuccessResponse(w, map[string][]string{"added": added})
}
