package handlers

import (
	"net/http"

	"clientbridge/pkg/config"
	"clientbridge/pkg/middleware"
	"clientbridge/pkg/services"
	"clientbridge/pkg/utils"
)

type InvitesHandler struct {
	config *config.Config
	svc    *services.Service
}

func NewInvitesHandler(cfg *config.Config, svc *services.Service) *InvitesHandler {
	return &InvitesHandler{config: cfg, svc: svc}
}

type acceptInviteRequest struct {
	Token string `json:"token" validate:"required"`
}

// GET /api/invites/{token}
// 不要求登录；登录时用会话邮箱判断是否在白名单中，否则读取 ?email=
func (h *InvitesHandler) ResolveInvite(w http.ResponseWriter, r *http.Request) {
	viewerEmail := r.URL.Query().Get("email")
	if user, ok := middleware.GetUserFromContext(r.Context()); ok {
		viewerEmail = user.Email
	}

	token, err := pathParam(r, "token")
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	summary, err := h.svc.ResolveInvite(r.Context(), token, viewerEmail)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, summary)
}

// POST /api/invites/accept
func (h *InvitesHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	var req acceptInviteRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}

	projectID, err := h.svc.JoinProject(r.Context(), middleware.GetAccessToken(r.Context()), req.Token)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"project_id": projectID})
}
