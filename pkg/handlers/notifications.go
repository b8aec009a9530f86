package handlers

import (
	"net/http"
	"strconv"

	"clientbridge/pkg/config"
	"clientbridge/pkg/realtime"
	"clientbridge/pkg/services"
	"clientbridge/pkg/utils"

	"github.com/go-chi/chi/v5"
)

type NotificationsHandler struct {
	config *config.Config
	svc    *services.Service
	ws     *realtime.Server
}

func NewNotificationsHandler(cfg *config.Config, svc *services.Service, ws *realtime.Server) *NotificationsHandler {
	return &NotificationsHandler{config: cfg, svc: svc, ws: ws}
}

// GET /api/notifications?limit=
func (h *NotificationsHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			utils.WriteBadRequestResponse(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	feed, err := h.svc.NotificationFeed(r.Context(), user, limit)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, feed)
}

// POST /api/notifications/{id}/read
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.svc.MarkNotificationRead(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, n)
}

// POST /api/notifications/read-all
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	count, err := h.svc.MarkAllNotificationsRead(r.Context(), user)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]int{"updated": count})
}

// GET /api/notifications/ws
// 浏览器无法设置 Authorization 头，令牌可通过 access_token 查询参数传入
func (h *NotificationsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	h.ws.Serve(w, r, user.ID)
}
