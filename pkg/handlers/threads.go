package handlers

import (
	"net/http"

	"clientbridge/pkg/config"
	"clientbridge/pkg/models"
	"clientbridge/pkg/services"
	"clientbridge/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// ThreadsHandler serves feedback threads and their replies
type ThreadsHandler struct {
	config *config.Config
	svc    *services.Service
}

func NewThreadsHandler(cfg *config.Config, svc *services.Service) *ThreadsHandler {
	return &ThreadsHandler{config: cfg, svc: svc}
}

// GET /api/projects/{id}/threads
func (h *ThreadsHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	threads, err := h.svc.ListThreads(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	utils.WriteSuccessResponse(w, threads)
}

// POST /api/projects/{id}/threads
// 接受 JSON，或带 image 文件的 multipart/form-data
func (h *ThreadsHandler) CreateThread(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var (
		req   models.CreateThreadRequest
		image *services.Attachment
	)
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			utils.WriteAppError(w, r, err)
			return
		}
		req = models.CreateThreadRequest{
			Title:    r.FormValue("title"),
			Content:  formString(r, "content"),
			Category: models.ThreadCategory(r.FormValue("category")),
			URL:      formString(r, "url"),
		}
		att, file, err := formImage(r)
		if err != nil {
			utils.WriteAppError(w, r, err)
			return
		}
		if file != nil {
			defer file.Close()
		}
		image = att
		if err := utils.ValidateStruct(&req); err != nil {
			utils.WriteAppError(w, r, err)
			return
		}
	} else if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}

	thread, err := h.svc.CreateThread(r.Context(), user, chi.URLParam(r, "id"), req, image)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, thread)
}

// GET /api/threads/{id}
func (h *ThreadsHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	thread, err := h.svc.GetThread(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, thread)
}

// POST /api/threads/{id}/resolve
func (h *ThreadsHandler) ToggleResolved(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	thread, err := h.svc.ToggleThreadResolved(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, thread)
}

// DELETE /api/threads/{id}
func (h *ThreadsHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteThread(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/threads/{id}/replies
func (h *ThreadsHandler) ListReplies(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	replies, err := h.svc.ListReplies(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	if replies == nil {
		replies = []models.ThreadReply{}
	}
	utils.WriteSuccessResponse(w, replies)
}

// POST /api/threads/{id}/replies
func (h *ThreadsHandler) CreateReply(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var (
		req   models.CreateReplyRequest
		image *services.Attachment
	)
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			utils.WriteAppError(w, r, err)
			return
		}
		req = models.CreateReplyRequest{Content: r.FormValue("content")}
		att, file, err := formImage(r)
		if err != nil {
			utils.WriteAppError(w, r, err)
			return
		}
		if file != nil {
			defer file.Close()
		}
		image = att
		if err := utils.ValidateStruct(&req); err != nil {
			utils.WriteAppError(w, r, err)
			return
		}
	} else if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}

	reply, err := h.svc.CreateReply(r.Context(), user, chi.URLParam(r, "id"), req, image)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, reply)
}

// PUT /api/replies/{id}
func (h *ThreadsHandler) UpdateReply(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.UpdateReplyRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	reply, err := h.svc.UpdateReply(r.Context(), user, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, reply)
}
