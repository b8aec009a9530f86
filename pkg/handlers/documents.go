package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"clientbridge/pkg/config"
	"clientbridge/pkg/logger"
	"clientbridge/pkg/models"
	"clientbridge/pkg/services"
	"clientbridge/pkg/utils"

	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type DocumentsHandler struct {
	config *config.Config
	svc    *services.Service
}

func NewDocumentsHandler(cfg *config.Config, svc *services.Service) *DocumentsHandler {
	return &DocumentsHandler{config: cfg, svc: svc}
}

// GET /api/projects/{id}/documents
func (h *DocumentsHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListDocuments(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	if list.Documents == nil {
		list.Documents = []models.Document{}
	}
	utils.WriteSuccessResponse(w, list)
}

// POST /api/projects/{id}/documents
func (h *DocumentsHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.CreateDocumentRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	doc, err := h.svc.CreateDocument(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, doc)
}

// PUT /api/documents/{id}
func (h *DocumentsHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.UpdateDocumentRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	doc, err := h.svc.UpdateDocument(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, doc)
}

// DELETE /api/documents/{id}
func (h *DocumentsHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteDocument(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/projects/{id}/documents/export
func (h *DocumentsHandler) ExportDocuments(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "id")
	data, err := h.svc.ExportDocuments(r.Context(), user, projectID)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}

	filename := fmt.Sprintf("documents-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.FromContext(r.Context()).Warn("export write failed", "project_id", projectID, "error", err)
	}
}
