package handlers

import (
	"net/http"

	"clientbridge/pkg/config"
	"clientbridge/pkg/models"
	"clientbridge/pkg/services"
	"clientbridge/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// TodosHandler serves todos and the categories they are grouped by
type TodosHandler struct {
	config *config.Config
	svc    *services.Service
}

func NewTodosHandler(cfg *config.Config, svc *services.Service) *TodosHandler {
	return &TodosHandler{config: cfg, svc: svc}
}

// GET /api/projects/{id}/todos
func (h *TodosHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	todos, err := h.svc.ListTodos(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	utils.WriteSuccessResponse(w, todos)
}

// POST /api/projects/{id}/todos
func (h *TodosHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.CreateTodoRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	result, err := h.svc.CreateTodo(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, result)
}

// PUT /api/todos/{id}
func (h *TodosHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.UpdateTodoRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	result, err := h.svc.UpdateTodo(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, result)
}

// POST /api/todos/{id}/toggle
func (h *TodosHandler) ToggleTodo(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ToggleTodo(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, result)
}

// DELETE /api/todos/{id}
func (h *TodosHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	result, err := h.svc.DeleteTodo(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, result)
}

// GET /api/projects/{id}/categories
func (h *TodosHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	categories, err := h.svc.ListCategories(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	utils.WriteSuccessResponse(w, categories)
}

// POST /api/projects/{id}/categories
func (h *TodosHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.CreateCategoryRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	category, err := h.svc.CreateCategory(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, category)
}

// DELETE /api/categories/{id}
func (h *TodosHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
