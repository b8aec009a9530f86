package services

import (
	"context"
	"strings"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/models"
)

// TodoResult is a changed todo plus the project's recomputed progress
type TodoResult struct {
	Todo     *models.Todo `json:"todo,omitempty"`
	Progress int          `json:"progress"`
}

// ListTodos returns the project's todos, newest first
func (s *Service) ListTodos(ctx context.Context, actor *models.User, projectID string) ([]models.Todo, error) {
	if _, err := s.requireMember(ctx, actor, projectID); err != nil {
		return nil, err
	}
	todos, err := s.db.ListTodos(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	return todos, nil
}

// checkCategory makes sure a category id belongs to the project
func (s *Service) checkCategory(ctx context.Context, projectID string, categoryID *string) error {
	if categoryID == nil || *categoryID == "" {
		return nil
	}
	c, err := s.db.GetCategory(ctx, *categoryID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return apperrors.Validation("category does not exist")
		}
		return err
	}
	if c.ProjectID != projectID {
		return apperrors.Validation("category belongs to another project")
	}
	return nil
}

func (s *Service) CreateTodo(ctx context.Context, actor *models.User, projectID string, req models.CreateTodoRequest) (*TodoResult, error) {
	project, err := s.requireOwner(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}
	if req.CategoryID != nil && *req.CategoryID == "" {
		req.CategoryID = nil
	}
	if err := s.checkCategory(ctx, projectID, req.CategoryID); err != nil {
		return nil, err
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	todo := &models.Todo{
		ProjectID:   projectID,
		Title:       title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Priority:    priority,
	}
	if err := s.db.CreateTodo(ctx, todo); err != nil {
		return nil, err
	}
	return &TodoResult{Todo: todo, Progress: s.recomputeProgress(ctx, project)}, nil
}

// todoForOwner loads a todo and its project, checking the actor owns the project
func (s *Service) todoForOwner(ctx context.Context, actor *models.User, id string) (*models.Todo, *models.Project, error) {
	todo, err := s.db.GetTodo(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	project, err := s.requireOwner(ctx, actor, todo.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return todo, project, nil
}

// ToggleTodo flips the completed flag; CompletedAt follows it.
func (s *Service) ToggleTodo(ctx context.Context, actor *models.User, id string) (*TodoResult, error) {
	todo, project, err := s.todoForOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	todo.Completed = !todo.Completed
	if todo.Completed {
		now := s.now().UTC()
		todo.CompletedAt = &now
	} else {
		todo.CompletedAt = nil
	}
	if err := s.db.UpdateTodo(ctx, todo); err != nil {
		return nil, err
	}
	return &TodoResult{Todo: todo, Progress: s.recomputeProgress(ctx, project)}, nil
}

func (s *Service) UpdateTodo(ctx context.Context, actor *models.User, id string, req models.UpdateTodoRequest) (*TodoResult, error) {
	todo, project, err := s.todoForOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, apperrors.Validation("title cannot be empty")
		}
		todo.Title = title
	}
	if req.Description != nil {
		todo.Description = req.Description
	}
	if req.CategoryID != nil {
		if *req.CategoryID == "" {
			todo.CategoryID = nil
		} else {
			if err := s.checkCategory(ctx, todo.ProjectID, req.CategoryID); err != nil {
				return nil, err
			}
			todo.CategoryID = req.CategoryID
		}
	}
	if req.Priority != nil {
		todo.Priority = *req.Priority
	}
	if err := s.db.UpdateTodo(ctx, todo); err != nil {
		return nil, err
	}
	return &TodoResult{Todo: todo, Progress: s.recomputeProgress(ctx, project)}, nil
}

func (s *Service) DeleteTodo(ctx context.Context, actor *models.User, id string) (*TodoResult, error) {
	_, project, err := s.todoForOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.DeleteTodo(ctx, id); err != nil {
		return nil, err
	}
	return &TodoResult{Progress: s.recomputeProgress(ctx, project)}, nil
}

// ================= Categories =================

func (s *Service) ListCategories(ctx context.Context, actor *models.User, projectID string) ([]models.Category, error) {
	if _, err := s.requireMember(ctx, actor, projectID); err != nil {
		return nil, err
	}
	list, err := s.db.ListCategories(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Category{}
	}
	return list, nil
}

func (s *Service) CreateCategory(ctx context.Context, actor *models.User, projectID string, req models.CreateCategoryRequest) (*models.Category, error) {
	if _, err := s.requireOwner(ctx, actor, projectID); err != nil {
		return nil, err
	}
	c := &models.Category{
		ProjectID: projectID,
		Name:      strings.TrimSpace(req.Name),
		Color:     strings.ToLower(req.Color),
	}
	if c.Name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if err := s.db.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCategory removes a category; its todos become uncategorised
func (s *Service) DeleteCategory(ctx context.Context, actor *models.User, id string) error {
	c, err := s.db.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.requireOwner(ctx, actor, c.ProjectID); err != nil {
		return err
	}
	return s.db.DeleteCategory(ctx, id)
}
