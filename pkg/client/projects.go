package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/models"
)

// CreatedProject is what project creation returns
type CreatedProject struct {
	Project   models.ProjectDetail `json:"project"`
	InviteURL string               `json:"invite_url"`
}

// TodoResult pairs a todo mutation with the recomputed project progress
type TodoResult struct {
	Todo     *models.Todo `json:"todo,omitempty"`
	Progress int          `json:"progress"`
}

// DocumentList is the document list with its paid/pending totals
type DocumentList struct {
	Documents []models.Document     `json:"documents"`
	Totals    models.DocumentTotals `json:"totals"`
}

func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	return out, c.do(ctx, http.MethodGet, "/api/projects", nil, &out)
}

func (c *Client) CreateProject(ctx context.Context, req models.CreateProjectRequest) (*CreatedProject, error) {
	var out CreatedProject
	if err := c.do(ctx, http.MethodPost, "/api/projects", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*models.ProjectDetail, error) {
	var out models.ProjectDetail
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+pathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProject(ctx context.Context, id string, req models.UpdateProjectRequest) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, http.MethodPut, "/api/projects/"+pathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddAllowedClients returns the addresses that were not allow-listed before
func (c *Client) AddAllowedClients(ctx context.Context, projectID string, emails []string) ([]string, error) {
	var out struct {
		Added []string `json:"added"`
	}
	err := c.do(ctx, http.MethodPost, "/api/projects/"+pathEscape(projectID)+"/allowed-clients", models.AddAllowedClientsRequest{Emails: emails}, &out)
	return out.Added, err
}

func (c *Client) ListTodos(ctx context.Context, projectID string) ([]models.Todo, error) {
	var out []models.Todo
	return out, c.do(ctx, http.MethodGet, "/api/projects/"+pathEscape(projectID)+"/todos", nil, &out)
}

func (c *Client) CreateTodo(ctx context.Context, projectID string, req models.CreateTodoRequest) (*TodoResult, error) {
	var out TodoResult
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+pathEscape(projectID)+"/todos", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTodo(ctx context.Context, id string, req models.UpdateTodoRequest) (*TodoResult, error) {
	var out TodoResult
	if err := c.do(ctx, http.MethodPut, "/api/todos/"+pathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ToggleTodo(ctx context.Context, id string) (*TodoResult, error) {
	var out TodoResult
	if err := c.do(ctx, http.MethodPost, "/api/todos/"+pathEscape(id)+"/toggle", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTodo(ctx context.Context, id string) (*TodoResult, error) {
	var out TodoResult
	if err := c.do(ctx, http.MethodDelete, "/api/todos/"+pathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCategories(ctx context.Context, projectID string) ([]models.Category, error) {
	var out []models.Category
	return out, c.do(ctx, http.MethodGet, "/api/projects/"+pathEscape(projectID)+"/categories", nil, &out)
}

func (c *Client) CreateCategory(ctx context.Context, projectID string, req models.CreateCategoryRequest) (*models.Category, error) {
	var out models.Category
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+pathEscape(projectID)+"/categories", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/categories/"+pathEscape(id), nil, nil)
}

func (c *Client) ListDocuments(ctx context.Context, projectID string) (*DocumentList, error) {
	var out DocumentList
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+pathEscape(projectID)+"/documents", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateDocument(ctx context.Context, projectID string, req models.CreateDocumentRequest) (*models.Document, error) {
	var out models.Document
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+pathEscape(projectID)+"/documents", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDocument(ctx context.Context, id string, req models.UpdateDocumentRequest) (*models.Document, error) {
	var out models.Document
	if err := c.do(ctx, http.MethodPut, "/api/documents/"+pathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/documents/"+pathEscape(id), nil, nil)
}

// ExportDocuments downloads the project's documents as an XLSX workbook
func (c *Client) ExportDocuments(ctx context.Context, projectID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/projects/"+pathEscape(projectID)+"/documents/export", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Network(err)
	}
	defer resp.Body.Close()

	// 错误响应仍是统一的 JSON 信封
	if resp.StatusCode != http.StatusOK {
		return nil, decodeResponse(resp, nil)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Network(err)
	}
	return data, nil
}
