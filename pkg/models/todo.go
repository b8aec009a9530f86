package models

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Todo belongs to one project. CompletedAt is set iff Completed is true.
type Todo struct {
	ID          string     `json:"id" db:"id"`
	ProjectID   string     `json:"project_id" db:"project_id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description,omitempty" db:"description"`
	Completed   bool       `json:"completed" db:"completed"`
	CategoryID  *string    `json:"category_id,omitempty" db:"category_id"`
	Priority    Priority   `json:"priority" db:"priority"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Category is a per-project coloured tag for todos
type Category struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DefaultCategories are seeded into every new project. They replace the
// old fixed feature/bug/design/content strings.
var DefaultCategories = []Category{
	{Name: "Feature", Color: "#3b82f6"},
	{Name: "Bug", Color: "#ef4444"},
	{Name: "Design", Color: "#a855f7"},
	{Name: "Content", Color: "#22c55e"},
}

// CreateTodoRequest represents the request payload for todo creation
type CreateTodoRequest struct {
	Title       string   `json:"title" validate:"required,max=300"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	CategoryID  *string  `json:"category_id,omitempty" validate:"omitempty,min=1"`
	Priority    Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// UpdateTodoRequest represents the request payload for todo edits
type UpdateTodoRequest struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,min=1,max=300"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=5000"`
	CategoryID  *string   `json:"category_id,omitempty"`
	Priority    *Priority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
}

// CreateCategoryRequest represents the request payload for category creation
type CreateCategoryRequest struct {
	Name  string `json:"name" validate:"required,max=60"`
	Color string `json:"color" validate:"required,len=7,hexcolor"`
}
