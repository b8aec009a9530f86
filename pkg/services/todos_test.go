package services

import (
	"context"
	"errors"
	"testing"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/database"
	"clientbridge/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodoProgress(t *testing.T) {
	e := newTestEnv(t)
	sarah, dave, project := sarahAndDave(t, e)

	var ids []string
	for _, title := range []string{"Wireframes", "Copy", "Launch"} {
		res, err := e.svc.CreateTodo(sarah.ctx, sarah.user, project.ID, models.CreateTodoRequest{Title: title})
		require.NoError(t, err)
		assert.Equal(t, models.PriorityMedium, res.Todo.Priority)
		assert.Equal(t, 0, res.Progress)
		ids = append(ids, res.Todo.ID)
	}

	res, err := e.svc.ToggleTodo(sarah.ctx, sarah.user, ids[0])
	require.NoError(t, err)
	assert.True(t, res.Todo.Completed)
	assert.NotNil(t, res.Todo.CompletedAt)
	assert.Equal(t, 33, res.Progress)

	res, err = e.svc.ToggleTodo(sarah.ctx, sarah.user, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 67, res.Progress)

	stored, err := e.db.GetProject(sarah.ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 67, stored.Progress)

	// toggling back clears the timestamp
	res, err = e.svc.ToggleTodo(sarah.ctx, sarah.user, ids[0])
	require.NoError(t, err)
	assert.False(t, res.Todo.Completed)
	assert.Nil(t, res.Todo.CompletedAt)
	assert.Equal(t, 33, res.Progress)

	reloaded, err := e.db.GetTodo(sarah.ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, reloaded.Completed)
	assert.Nil(t, reloaded.CompletedAt)

	for _, id := range ids {
		res, err = e.svc.DeleteTodo(sarah.ctx, sarah.user, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, res.Progress)

	stored, err = e.db.GetProject(dave.ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Progress)
}

func TestTodosAreFreelancerOnly(t *testing.T) {
	e := newTestEnv(t)
	sarah, dave, project := sarahAndDave(t, e)

	_, err := e.svc.CreateTodo(dave.ctx, dave.user, project.ID, models.CreateTodoRequest{Title: "Sneaky"})
	assert.ErrorIs(t, err, apperrors.ErrFreelancerOnly)

	res, err := e.svc.CreateTodo(sarah.ctx, sarah.user, project.ID, models.CreateTodoRequest{Title: "Real"})
	require.NoError(t, err)

	_, err = e.svc.ToggleTodo(dave.ctx, dave.user, res.Todo.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	_, err = e.svc.DeleteTodo(dave.ctx, dave.user, res.Todo.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	todos, err := e.svc.ListTodos(dave.ctx, dave.user, project.ID)
	require.NoError(t, err)
	assert.Len(t, todos, 1)

	// a second freelancer cannot touch another freelancer's project
	other, _ := e.signUp(t, "other@example.com", "Olga", models.RoleFreelancer, "")
	_, err = e.svc.ToggleTodo(other.ctx, other.user, res.Todo.ID)
	assert.ErrorIs(t, err, apperrors.ErrFreelancerOnly)
	_, err = e.svc.ListTodos(other.ctx, other.user, project.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotMember)
}

func TestTodoCategories(t *testing.T) {
	e := newTestEnv(t)
	sarah, dave, project := sarahAndDave(t, e)

	cat, err := e.svc.CreateCategory(sarah.ctx, sarah.user, project.ID, models.CreateCategoryRequest{Name: "Research", Color: "#ABCDEF"})
	require.NoError(t, err)
	assert.Equal(t, "#abcdef", cat.Color)

	_, err = e.svc.CreateCategory(dave.ctx, dave.user, project.ID, models.CreateCategoryRequest{Name: "Mine", Color: "#000000"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	missing := "nope"
	_, err = e.svc.CreateTodo(sarah.ctx, sarah.user, project.ID, models.CreateTodoRequest{Title: "x", CategoryID: &missing})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	res, err := e.svc.CreateTodo(sarah.ctx, sarah.user, project.ID, models.CreateTodoRequest{Title: "Interviews", CategoryID: &cat.ID, Priority: models.PriorityHigh})
	require.NoError(t, err)
	require.NotNil(t, res.Todo.CategoryID)

	newTitle := "User interviews"
	updated, err := e.svc.UpdateTodo(sarah.ctx, sarah.user, res.Todo.ID, models.UpdateTodoRequest{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "User interviews", updated.Todo.Title)
	assert.Equal(t, cat.ID, *updated.Todo.CategoryID)

	require.NoError(t, e.svc.DeleteCategory(sarah.ctx, sarah.user, cat.ID))
	todo, err := e.db.GetTodo(sarah.ctx, res.Todo.ID)
	require.NoError(t, err)
	assert.Nil(t, todo.CategoryID)
}

// flakyTodos fails todo reloads while every other call reaches the real store
type flakyTodos struct {
	database.DatabaseInterface
}

func (flakyTodos) ListTodos(ctx context.Context, projectID string) ([]models.Todo, error) {
	return nil, apperrors.Network(errors.New("connection reset"))
}

func TestTodoProgressFallsBackToStoredValue(t *testing.T) {
	e := newTestEnv(t)
	sarah, _, project := sarahAndDave(t, e)

	first, err := e.svc.CreateTodo(sarah.ctx, sarah.user, project.ID, models.CreateTodoRequest{Title: "Wireframes"})
	require.NoError(t, err)
	_, err = e.svc.CreateTodo(sarah.ctx, sarah.user, project.ID, models.CreateTodoRequest{Title: "Copy"})
	require.NoError(t, err)
	toggled, err := e.svc.ToggleTodo(sarah.ctx, sarah.user, first.Todo.ID)
	require.NoError(t, err)
	require.Equal(t, 50, toggled.Progress)

	svc := New(Options{DB: flakyTodos{e.db}, Auth: database.NewLocalAuth(e.db, "test-secret"), Storage: e.files, Hub: e.hub, BaseURL: e.baseURL})

	res, err := svc.ToggleTodo(sarah.ctx, sarah.user, first.Todo.ID)
	require.NoError(t, err, "the todo change itself succeeded")
	assert.False(t, res.Todo.Completed)
	assert.Equal(t, 50, res.Progress)

	res, err = svc.CreateTodo(sarah.ctx, sarah.user, project.ID, models.CreateTodoRequest{Title: "Launch"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Progress, 0)
	assert.LessOrEqual(t, res.Progress, 100)
}
