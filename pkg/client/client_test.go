package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	handler "clientbridge/api"
	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/client"
	"clientbridge/pkg/config"
	"clientbridge/pkg/database"
	"clientbridge/pkg/models"
	"clientbridge/pkg/realtime"
	"clientbridge/pkg/services"
	"clientbridge/pkg/session"
	"clientbridge/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ session.Backend = (*client.Client)(nil)

const testSecret = "client-test-secret"

type testServer struct {
	url string
	hub *realtime.LocalHub
	api *client.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	db, err := database.OpenLocalDatabase(filepath.Join(dir, "e2e.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	uploads := filepath.Join(dir, "uploads")
	files, err := storage.NewLocalStorage(storage.Config{Type: "local", BasePath: uploads, BaseURL: "http://files.test"})
	require.NoError(t, err)

	cfg := &config.Config{
		Environment:     "test",
		JWTSecret:       testSecret,
		UseLocalDB:      true,
		StorageDriver:   "local",
		StorageLocalDir: uploads,
		AllowedOrigins:  []string{"*"},
		BaseURL:         "https://app.example.com",
	}
	hub := realtime.NewLocalHub()
	svc := services.New(services.Options{
		DB:      db,
		Auth:    database.NewLocalAuth(db, testSecret),
		Storage: files,
		Hub:     hub,
		BaseURL: cfg.BaseURL,
	})

	srv := httptest.NewServer(handler.NewRouter(cfg, svc, hub))
	t.Cleanup(srv.Close)
	return &testServer{url: srv.URL, hub: hub, api: client.New(srv.URL).WithHTTPClient(srv.Client())}
}

// signUp registers through a session manager and waits until the profile is loaded
func (s *testServer) signUp(t *testing.T, email, name string, role models.Role) (*session.Manager, *client.Client, *models.User) {
	t.Helper()
	m := session.NewManager(s.api)
	res, err := m.SignUp(context.Background(), models.SignUpRequest{Email: email, Password: "secret123", Name: name, Role: role})
	require.NoError(t, err)
	require.Equal(t, models.SignUpAuthenticated, res.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := m.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, session.Authenticated, snap.State)
	return m, s.api.WithToken(snap.Session.AccessToken), snap.User
}

func pngBytes(size int) []byte {
	head := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	return append(head, make([]byte, size)...)
}

func TestSarahInvitesDave(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, sarahAPI, sarah := s.signUp(t, "sarah@example.com", "Sarah", models.RoleFreelancer)
	assert.Equal(t, models.RoleFreelancer, sarah.Role)

	created, err := sarahAPI.CreateProject(ctx, models.CreateProjectRequest{
		Name:         "Website Redesign",
		ClientEmails: []string{"dave@x.com"},
	})
	require.NoError(t, err)
	projectID := created.Project.ID
	require.True(t, strings.HasPrefix(created.InviteURL, "https://app.example.com/invite?token="), created.InviteURL)
	link, err := url.Parse(created.InviteURL)
	require.NoError(t, err)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	// the invite page works before Dave has an account
	summary, err := s.api.ResolveInvite(ctx, token, "dave@x.com")
	require.NoError(t, err)
	assert.Equal(t, projectID, summary.ProjectID)
	assert.Equal(t, "Sarah", summary.FreelancerName)
	assert.True(t, summary.EmailAllowed)

	_, err = s.api.ResolveInvite(ctx, "no-such-token", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInvite)

	daveSession, daveAPI, dave := s.signUp(t, "dave@x.com", "Dave", models.RoleClient)
	joined, err := daveSession.JoinProject(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, projectID, joined)

	projects, err := daveAPI.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Empty(t, projects[0].InviteToken)

	// Sarah listens for notifications while Dave posts
	var (
		mu       sync.Mutex
		received []realtime.Event
	)
	eventsOf := func() []realtime.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]realtime.Event(nil), received...)
	}
	watchCtx, stopWatching := context.WithCancel(ctx)
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- sarahAPI.WatchNotifications(watchCtx, func(ev realtime.Event) {
			mu.Lock()
			received = append(received, ev)
			mu.Unlock()
		})
	}()
	require.Eventually(t, func() bool { return s.hub.SubscriberCount(sarah.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	thread, err := daveAPI.CreateThread(ctx, projectID, models.CreateThreadRequest{Title: "Logo feedback"},
		&client.Image{Filename: "logo.png", ContentType: "image/png", Body: bytes.NewReader(pngBytes(512))})
	require.NoError(t, err)
	require.NotNil(t, thread.ImageURL)
	assert.Contains(t, *thread.ImageURL, "/projects/"+projectID+"/thread-images/"+dave.ID+"/")
	assert.Equal(t, "Dave", thread.CreatorName)

	require.Eventually(t, func() bool { return len(eventsOf()) == 1 }, 2*time.Second, 10*time.Millisecond)
	first := eventsOf()[0]
	assert.Equal(t, realtime.EventNotification, first.Type)
	assert.Equal(t, "New Thread", first.Data.Title)
	assert.Equal(t, "New thread: Logo feedback", first.Data.Message)

	feed, err := sarahAPI.Notifications(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.UnreadCount)
	updated, err := sarahAPI.MarkAllNotificationsRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	// the read-state change is streamed as well
	require.Eventually(t, func() bool { return len(eventsOf()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, realtime.EventNotificationsReadAll, eventsOf()[1].Type)

	stopWatching()
	select {
	case err := <-watchDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}

	reply, err := sarahAPI.CreateReply(ctx, thread.ID, "  Thanks, on it  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Thanks, on it", reply.Content)

	daveFeed, err := daveAPI.Notifications(ctx, 0)
	require.NoError(t, err)
	require.Len(t, daveFeed.Notifications, 1)
	assert.Equal(t, `Sarah replied to "Logo feedback"`, daveFeed.Notifications[0].Message)
}

func TestRoleAndUploadErrorsCrossTheWire(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, sarahAPI, _ := s.signUp(t, "sarah@example.com", "Sarah", models.RoleFreelancer)
	created, err := sarahAPI.CreateProject(ctx, models.CreateProjectRequest{Name: "Shop", ClientEmails: []string{"dave@x.com"}})
	require.NoError(t, err)
	projectID := created.Project.ID

	daveSession, daveAPI, _ := s.signUp(t, "dave@x.com", "Dave", models.RoleClient)
	_, err = daveSession.JoinProject(ctx, created.Project.InviteToken)
	require.NoError(t, err)

	_, err = daveAPI.CreateTodo(ctx, projectID, models.CreateTodoRequest{Title: "sneaky"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden), "got %v", err)

	_, err = daveAPI.CreateThread(ctx, projectID, models.CreateThreadRequest{Title: "pdf"},
		&client.Image{Filename: "brief.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF-1.4")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidFileType)

	threads, err := sarahAPI.ListThreads(ctx, projectID)
	require.NoError(t, err)
	assert.Empty(t, threads)

	// Eve has an account but is not on the allow-list
	eveSession, _, _ := s.signUp(t, "eve@x.com", "Eve", models.RoleClient)
	_, err = eveSession.JoinProject(ctx, created.Project.InviteToken)
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized), "got %v", err)

	_, err = s.api.ListProjects(ctx)
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthenticated), "got %v", err)
}

func TestTodoProgressAndExport(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, sarahAPI, _ := s.signUp(t, "sarah@example.com", "Sarah", models.RoleFreelancer)
	created, err := sarahAPI.CreateProject(ctx, models.CreateProjectRequest{Name: "Shop"})
	require.NoError(t, err)
	projectID := created.Project.ID

	first, err := sarahAPI.CreateTodo(ctx, projectID, models.CreateTodoRequest{Title: "Wireframes"})
	require.NoError(t, err)
	_, err = sarahAPI.CreateTodo(ctx, projectID, models.CreateTodoRequest{Title: "Copy"})
	require.NoError(t, err)

	toggled, err := sarahAPI.ToggleTodo(ctx, first.Todo.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, toggled.Progress)

	project, err := sarahAPI.GetProject(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, 50, project.Progress)

	amount := 1200.0
	_, err = sarahAPI.CreateDocument(ctx, projectID, models.CreateDocumentRequest{
		Title:  "Invoice #1",
		Type:   models.DocumentInvoice,
		Link:   "https://drive.example.com/invoice-1",
		Amount: &amount,
		Status: models.DocumentPaid,
	})
	require.NoError(t, err)

	list, err := sarahAPI.ListDocuments(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, list.Documents, 1)
	assert.Equal(t, 1200.0, list.Totals.Paid)

	data, err := sarahAPI.ExportDocuments(ctx, projectID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx is a zip archive")
}

func TestLogoutIsFailOpenOverHTTP(t *testing.T) {
	s := newTestServer(t)
	m, _, _ := s.signUp(t, "sarah@example.com", "Sarah", models.RoleFreelancer)

	m.Logout(context.Background())
	assert.Equal(t, session.Anonymous, m.Snapshot().State)

	// a garbage token still gets a successful sign-out
	assert.NoError(t, s.api.SignOut(context.Background(), "not-a-token"))
}

func TestInviteTokenIsDecodedOnceOverHTTP(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, sarahAPI, _ := s.signUp(t, "sarah@example.com", "Sarah", models.RoleFreelancer)
	created, err := sarahAPI.CreateProject(ctx, models.CreateProjectRequest{Name: "Shop"})
	require.NoError(t, err)
	token := created.Project.InviteToken

	// first character percent-encoded, the way some mail clients rewrite links
	escaped := fmt.Sprintf("%%%02X%s", token[0], token[1:])
	resp, err := http.Get(s.url + "/api/invites/" + escaped)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data models.InviteSummary `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, created.Project.ID, body.Data.ProjectID)
}
