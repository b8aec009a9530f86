package services

import (
	"context"
	"net/url"
	"path/filepath"
	"sync"
	"testing"

	"clientbridge/pkg/database"
	"clientbridge/pkg/mailer"
	"clientbridge/pkg/models"
	"clientbridge/pkg/realtime"
	"clientbridge/pkg/storage"

	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Invite
}

func (m *recordingMailer) SendInvite(ctx context.Context, invite mailer.Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, invite)
	return nil
}

func (m *recordingMailer) Sent() []mailer.Invite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Invite(nil), m.sent...)
}

type testEnv struct {
	svc     *Service
	db      *database.LocalDatabase
	hub     *realtime.LocalHub
	mail    *recordingMailer
	files   *storage.LocalStorage
	baseURL string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := database.OpenLocalDatabase(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	files, err := storage.NewLocalStorage(storage.Config{Type: "local", BasePath: filepath.Join(dir, "uploads"), BaseURL: "http://files.test"})
	require.NoError(t, err)

	env := &testEnv{
		db:      db,
		hub:     realtime.NewLocalHub(),
		mail:    &recordingMailer{},
		files:   files,
		baseURL: "https://app.example.com",
	}
	env.svc = New(Options{
		DB:      db,
		Auth:    database.NewLocalAuth(db, "test-secret"),
		Storage: files,
		Hub:     env.hub,
		Mailer:  env.mail,
		BaseURL: env.baseURL,
	})
	return env
}

// member is a signed-up user plus a context acting as them
type member struct {
	ctx     context.Context
	user    *models.User
	session *models.Session
}

func (e *testEnv) signUp(t *testing.T, email, name string, role models.Role, inviteToken string) (*member, *models.SignUpResult) {
	t.Helper()
	res, err := e.svc.SignUp(context.Background(), models.SignUpRequest{
		Email:       email,
		Password:    "secret123",
		Name:        name,
		Role:        role,
		InviteToken: inviteToken,
	})
	require.NoError(t, err)
	require.Equal(t, models.SignUpAuthenticated, res.Status)

	ctx := database.WithCaller(context.Background(), database.Caller{
		UserID:      res.User.ID,
		Email:       res.User.Email,
		AccessToken: res.Session.AccessToken,
	})
	return &member{ctx: ctx, user: res.User, session: res.Session}, res
}

// sarahAndDave sets up a freelancer with one project and a client who joined it
func sarahAndDave(t *testing.T, e *testEnv) (sarah, dave *member, project *models.ProjectDetail) {
	t.Helper()
	sarah, _ = e.signUp(t, "sarah@example.com", "Sarah", models.RoleFreelancer, "")
	project, err := e.svc.CreateProject(sarah.ctx, sarah.user, models.CreateProjectRequest{
		Name:         "Website Redesign",
		ClientEmails: []string{"dave@x.com"},
	})
	require.NoError(t, err)
	dave, res := e.signUp(t, "dave@x.com", "Dave", models.RoleClient, project.InviteToken)
	require.Equal(t, project.ID, res.ProjectID)
	return sarah, dave, project
}

func inviteToken(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}
