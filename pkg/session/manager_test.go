package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu          sync.Mutex
	profileGate chan struct{} // when set, LoadProfile waits for it
	profileErr  error
	signOutErr  error
	signedOut   []string
	joined      []string
}

func (f *fakeBackend) session(id string) *models.Session {
	return &models.Session{AccessToken: "at-" + id, RefreshToken: "rt-" + id, User: models.AuthUser{ID: id}}
}

func (f *fakeBackend) SignUp(ctx context.Context, req models.SignUpRequest) (*models.SignUpResult, error) {
	if req.Email == "pending@example.com" {
		return &models.SignUpResult{Status: models.SignUpPendingConfirmation}, nil
	}
	return &models.SignUpResult{Status: models.SignUpAuthenticated, Session: f.session("new")}, nil
}

func (f *fakeBackend) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	if password != "secret123" {
		return nil, apperrors.Unauthenticated("Invalid email or password").WithCode(apperrors.CodeInvalidCredentials)
	}
	return f.session(email), nil
}

func (f *fakeBackend) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	if refreshToken == "rt-expired@example.com" {
		return nil, apperrors.Unauthenticated("Session expired")
	}
	return &models.Session{AccessToken: "at-refreshed", RefreshToken: refreshToken}, nil
}

func (f *fakeBackend) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	f.signedOut = append(f.signedOut, accessToken)
	f.mu.Unlock()
	return f.signOutErr
}

func (f *fakeBackend) LoadProfile(ctx context.Context, accessToken string) (*models.User, error) {
	f.mu.Lock()
	gate, err := f.profileGate, f.profileErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &models.User{ID: accessToken, Name: "Sarah", Role: models.RoleFreelancer}, nil
}

func (f *fakeBackend) JoinProject(ctx context.Context, accessToken, token string) (string, error) {
	f.mu.Lock()
	f.joined = append(f.joined, accessToken+"/"+token)
	f.mu.Unlock()
	return "project-1", nil
}

func awaitSettled(t *testing.T, m *Manager) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := m.Await(ctx)
	require.NoError(t, err)
	return snap
}

func TestSignInPropagatesAsynchronously(t *testing.T) {
	backend := &fakeBackend{profileGate: make(chan struct{})}
	m := NewManager(backend)
	assert.Equal(t, Uninitialized, m.Snapshot().State)

	var (
		mu     sync.Mutex
		states []State
	)
	cancel := m.Subscribe(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})
	defer cancel()

	require.NoError(t, m.SignIn(context.Background(), "sarah@example.com", "secret123"))
	// credentials accepted, profile not loaded yet
	snap := m.Snapshot()
	assert.Equal(t, Loading, snap.State)
	assert.Nil(t, snap.User)

	close(backend.profileGate)
	snap = awaitSettled(t, m)
	assert.Equal(t, Authenticated, snap.State)
	require.NotNil(t, snap.User)
	assert.Equal(t, "Sarah", snap.User.Name)

	mu.Lock()
	assert.Equal(t, []State{Uninitialized, Loading, Authenticated}, states)
	mu.Unlock()
}

func TestSignInFailureLeavesStateAlone(t *testing.T) {
	m := NewManager(&fakeBackend{})
	err := m.SignIn(context.Background(), "sarah@example.com", "wrong")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))
	assert.Equal(t, Uninitialized, m.Snapshot().State)
}

func TestProfileFailureMeansAnonymous(t *testing.T) {
	m := NewManager(&fakeBackend{profileErr: apperrors.Unauthenticated("no profile").WithCode(apperrors.CodeProfileMissing)})
	require.NoError(t, m.SignIn(context.Background(), "sarah@example.com", "secret123"))

	snap := awaitSettled(t, m)
	assert.Equal(t, Anonymous, snap.State)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Session)
}

func TestStaleProfileLoadIsDiscarded(t *testing.T) {
	backend := &fakeBackend{profileGate: make(chan struct{})}
	m := NewManager(backend)

	require.NoError(t, m.SignIn(context.Background(), "sarah@example.com", "secret123"))
	m.Logout(context.Background())
	assert.Equal(t, Anonymous, m.Snapshot().State)

	gen := m.Snapshot().Generation
	close(backend.profileGate)

	// the late load must not resurrect the signed-out user
	time.Sleep(50 * time.Millisecond)
	snap := m.Snapshot()
	assert.Equal(t, Anonymous, snap.State)
	assert.Equal(t, gen, snap.Generation)
}

func TestLogoutIsFailOpen(t *testing.T) {
	backend := &fakeBackend{signOutErr: errors.New("network down")}
	m := NewManager(backend)
	require.NoError(t, m.SignIn(context.Background(), "sarah@example.com", "secret123"))
	awaitSettled(t, m)

	m.Logout(context.Background())
	snap := m.Snapshot()
	assert.Equal(t, Anonymous, snap.State)
	assert.Nil(t, snap.Session)
	assert.Equal(t, []string{"at-sarah@example.com"}, backend.signedOut)
}

func TestSignUpPendingConfirmation(t *testing.T) {
	m := NewManager(&fakeBackend{})
	m.Restore(context.Background(), nil)
	assert.Equal(t, Anonymous, m.Snapshot().State)

	res, err := m.SignUp(context.Background(), models.SignUpRequest{Email: "pending@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.SignUpPendingConfirmation, res.Status)
	assert.Equal(t, Anonymous, m.Snapshot().State)

	res, err = m.SignUp(context.Background(), models.SignUpRequest{Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.SignUpAuthenticated, res.Status)
	assert.Equal(t, Authenticated, awaitSettled(t, m).State)
}

func TestJoinProjectRequiresSession(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend)

	_, err := m.JoinProject(context.Background(), "T")
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthenticated))

	m.Restore(context.Background(), backend.session("dave"))
	id, err := m.JoinProject(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, "project-1", id)
	assert.Equal(t, []string{"at-dave/T"}, backend.joined)
}

func TestRefresh(t *testing.T) {
	m := NewManager(&fakeBackend{})
	require.NoError(t, m.SignIn(context.Background(), "sarah@example.com", "secret123"))
	before := awaitSettled(t, m)

	require.NoError(t, m.Refresh(context.Background()))
	after := m.Snapshot()
	assert.Equal(t, Authenticated, after.State)
	assert.Equal(t, "at-refreshed", after.Session.AccessToken)
	assert.Equal(t, before.User, after.User)

	expired := NewManager(&fakeBackend{})
	require.NoError(t, expired.SignIn(context.Background(), "expired@example.com", "secret123"))
	awaitSettled(t, expired)
	assert.Error(t, expired.Refresh(context.Background()))
	assert.Equal(t, Anonymous, expired.Snapshot().State)
}

func TestAwaitHonoursContext(t *testing.T) {
	m := NewManager(&fakeBackend{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
