// Package session keeps the signed-in identity on the client side. The
// Manager is the only writer; everything else reads snapshots or subscribes.
package session

import (
	"context"
	"sync"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/logger"
	"clientbridge/pkg/models"
)

type State int

const (
	Uninitialized State = iota
	Loading
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

// Settled reports whether the state is final until the next session event
func (s State) Settled() bool {
	return s == Authenticated || s == Anonymous
}

// Snapshot is an immutable view of the identity. User is set only when
// State is Authenticated.
type Snapshot struct {
	State      State
	User       *models.User
	Session    *models.Session
	Generation uint64
}

// Backend is the remote side the manager talks to
type Backend interface {
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	LoadProfile(ctx context.Context, accessToken string) (*models.User, error)
	JoinProject(ctx context.Context, accessToken, token string) (string, error)
}

// Manager owns the current identity
type Manager struct {
	backend Backend

	// deliver serialises transitions so observers see them in order
	deliver sync.Mutex

	mu      sync.Mutex
	snap    Snapshot
	changed chan struct{}
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewManager starts in Uninitialized
func NewManager(backend Backend) *Manager {
	return &Manager{
		backend: backend,
		changed: make(chan struct{}),
		subs:    make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current identity
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Subscribe calls fn with the current snapshot and then on every change.
// fn runs on the writer's goroutine and must not call back into the
// manager's writing methods.
func (m *Manager) Subscribe(fn func(Snapshot)) (cancel func()) {
	m.deliver.Lock()
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	current := m.snap
	m.mu.Unlock()
	fn(current)
	m.deliver.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Await blocks until the state is settled or ctx ends
func (m *Manager) Await(ctx context.Context) (Snapshot, error) {
	for {
		m.mu.Lock()
		snap, ch := m.snap, m.changed
		m.mu.Unlock()
		if snap.State.Settled() {
			return snap, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// begin starts a new generation in the given state and returns it
func (m *Manager) begin(next Snapshot) uint64 {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	next.Generation = m.snap.Generation + 1
	m.publishLocked(next)
	return next.Generation
}

// settle applies next only if no newer session event happened meanwhile
func (m *Manager) settle(gen uint64, next Snapshot) bool {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	if m.snap.Generation != gen {
		m.mu.Unlock()
		return false
	}
	next.Generation = gen
	m.publishLocked(next)
	return true
}

// publishLocked stores next, wakes waiters and notifies observers. It
// releases m.mu.
func (m *Manager) publishLocked(next Snapshot) {
	m.snap = next
	close(m.changed)
	m.changed = make(chan struct{})
	subs := make([]func(Snapshot), 0, len(m.subs))
	for i := 0; i < m.nextSub; i++ {
		if fn, ok := m.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}

// Restore starts from a persisted session, or Anonymous when there is none.
func (m *Manager) Restore(ctx context.Context, s *models.Session) {
	if s == nil || s.AccessToken == "" {
		m.begin(Snapshot{State: Anonymous})
		return
	}
	gen := m.begin(Snapshot{State: Loading, Session: s})
	go m.loadProfile(context.WithoutCancel(ctx), gen, s)
}

// SignIn returns once the credentials are accepted. The profile loads in
// the background; observe the manager to learn when the user is Authenticated.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	s, err := m.backend.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	gen := m.begin(Snapshot{State: Loading, Session: s})
	go m.loadProfile(context.WithoutCancel(ctx), gen, s)
	return nil
}

// SignUp reports whether the new account is signed in or awaits
// confirmation. Only a returned session changes the identity.
func (m *Manager) SignUp(ctx context.Context, req models.SignUpRequest) (*models.SignUpResult, error) {
	res, err := m.backend.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Status == models.SignUpAuthenticated && res.Session != nil {
		gen := m.begin(Snapshot{State: Loading, Session: res.Session})
		go m.loadProfile(context.WithoutCancel(ctx), gen, res.Session)
	}
	return res, nil
}

func (m *Manager) loadProfile(ctx context.Context, gen uint64, s *models.Session) {
	user, err := m.backend.LoadProfile(ctx, s.AccessToken)
	if err != nil {
		// 会话有效但资料加载失败，按匿名处理
		logger.Warn("profile load failed, treating session as anonymous", "error", err)
		m.settle(gen, Snapshot{State: Anonymous})
		return
	}
	if !m.settle(gen, Snapshot{State: Authenticated, User: user, Session: s}) {
		logger.Debug("discarding stale profile load", "generation", gen)
	}
}

// Refresh swaps in a new session for the same user
func (m *Manager) Refresh(ctx context.Context) error {
	current := m.Snapshot()
	if current.Session == nil || current.Session.RefreshToken == "" {
		return apperrors.Unauthenticated("Not signed in")
	}
	s, err := m.backend.Refresh(ctx, current.Session.RefreshToken)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindUnauthenticated) {
			m.begin(Snapshot{State: Anonymous})
		}
		return err
	}
	next := current
	next.Session = s
	m.settle(current.Generation, next)
	return nil
}

// Logout clears the identity first and then tells the backend. A failed
// remote sign-out is logged only.
func (m *Manager) Logout(ctx context.Context) {
	previous := m.Snapshot()
	m.begin(Snapshot{State: Anonymous})
	if previous.Session == nil {
		return
	}
	if err := m.backend.SignOut(ctx, previous.Session.AccessToken); err != nil {
		logger.Warn("remote sign-out failed", "error", err)
	}
}

// JoinProject redeems an invite token with the current session
func (m *Manager) JoinProject(ctx context.Context, token string) (string, error) {
	current := m.Snapshot()
	if current.Session == nil {
		return "", apperrors.Unauthenticated("Sign in to join this project")
	}
	return m.backend.JoinProject(ctx, current.Session.AccessToken, token)
}
