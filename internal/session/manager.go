package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/codelet/clet/internal/codelet"
	"github.com/codelet/clet/internal/prefs"
)

// ErrMissingField is returned when a login or signup field is empty. No
// network request is made in that case.
var ErrMissingField = errors.New("all fields are required")

// Authenticator is the slice of the API the session manager needs.
// *codelet.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, username, email, password string) error
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error
}

var _ Authenticator = (*codelet.Client)(nil)

// Manager owns the access-token lifecycle: acquisition, expiry checks,
// refresh, and destruction. Tokens persist through a prefs.Store so a
// session survives process restarts until it expires or is logged out.
type Manager struct {
	api   Authenticator
	store prefs.Store
	now   func() time.Time

	mu      sync.Mutex
	state   State
	session Session
}

// NewManager builds a Manager and resumes any stored session. A stored
// token that is expired or undecodable is discarded immediately, leaving
// the manager anonymous.
func NewManager(api Authenticator, store prefs.Store) *Manager {
	m := &Manager{
		api:   api,
		store: store,
		now:   time.Now,
	}
	m.resume()
	return m
}

func (m *Manager) resume() {
	token := m.store.Token()
	if token == "" {
		m.state = Anonymous
		return
	}
	sess, err := newSession(token)
	if err != nil || !sess.Valid(m.now()) {
		// Fail closed: an unreadable token is an expired token.
		_ = m.store.ClearToken()
		m.state = Anonymous
		return
	}
	m.session = sess
	m.state = Authenticated
}

// State returns the current lifecycle state, demoting Authenticated to
// Expired when the token's lifetime has lapsed since the last check.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkExpiryLocked()
	return m.state
}

// ValidToken returns the access token if a valid session exists. This is
// the gate every protected operation passes through; when it reports
// false, no network call may be made.
func (m *Manager) ValidToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkExpiryLocked()
	if m.state != Authenticated {
		return "", false
	}
	return m.session.Token, true
}

// Current returns the stored session, valid or not, for display purposes.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Token == "" {
		return Session{}, false
	}
	return m.session, true
}

// checkExpiryLocked performs the per-action expiry check. Caller holds mu.
func (m *Manager) checkExpiryLocked() {
	if m.state == Authenticated && !m.session.Valid(m.now()) {
		m.state = Expired
	}
}

// Login exchanges credentials for a session and persists the token.
// Empty fields short-circuit before any network traffic.
func (m *Manager) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Session{}, ErrMissingField
	}

	m.mu.Lock()
	m.state = Authenticating
	m.mu.Unlock()

	token, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.mu.Lock()
		m.state = Anonymous
		m.mu.Unlock()
		return Session{}, err
	}

	sess, err := newSession(token)
	if err != nil {
		m.mu.Lock()
		m.state = Anonymous
		m.mu.Unlock()
		return Session{}, err
	}

	m.mu.Lock()
	m.session = sess
	m.state = Authenticated
	m.mu.Unlock()

	if err := m.store.SetToken(token); err != nil {
		// The in-memory session still works; persistence is best-effort.
		return sess, nil
	}
	return sess, nil
}

// Signup registers a new account. It deliberately does not establish a
// session: the caller follows a successful signup with an explicit Login.
func (m *Manager) Signup(ctx context.Context, username, email, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(email) == "" || password == "" {
		return ErrMissingField
	}
	return m.api.Register(ctx, username, email, password)
}

// Logout destroys the local session unconditionally. The server-side
// invalidation is best-effort: its failure is reported to the caller for
// logging but never blocks local teardown.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	token := m.session.Token
	m.session = Session{}
	m.state = Anonymous
	m.mu.Unlock()

	_ = m.store.ClearToken()

	if token == "" {
		return nil
	}
	return m.api.Logout(ctx, token)
}

// Refresh trades the refresh cookie for a new session. On any failure the
// local session is destroyed and the caller must treat the user as logged
// out.
func (m *Manager) Refresh(ctx context.Context) (Session, error) {
	token, err := m.api.Refresh(ctx)
	if err == nil {
		var sess Session
		if sess, err = newSession(token); err == nil {
			m.mu.Lock()
			m.session = sess
			m.state = Authenticated
			m.mu.Unlock()
			_ = m.store.SetToken(token)
			return sess, nil
		}
	}

	m.mu.Lock()
	m.session = Session{}
	m.state = Anonymous
	m.mu.Unlock()
	_ = m.store.ClearToken()
	return Session{}, err
}

// ChangePassword re-verifies the old password server-side and installs the
// new one. Requires a valid session.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return ErrMissingField
	}
	token, ok := m.ValidToken()
	if !ok {
		return codelet.ErrUnauthenticated
	}
	return m.api.ChangePassword(ctx, token, oldPassword, newPassword)
}
