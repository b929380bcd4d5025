package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/codelet/clet/internal/codelet"
	"github.com/codelet/clet/internal/prefs"
)

// mintToken builds a signed JWT with the given expiry. The signature key is
// irrelevant: the client never verifies it, only decodes the claim.
func mintToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Issuer:    "codelet",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// mintTokenWithoutExpiry builds a signed JWT that has no exp claim at all.
func mintTokenWithoutExpiry(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Issuer: "codelet"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// fakeAuth is a scriptable Authenticator.
type fakeAuth struct {
	loginToken   string
	loginErr     error
	registerErr  error
	refreshToken string
	refreshErr   error
	logoutErr    error
	passwordErr  error

	loginCalls    int
	registerCalls int
	refreshCalls  int
	logoutCalls   int
	logoutToken   string
}

func (f *fakeAuth) Login(context.Context, string, string) (string, error) {
	f.loginCalls++
	return f.loginToken, f.loginErr
}

func (f *fakeAuth) Register(context.Context, string, string, string) error {
	f.registerCalls++
	return f.registerErr
}

func (f *fakeAuth) Refresh(context.Context) (string, error) {
	f.refreshCalls++
	return f.refreshToken, f.refreshErr
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	f.logoutCalls++
	f.logoutToken = token
	return f.logoutErr
}

func (f *fakeAuth) ChangePassword(context.Context, string, string, string) error {
	return f.passwordErr
}

func TestExpiry(t *testing.T) {
	future := time.Now().Add(time.Hour).Truncate(time.Second)

	got, err := Expiry(mintToken(t, future))
	if err != nil {
		t.Fatalf("Expiry returned error: %v", err)
	}
	if !got.Equal(future) {
		t.Fatalf("Expiry = %v, want %v", got, future)
	}

	if _, err := Expiry("not-a-jwt"); err == nil {
		t.Fatalf("Expiry accepted a malformed token")
	}
	if _, err := Expiry(""); err == nil {
		t.Fatalf("Expiry accepted an empty token")
	}
	if _, err := Expiry(mintTokenWithoutExpiry(t)); err == nil {
		t.Fatalf("Expiry accepted a token with no exp claim")
	}
}

func TestSessionValid(t *testing.T) {
	now := time.Now()
	s := Session{Token: "tok", ExpiresAt: now.Add(time.Minute)}
	if !s.Valid(now) {
		t.Fatalf("session with future expiry reported invalid")
	}
	if s.Valid(now.Add(2 * time.Minute)) {
		t.Fatalf("session past expiry reported valid")
	}
	if (Session{}).Valid(now) {
		t.Fatalf("empty session reported valid")
	}
}

func TestManager_ResumeValidToken(t *testing.T) {
	store := prefs.NewMemory()
	if err := store.SetToken(mintToken(t, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	m := NewManager(&fakeAuth{}, store)
	if m.State() != Authenticated {
		t.Fatalf("state = %v, want authenticated", m.State())
	}
	if _, ok := m.ValidToken(); !ok {
		t.Fatalf("ValidToken = false, want stored session usable")
	}
}

func TestManager_ResumeDiscardsExpiredOrMalformedToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"expired", ""}, // filled below; helper needs t
		{"malformed", "garbage"},
	}
	tests[0].token = mintToken(t, time.Now().Add(-time.Minute))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := prefs.NewMemory()
			if err := store.SetToken(tt.token); err != nil {
				t.Fatalf("SetToken: %v", err)
			}
			m := NewManager(&fakeAuth{}, store)
			if m.State() != Anonymous {
				t.Fatalf("state = %v, want anonymous", m.State())
			}
			if store.Token() != "" {
				t.Fatalf("stored token = %q, want cleared", store.Token())
			}
		})
	}
}

func TestManager_LoginSuccessPersistsToken(t *testing.T) {
	token := mintToken(t, time.Now().Add(15*time.Minute))
	api := &fakeAuth{loginToken: token}
	store := prefs.NewMemory()

	m := NewManager(api, store)
	sess, err := m.Login(context.Background(), "a@b.com", "pw")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if m.State() != Authenticated {
		t.Fatalf("state = %v, want authenticated", m.State())
	}
	if sess.Token != token {
		t.Fatalf("session token mismatch")
	}
	if store.Token() != token {
		t.Fatalf("stored token = %q, want persisted", store.Token())
	}
}

func TestManager_LoginFailureStaysAnonymous(t *testing.T) {
	api := &fakeAuth{loginErr: codelet.ErrInvalidCredentials}
	m := NewManager(api, prefs.NewMemory())

	_, err := m.Login(context.Background(), "a@b.com", "wrong")
	if !errors.Is(err, codelet.ErrInvalidCredentials) {
		t.Fatalf("Login error = %v, want ErrInvalidCredentials", err)
	}
	if m.State() != Anonymous {
		t.Fatalf("state = %v, want anonymous", m.State())
	}
}

func TestManager_LoginEmptyFieldsSkipNetwork(t *testing.T) {
	api := &fakeAuth{}
	m := NewManager(api, prefs.NewMemory())

	if _, err := m.Login(context.Background(), "", "pw"); !errors.Is(err, ErrMissingField) {
		t.Fatalf("Login error = %v, want ErrMissingField", err)
	}
	if _, err := m.Login(context.Background(), "a@b.com", ""); !errors.Is(err, ErrMissingField) {
		t.Fatalf("Login error = %v, want ErrMissingField", err)
	}
	if api.loginCalls != 0 {
		t.Fatalf("login calls = %d, want 0", api.loginCalls)
	}
}

func TestManager_SignupDoesNotEstablishSession(t *testing.T) {
	api := &fakeAuth{}
	m := NewManager(api, prefs.NewMemory())

	if err := m.Signup(context.Background(), "sam", "a@b.com", "pw"); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if api.registerCalls != 1 {
		t.Fatalf("register calls = %d, want 1", api.registerCalls)
	}
	if m.State() != Anonymous {
		t.Fatalf("state = %v, want anonymous after signup", m.State())
	}

	if err := m.Signup(context.Background(), "", "a@b.com", "pw"); !errors.Is(err, ErrMissingField) {
		t.Fatalf("Signup error = %v, want ErrMissingField", err)
	}
}

func TestManager_ExpiryDemotesAuthenticated(t *testing.T) {
	store := prefs.NewMemory()
	if err := store.SetToken(mintToken(t, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	m := NewManager(&fakeAuth{}, store)

	// Advance the clock past the token's lifetime.
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, ok := m.ValidToken(); ok {
		t.Fatalf("ValidToken = true for an expired session")
	}
	if m.State() != Expired {
		t.Fatalf("state = %v, want expired", m.State())
	}
}

func TestManager_RefreshRecoversExpiredSession(t *testing.T) {
	fresh := mintToken(t, time.Now().Add(15*time.Minute))
	api := &fakeAuth{refreshToken: fresh}
	store := prefs.NewMemory()
	m := NewManager(api, store)

	sess, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if sess.Token != fresh {
		t.Fatalf("session token mismatch after refresh")
	}
	if m.State() != Authenticated {
		t.Fatalf("state = %v, want authenticated", m.State())
	}
	if store.Token() != fresh {
		t.Fatalf("stored token not replaced on refresh")
	}
}

func TestManager_RefreshFailureLogsOut(t *testing.T) {
	store := prefs.NewMemory()
	if err := store.SetToken(mintToken(t, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	api := &fakeAuth{refreshErr: codelet.ErrUnauthenticated}
	m := NewManager(api, store)

	if _, err := m.Refresh(context.Background()); !errors.Is(err, codelet.ErrUnauthenticated) {
		t.Fatalf("Refresh error = %v, want ErrUnauthenticated", err)
	}
	if m.State() != Anonymous {
		t.Fatalf("state = %v, want anonymous", m.State())
	}
	if store.Token() != "" {
		t.Fatalf("stored token = %q, want cleared", store.Token())
	}
}

func TestManager_LogoutClearsLocalSessionDespiteServerFailure(t *testing.T) {
	store := prefs.NewMemory()
	token := mintToken(t, time.Now().Add(time.Hour))
	if err := store.SetToken(token); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	api := &fakeAuth{logoutErr: codelet.ErrUnavailable}
	m := NewManager(api, store)

	err := m.Logout(context.Background())
	if !errors.Is(err, codelet.ErrUnavailable) {
		t.Fatalf("Logout error = %v, want the server failure surfaced for logging", err)
	}
	if m.State() != Anonymous {
		t.Fatalf("state = %v, want anonymous regardless of server failure", m.State())
	}
	if store.Token() != "" {
		t.Fatalf("stored token = %q, want cleared regardless of server failure", store.Token())
	}
	if api.logoutToken != token {
		t.Fatalf("logout sent token %q, want %q", api.logoutToken, token)
	}
}

func TestManager_ChangePasswordRequiresValidSession(t *testing.T) {
	api := &fakeAuth{}
	m := NewManager(api, prefs.NewMemory())

	err := m.ChangePassword(context.Background(), "old", "new")
	if !errors.Is(err, codelet.ErrUnauthenticated) {
		t.Fatalf("ChangePassword error = %v, want ErrUnauthenticated", err)
	}

	if err := m.ChangePassword(context.Background(), "", "new"); !errors.Is(err, ErrMissingField) {
		t.Fatalf("ChangePassword error = %v, want ErrMissingField", err)
	}
}
