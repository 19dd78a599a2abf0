package auth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultSessionTTL bounds how long a login stays valid without
	// re-authenticating.
	DefaultSessionTTL = 12 * time.Hour

	maxSessions = 128
)

// Session is an authenticated login. The token is opaque and expires
// with the TTL; nothing is persisted across restarts.
type Session struct {
	Token     string
	Username  string
	Role      Role
	CreatedAt time.Time
}

// Authenticator issues and validates sessions against a user store.
type Authenticator struct {
	store    *Store
	sessions *expirable.LRU[string, *Session]
}

func NewAuthenticator(store *Store, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Authenticator{
		store:    store,
		sessions: expirable.NewLRU[string, *Session](maxSessions, nil, ttl),
	}
}

// Login verifies the credentials and returns a fresh session.
func (a *Authenticator) Login(username, password string) (*Session, error) {
	user, err := a.store.Authenticate(username, password)
	if err != nil {
		slog.Warn("login rejected", "user", username)
		return nil, err
	}

	session := &Session{
		Token:     uuid.NewString(),
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: time.Now().UTC(),
	}
	a.sessions.Add(session.Token, session)

	slog.Info("login accepted", "user", username, "role", user.Role)
	return session, nil
}

// Validate resolves a token to its session, or ErrUnauthorized when the
// token is unknown or expired.
func (a *Authenticator) Validate(token string) (*Session, error) {
	session, ok := a.sessions.Get(token)
	if !ok {
		return nil, fmt.Errorf("validate session: %w", ErrUnauthorized)
	}
	return session, nil
}

// Logout invalidates the token. Unknown tokens are a no-op.
func (a *Authenticator) Logout(token string) {
	a.sessions.Remove(token)
}
