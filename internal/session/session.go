// Package session implements the dashboard's login gate. It is a
// convenience lock, not access control: one configured credential pair,
// no expiry, no user model.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	loggedInFlag = "isLoggedIn"
	loggedInTrue = "true"
)

// InvalidCredentialsMessage is the inline error shown on the login form.
const InvalidCredentialsMessage = "Invalid username or password"

var ErrInvalidCredentials = errors.New("invalid username or password")

// Session is the per-browser state: an ID (the cookie value) plus the
// store its flags live in.
type Session struct {
	ID    string
	Flags FlagStore
}

func New(id string, flags FlagStore) *Session {
	return &Session{ID: id, Flags: flags}
}

// NewID returns a random session identifier. It panics if the system
// random source fails.
func NewID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("session: reading random id: " + err.Error())
	}
	return hex.EncodeToString(b)
}

func (s *Session) flagKey() string {
	return s.ID + ":" + loggedInFlag
}

// LoggedIn reads the persisted flag. A session without an ID is never
// logged in.
func (s *Session) LoggedIn(ctx context.Context) (bool, error) {
	if s == nil || s.ID == "" {
		return false, nil
	}
	v, ok, err := s.Flags.Get(ctx, s.flagKey())
	if err != nil {
		return false, err
	}
	return ok && v == loggedInTrue, nil
}

// Gate holds the single admin credential pair. When PasswordHash is set
// it is a bcrypt hash and Password is ignored.
type Gate struct {
	Username     string
	Password     string
	PasswordHash string
}

// Check compares the submitted pair verbatim. Empty input never matches.
func (g Gate) Check(username, password string) bool {
	if username == "" || password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.Username)) == 1

	var passOK bool
	if g.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(g.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(g.Password)) == 1
	}
	return userOK && passOK
}

// Login sets the session's logged-in flag when the pair matches. On a
// mismatch the session is left untouched.
func (g Gate) Login(ctx context.Context, s *Session, username, password string) error {
	if !g.Check(username, password) {
		return ErrInvalidCredentials
	}
	return s.Flags.Set(ctx, s.flagKey(), loggedInTrue)
}

// Logout clears the flag.
func (g Gate) Logout(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return nil
	}
	return s.Flags.Clear(ctx, s.flagKey())
}
