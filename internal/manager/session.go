package manager

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrInvalidCredentials = errors.New("username and password are required")

// Authenticator checks credentials.
type Authenticator interface {
	Login(ctx context.Context, username, password string) error
}

// SimulatedAuth accepts any non-blank username and password. It stands in
// for stores that run without authentication.
type SimulatedAuth struct{}

func (SimulatedAuth) Login(_ context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrInvalidCredentials
	}
	return nil
}

// TokenIssuer is implemented by *filestore.Client.
type TokenIssuer interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// RemoteAuth logs in against the store. The client installs the token
// itself, OnToken lets the caller persist it.
type RemoteAuth struct {
	Issuer  TokenIssuer
	OnToken func(token string)
}

func (a RemoteAuth) Login(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrInvalidCredentials
	}
	token, err := a.Issuer.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if a.OnToken != nil {
		a.OnToken(token)
	}
	return nil
}

// Session remembers who is logged in.
type Session struct {
	auth Authenticator

	mu   sync.RWMutex
	user string
}

func NewSession(auth Authenticator) *Session {
	return &Session{auth: auth}
}

func (s *Session) Login(ctx context.Context, username, password string) error {
	if err := s.auth.Login(ctx, username, password); err != nil {
		log.Debug().Str("c", "manager").Str("user", username).Err(err).Msg("login rejected")
		return err
	}
	s.mu.Lock()
	s.user = strings.TrimSpace(username)
	s.mu.Unlock()
	log.Info().Str("c", "manager").Str("user", username).Msg("logged in")
	return nil
}

func (s *Session) Logout() {
	s.mu.Lock()
	s.user = ""
	s.mu.Unlock()
}

func (s *Session) User() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.user != ""
}
