package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/db"
	"github.com/fraud-watch/pkg/state"
)

// Backend is the slice of the api client the session needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password, fullName string) error
	MeWith(ctx context.Context, token string) (*api.User, error)
}

// Store holds the bearer token and the signed-in user's profile. The token is
// persisted; the profile lives in memory and is re-fetched on hydration.
type Store struct {
	backend Backend
	token   *state.Var[string]

	mu   sync.RWMutex
	tok  string
	user *api.User
}

func New(backend Backend, kv state.KV) *Store {
	return &Store{
		backend: backend,
		token:   state.NewVar(kv, db.KeyAuthToken, state.StringCodec()),
	}
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tok
}

func (s *Store) User() *api.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tok != "" && s.user != nil
}

// Login exchanges credentials for a token, fetches the profile and persists
// the token. Rejected credentials surface as *api.AuthError with the server's text.
func (s *Store) Login(ctx context.Context, email, password string) error {
	tok, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return err
	}
	user, err := s.backend.MeWith(ctx, tok)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	if err := s.token.Write(tok); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	s.mu.Lock()
	s.tok, s.user = tok, user
	s.mu.Unlock()

	log.Info().Int64("user", user.ID).Msg("🔑 signed in")
	return nil
}

// Register creates the account and then signs in with the same credentials.
func (s *Store) Register(ctx context.Context, email, password, fullName string) error {
	if err := s.backend.Register(ctx, email, password, fullName); err != nil {
		return err
	}
	return s.Login(ctx, email, password)
}

// Logout clears the session. It always succeeds; a failure to drop the
// persisted token is only logged.
func (s *Store) Logout() {
	s.mu.Lock()
	s.tok, s.user = "", nil
	s.mu.Unlock()

	if err := s.token.Clear(); err != nil {
		log.Warn().Err(err).Msg("failed to clear persisted token")
	}
	log.Info().Msg("signed out")
}

// Hydrate restores a persisted session at startup. If the backend rejects the
// stored token, the token is discarded and the store resets to signed out.
// Any other failure leaves the persisted token in place. It reports whether a
// session was restored.
func (s *Store) Hydrate(ctx context.Context) bool {
	tok, ok, err := s.token.Read()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read persisted token")
		return false
	}
	if !ok || tok == "" {
		return false
	}

	user, err := s.backend.MeWith(ctx, tok)
	var authErr *api.AuthError
	if errors.As(err, &authErr) {
		log.Warn().Err(err).Msg("stored session is no longer valid, signing out")
		s.Logout()
		return false
	}
	if err != nil {
		// backend unreachable: keep the token for a later run and attach it
		// to requests, but report no profile
		log.Warn().Err(err).Msg("could not verify stored session")
		s.mu.Lock()
		s.tok = tok
		s.mu.Unlock()
		return false
	}

	s.mu.Lock()
	s.tok, s.user = tok, user
	s.mu.Unlock()
	log.Info().Int64("user", user.ID).Msg("session restored")
	return true
}
