package settings

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fraud-watch/pkg/api"
)

const MinPasswordLength = 8

var (
	ErrPasswordMismatch  = errors.New("new password and confirmation do not match")
	ErrPasswordTooShort  = errors.New("new password must be at least 8 characters")
	ErrPasswordUnchanged = errors.New("new password must differ from the current one")
)

type Backend interface {
	GetProfile(ctx context.Context) (*api.Profile, error)
	UpdateProfile(ctx context.Context, p api.Profile) (*api.Profile, error)
	GetAPIKey(ctx context.Context) (*api.APIKeyInfo, error)
	RevealAPIKey(ctx context.Context) (string, error)
	RotateAPIKey(ctx context.Context) (string, error)
	GetNotifications(ctx context.Context) (api.NotificationPrefs, error)
	UpdateNotifications(ctx context.Context, prefs api.NotificationPrefs) (api.NotificationPrefs, error)
	ChangePassword(ctx context.Context, current, next string) error
	SignOutOthers(ctx context.Context) error
}

// Service is the account settings page. The only client-side state it keeps
// is the last revealed API key, which a rotation invalidates.
type Service struct {
	backend Backend

	mu       sync.Mutex
	revealed string
}

func New(backend Backend) *Service {
	return &Service{backend: backend}
}

func (s *Service) Profile(ctx context.Context) (*api.Profile, error) {
	return s.backend.GetProfile(ctx)
}

func (s *Service) UpdateProfile(ctx context.Context, p api.Profile) (*api.Profile, error) {
	return s.backend.UpdateProfile(ctx, p)
}

func (s *Service) APIKey(ctx context.Context) (*api.APIKeyInfo, error) {
	return s.backend.GetAPIKey(ctx)
}

// RevealAPIKey asks the backend for the full key.
func (s *Service) RevealAPIKey(ctx context.Context) (string, error) {
	key, err := s.backend.RevealAPIKey(ctx)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.revealed = key
	s.mu.Unlock()
	return key, nil
}

// RevealedKey is the key shown by the last reveal or rotation, if any.
func (s *Service) RevealedKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revealed
}

// RotateAPIKey replaces the key; the previously revealed value is dropped.
func (s *Service) RotateAPIKey(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.revealed = ""
	s.mu.Unlock()

	key, err := s.backend.RotateAPIKey(ctx)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.revealed = key
	s.mu.Unlock()
	log.Info().Msg("🔁 api key rotated")
	return key, nil
}

func (s *Service) Notifications(ctx context.Context) (api.NotificationPrefs, error) {
	return s.backend.GetNotifications(ctx)
}

// SetNotification flips one preference flag and saves the full set.
func (s *Service) SetNotification(ctx context.Context, name string, enabled bool) (api.NotificationPrefs, error) {
	prefs, err := s.backend.GetNotifications(ctx)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		prefs = api.NotificationPrefs{}
	}
	prefs[name] = enabled
	return s.backend.UpdateNotifications(ctx, prefs)
}

// ValidatePasswordChange checks a password change before any request is made.
func ValidatePasswordChange(current, next, confirm string) error {
	if next != confirm {
		return ErrPasswordMismatch
	}
	if len(next) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if next == current {
		return ErrPasswordUnchanged
	}
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if err := ValidatePasswordChange(current, next, confirm); err != nil {
		return err
	}
	return s.backend.ChangePassword(ctx, current, next)
}

func (s *Service) SignOutOthers(ctx context.Context) error {
	return s.backend.SignOutOthers(ctx)
}
