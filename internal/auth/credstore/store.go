package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/constants"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"go.uber.org/zap"
)

// Store is the credential persistence contract used by the session manager.
//
// SECURITY: token values are never logged, only key names and profile emails.
type Store struct {
	backend Backend
	clock   Clock
	ttl     time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithTTL overrides the expiry window applied on every write.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewStore creates a Store over backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		clock:   RealClock{},
		ttl:     constants.CredentialTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cb, ok := backend.(clockedBackend); ok {
		cb.UseClock(s.clock)
	}
	return s
}

// clockedBackend is a Backend that expires entries itself and needs the
// Store's time source to do so.
type clockedBackend interface {
	UseClock(Clock)
}

// storedProfile is the structured blob kept next to the token.
type storedProfile struct {
	User     models.UserProfile `json:"user"`
	IssuedAt time.Time          `json:"issued_at"`
}

// Clock returns the store's time source.
func (s *Store) Clock() Clock {
	return s.clock
}

// TTL returns the expiry window applied on every write.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Write persists cred, overwriting any previous credential. Both entries expire
// one TTL after the write. Failures are logged and swallowed; Write reports
// whether the credential was persisted. A write that fails halfway removes both
// entries so a read never pairs one login's token with another's profile.
func (s *Store) Write(ctx context.Context, cred models.SessionCredential) bool {
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)

	issuedAt := cred.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now
	}

	blob, err := json.Marshal(storedProfile{User: cred.Profile, IssuedAt: issuedAt})
	if err != nil {
		logger.Warn("Failed to encode credential profile", zap.Error(&StoreError{Op: "write", Key: constants.ProfileKey, Err: err}))
		s.discard(ctx)
		return false
	}

	if err := s.backend.Put(ctx, constants.TokenKey, Entry{Value: cred.AccessToken, ExpiresAt: expiresAt}); err != nil {
		logger.Warn("Failed to persist credential token", zap.Error(&StoreError{Op: "write", Key: constants.TokenKey, Err: err}))
		s.discard(ctx)
		return false
	}
	if err := s.backend.Put(ctx, constants.ProfileKey, Entry{Value: string(blob), ExpiresAt: expiresAt}); err != nil {
		logger.Warn("Failed to persist credential profile", zap.Error(&StoreError{Op: "write", Key: constants.ProfileKey, Err: err}))
		s.discard(ctx)
		return false
	}

	logger.Debug("Credential stored",
		zap.String("email", cred.Profile.Email),
		zap.Time("expires_at", expiresAt),
	)
	return true
}

// discard removes whatever a failed write left behind.
func (s *Store) discard(ctx context.Context) {
	if err := s.backend.Delete(ctx, constants.TokenKey, constants.ProfileKey); err != nil {
		logger.Warn("Failed to discard partial credential", zap.Error(&StoreError{Op: "write", Err: err}))
	}
}

// Read returns the stored credential if both entries exist and are still valid.
// A corrupt profile entry is cleared so it cannot be read again.
func (s *Store) Read(ctx context.Context) (models.SessionCredential, bool) {
	cred, err := s.load(ctx)
	switch {
	case err == nil:
		return cred, true
	case errors.Is(err, ErrNotFound):
		return models.SessionCredential{}, false
	case errors.Is(err, ErrCorrupt), errors.Is(err, ErrExpired):
		logger.Info("Discarding stored credential", zap.Error(err))
		s.Clear(ctx)
		return models.SessionCredential{}, false
	default:
		logger.Warn("Failed to read stored credential", zap.Error(err))
		return models.SessionCredential{}, false
	}
}

// Clear removes both entries. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) {
	if err := s.backend.Delete(ctx, constants.TokenKey, constants.ProfileKey); err != nil {
		logger.Warn("Failed to clear stored credential", zap.Error(&StoreError{Op: "clear", Err: err}))
	}
}

// load reads both entries and reports why a credential is unavailable.
func (s *Store) load(ctx context.Context) (models.SessionCredential, error) {
	tokenEntry, err := s.backend.Get(ctx, constants.TokenKey)
	if err != nil {
		return models.SessionCredential{}, &StoreError{Op: "read", Key: constants.TokenKey, Err: err}
	}
	profileEntry, err := s.backend.Get(ctx, constants.ProfileKey)
	if err != nil {
		return models.SessionCredential{}, &StoreError{Op: "read", Key: constants.ProfileKey, Err: err}
	}

	var blob storedProfile
	if err := json.Unmarshal([]byte(profileEntry.Value), &blob); err != nil {
		return models.SessionCredential{}, &StoreError{
			Op:  "read",
			Key: constants.ProfileKey,
			Err: fmt.Errorf("%w: %v", ErrCorrupt, err),
		}
	}
	if blob.User.IsZero() {
		return models.SessionCredential{}, &StoreError{Op: "read", Key: constants.ProfileKey, Err: ErrCorrupt}
	}

	expiresAt := tokenEntry.ExpiresAt
	if profileEntry.ExpiresAt.Before(expiresAt) {
		expiresAt = profileEntry.ExpiresAt
	}

	cred := models.SessionCredential{
		AccessToken: tokenEntry.Value,
		Profile:     blob.User,
		IssuedAt:    blob.IssuedAt,
		ExpiresAt:   expiresAt,
	}
	if !cred.Valid(s.clock.Now()) {
		return models.SessionCredential{}, &StoreError{Op: "read", Key: constants.TokenKey, Err: ErrExpired}
	}
	return cred, nil
}
