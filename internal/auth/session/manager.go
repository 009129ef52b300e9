// Package session holds the authoritative in-memory view of the signed-in user.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/credstore"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"go.uber.org/zap"
)

// ErrEmptyToken is returned by Login when no access token is given.
var ErrEmptyToken = errors.New("access token is empty")

// State is the authentication state observed by consumers.
type State int

const (
	// StateInitializing means the stored credential has not been read yet.
	// Consumers must render neither view and must not redirect.
	StateInitializing State = iota

	// StateAuthenticated means a user profile is present.
	StateAuthenticated

	// StateAnonymous means there is no signed-in user.
	StateAnonymous
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Manager owns the current user for the lifetime of the process and keeps
// the credential store in sync with it.
type Manager struct {
	mu           sync.RWMutex
	store        *credstore.Store
	currentUser  *models.UserProfile
	initializing bool
	// unpersisted is set while the current user came from a Login whose
	// store write failed. Refresh keeps that user until the store holds a
	// credential again or Logout is called.
	unpersisted bool
	listeners   []func(State)
}

// NewManager creates a Manager and restores the session from store.
func NewManager(ctx context.Context, store *credstore.Store) *Manager {
	m := &Manager{
		store:        store,
		initializing: true,
	}
	m.restore(ctx)
	return m
}

// restore reads the stored credential once and ends initialization.
func (m *Manager) restore(ctx context.Context) {
	cred, ok := m.store.Read(ctx)

	m.mu.Lock()
	if ok {
		profile := cred.Profile
		m.currentUser = &profile
		logger.Info("Restored session", zap.String("email", profile.Email))
	}
	m.initializing = false
	m.mu.Unlock()
}

// Login persists a new credential and makes profile the current user.
// Persistence is best effort: the in-memory session is authenticated even if
// the store write fails.
func (m *Manager) Login(ctx context.Context, token string, profile models.UserProfile) error {
	if token == "" {
		return ErrEmptyToken
	}

	now := m.store.Clock().Now()
	persisted := m.store.Write(ctx, models.SessionCredential{
		AccessToken: token,
		Profile:     profile,
		IssuedAt:    now,
		ExpiresAt:   now.Add(m.store.TTL()),
	})

	m.mu.Lock()
	m.currentUser = &profile
	m.unpersisted = !persisted
	m.mu.Unlock()

	logger.Info("User logged in",
		zap.String("email", profile.Email),
		logger.Token("token", token),
		zap.Bool("persisted", persisted),
	)
	m.notify(StateAuthenticated)
	return nil
}

// Logout clears the stored credential and the current user. Idempotent.
func (m *Manager) Logout(ctx context.Context) {
	m.store.Clear(ctx)

	m.mu.Lock()
	wasAuthenticated := m.currentUser != nil
	m.currentUser = nil
	m.unpersisted = false
	m.mu.Unlock()

	if wasAuthenticated {
		logger.Info("User logged out")
		m.notify(StateAnonymous)
	}
}

// GetToken returns the token currently held by the store. It is read on every
// call so an expired or cleared credential is seen immediately.
func (m *Manager) GetToken(ctx context.Context) (string, bool) {
	cred, ok := m.store.Read(ctx)
	if !ok {
		return "", false
	}
	return cred.AccessToken, true
}

// Refresh reconciles the current user with the store. Another process may
// have logged in or out; the last write wins. A login that could not be
// persisted is kept while the store stays empty.
func (m *Manager) Refresh(ctx context.Context) State {
	cred, ok := m.store.Read(ctx)

	m.mu.Lock()
	before := m.stateLocked()
	switch {
	case ok:
		profile := cred.Profile
		m.currentUser = &profile
		m.unpersisted = false
	case m.unpersisted:
	default:
		m.currentUser = nil
	}
	after := m.stateLocked()
	m.mu.Unlock()

	if before != after {
		logger.Info("Session changed outside this process",
			zap.Stringer("from", before),
			zap.Stringer("to", after),
		)
		m.notify(after)
	}
	return after
}

// CurrentUser returns the signed-in user, if any.
func (m *Manager) CurrentUser() (models.UserProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.currentUser == nil {
		return models.UserProfile{}, false
	}
	return *m.currentUser, true
}

// TTL returns how long a credential written by Login stays valid.
func (m *Manager) TTL() time.Duration {
	return m.store.TTL()
}

// IsAuthenticated is derived from the presence of the current user.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentUser != nil
}

// IsInitializing reports whether the stored session is still being restored.
func (m *Manager) IsInitializing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initializing
}

// State returns the current authentication state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	switch {
	case m.initializing:
		return StateInitializing
	case m.currentUser != nil:
		return StateAuthenticated
	default:
		return StateAnonymous
	}
}

// OnChange registers fn to be called after every authentication state change.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Manager) notify(s State) {
	m.mu.RLock()
	listeners := append([]func(State){}, m.listeners...)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(s)
	}
}
