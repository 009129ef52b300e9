package models

import (
	"strings"
	"time"
)

// UserProfile is the identity returned by the exchange. Email is the identity key.
type UserProfile struct {
	Email              string `json:"email"`
	DisplayName        string `json:"name"`
	AvatarURL          string `json:"picture,omitempty"`
	LinkedDatabaseName string `json:"database_name,omitempty"`
}

// IsZero reports whether the profile carries no identifying data at all.
func (p UserProfile) IsZero() bool {
	return p.Email == "" && p.DisplayName == ""
}

// Label returns the best human-readable name for the profile.
func (p UserProfile) Label() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Email != "":
		if i := strings.IndexByte(p.Email, '@'); i > 0 {
			return p.Email[:i]
		}
		return p.Email
	default:
		return "User"
	}
}

// SessionCredential is the single durable credential of the current user.
type SessionCredential struct {
	AccessToken string      `json:"-"`
	Profile     UserProfile `json:"user"`
	IssuedAt    time.Time   `json:"issued_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Valid reports whether the credential may be used at time now.
func (c SessionCredential) Valid(now time.Time) bool {
	return c.AccessToken != "" && now.Before(c.ExpiresAt)
}

// CallbackState is a state of the OAuth callback state machine.
type CallbackState int

const (
	CallbackPending CallbackState = iota
	CallbackExchangingCode
	CallbackSucceeded
	CallbackFailed
)

// String returns the string representation of the callback state.
func (s CallbackState) String() string {
	switch s {
	case CallbackPending:
		return "pending"
	case CallbackExchangingCode:
		return "exchanging_code"
	case CallbackSucceeded:
		return "succeeded"
	case CallbackFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s CallbackState) Terminal() bool {
	return s == CallbackSucceeded || s == CallbackFailed
}

// CallbackOutcome is the result of one callback run. It is never persisted.
type CallbackOutcome struct {
	State CallbackState
	// Credential is set when State is CallbackSucceeded.
	Credential *SessionCredential
	// Err is set when State is CallbackFailed.
	Err error
	// RedirectTo and RedirectAfter describe the post-success navigation.
	RedirectTo    string
	RedirectAfter time.Duration
}

// Message returns the human-readable text shown for the outcome.
func (o CallbackOutcome) Message() string {
	switch o.State {
	case CallbackSucceeded:
		return "Authentication successful! Redirecting..."
	case CallbackFailed:
		if o.Err != nil {
			return o.Err.Error()
		}
		return "Authentication failed"
	default:
		return "Processing authentication..."
	}
}
