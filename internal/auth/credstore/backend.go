// Package credstore persists the session credential of the current user.
//
// A Store keeps the access token and the user profile as two independent
// entries, each with its own expiry, on top of a pluggable Backend (memory,
// file, Redis or SQLite). Every Backend failure is logged and reported to
// callers as "no credential": a broken store degrades to logged out.
package credstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by a Backend when the key has no entry.
	ErrNotFound = errors.New("credential entry not found")

	// ErrCorrupt marks a persisted profile that cannot be parsed.
	ErrCorrupt = errors.New("credential entry is corrupt")

	// ErrExpired marks an entry whose expiry has passed.
	ErrExpired = errors.New("credential entry is expired")
)

// Entry is a single persisted value with its absolute expiry.
type Entry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Backend is durable key/value storage with per-entry expiry.
type Backend interface {
	// Put stores e under key, replacing any existing entry.
	Put(ctx context.Context, key string, e Entry) error
	// Get returns the entry for key or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Close releases resources held by the backend.
	Close() error
}

// StoreError describes a failed store operation on one key.
type StoreError struct {
	Op  string // "write", "read", "clear"
	Key string
	Err error
}

func (e *StoreError) Error() string {
	msg := e.Op + " credential"
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
