// Package identity derives a user profile from tokens returned by the backend.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// GoogleIssuer is the issuer of Google ID tokens.
const GoogleIssuer = "https://accounts.google.com"

// ErrNoIdentity is returned when a token carries no usable identity claims.
var ErrNoIdentity = errors.New("token carries no identity claims")

type profileClaims struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Picture      string `json:"picture"`
	DatabaseName string `json:"database_name"`
}

func (c profileClaims) profile() models.UserProfile {
	return models.UserProfile{
		Email:              c.Email,
		DisplayName:        c.Name,
		AvatarURL:          c.Picture,
		LinkedDatabaseName: c.DatabaseName,
	}
}

// FromToken reads profile claims from a JWT access token without verifying it.
// Tokens that are not JWTs or carry neither email nor name yield ErrNoIdentity.
//
// SECURITY: the result is for display only. The backend remains the authority
// on whether the token is valid.
func FromToken(raw string) (models.UserProfile, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return models.UserProfile{}, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}

	str := func(key string) string {
		s, _ := claims[key].(string)
		return s
	}
	profile := profileClaims{
		Email:        str("email"),
		Name:         str("name"),
		Picture:      str("picture"),
		DatabaseName: str("database_name"),
	}.profile()
	if profile.IsZero() {
		return models.UserProfile{}, ErrNoIdentity
	}
	return profile, nil
}

// Verifier checks OpenID Connect ID tokens and extracts the profile.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier discovers Google's signing keys and verifies tokens issued
// to clientID.
func NewGoogleVerifier(ctx context.Context, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, GoogleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// NewVerifier verifies tokens from issuer against a fixed key set.
func NewVerifier(issuer, clientID string, keys oidc.KeySet, now func() time.Time) *Verifier {
	return &Verifier{verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: clientID, Now: now})}
}

// Verify validates rawIDToken and returns the profile it asserts.
func (v *Verifier) Verify(ctx context.Context, rawIDToken string) (models.UserProfile, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims profileClaims
	if err := idToken.Claims(&claims); err != nil {
		return models.UserProfile{}, fmt.Errorf("failed to parse claims: %w", err)
	}
	profile := claims.profile()
	if profile.IsZero() {
		return models.UserProfile{}, ErrNoIdentity
	}
	return profile, nil
}
