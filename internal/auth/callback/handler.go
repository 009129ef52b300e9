// Package callback completes the OAuth redirect: it turns the redirect
// parameters into a signed-in session exactly once.
package callback

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/constants"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/identity"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/providers"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/requester"
	"go.uber.org/zap"
)

// Params are the query parameters of the provider redirect.
type Params struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	Token            string
}

// ParseParams reads Params from a redirect query.
func ParseParams(q url.Values) Params {
	return Params{
		Code:             q.Get(constants.ParamCode),
		State:            q.Get(constants.ParamState),
		Error:            q.Get(constants.ParamError),
		ErrorDescription: q.Get(constants.ParamErrorDescription),
		Token:            q.Get(constants.ParamToken),
	}
}

// Session is the part of the session manager the callback signs in to.
type Session interface {
	Login(ctx context.Context, token string, profile models.UserProfile) error
}

// IDVerifier verifies an OpenID Connect ID token.
type IDVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (models.UserProfile, error)
}

// Deps are the collaborators of a Handler.
type Deps struct {
	Exchanger providers.Exchanger
	Session   Session
	// Verifier is optional. Without it an id_token is read unverified.
	Verifier IDVerifier
	// Guard is optional and deduplicates exchanges across handlers.
	Guard         *Guard
	LandingRoute  string
	RedirectDelay time.Duration
	// CredentialTTL is the lifetime of the credential Login stores.
	CredentialTTL time.Duration
	// OnTransition is called after every state change.
	OnTransition func(models.CallbackState)
}

// Handler runs the callback state machine for one redirect.
// Pending -> ExchangingCode -> Succeeded | Failed, or Pending -> Succeeded | Failed.
type Handler struct {
	params Params
	deps   Deps

	mu      sync.Mutex
	state   models.CallbackState
	once    sync.Once
	outcome models.CallbackOutcome

	closeOnce sync.Once
	closed    chan struct{}
}

// NewHandler creates a Handler in the Pending state.
func NewHandler(params Params, deps Deps) *Handler {
	if deps.LandingRoute == "" {
		deps.LandingRoute = "/"
	}
	if deps.RedirectDelay <= 0 {
		deps.RedirectDelay = constants.RedirectDelay
	}
	if deps.CredentialTTL <= 0 {
		deps.CredentialTTL = constants.CredentialTTL
	}
	return &Handler{
		params: params,
		deps:   deps,
		state:  models.CallbackPending,
		closed: make(chan struct{}),
	}
}

// State returns the current state.
func (h *Handler) State() models.CallbackState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Close abandons the handler. A run that has not signed in yet never will.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.closed) })
}

// Run executes the state machine. Only the first call does any work; later
// calls return the same outcome.
func (h *Handler) Run(ctx context.Context) models.CallbackOutcome {
	h.once.Do(func() {
		h.outcome = h.run(ctx)
	})
	return h.outcome
}

func (h *Handler) run(ctx context.Context) models.CallbackOutcome {
	p := h.params

	switch {
	case p.Error != "":
		msg := "Authentication failed: " + p.Error
		if p.ErrorDescription != "" {
			msg += " - " + p.ErrorDescription
		}
		return h.fail(newFailure(KindProviderError, msg, nil))

	case p.Token != "":
		return h.signIn(ctx, p.Token, profileFromToken(p.Token))

	case p.Code != "":
		h.transition(models.CallbackExchangingCode)
		res, err := h.exchange(ctx)
		if err != nil {
			return h.fail(h.classify(ctx, err))
		}
		return h.signIn(ctx, res.AccessToken, h.profileFromExchange(ctx, res))

	default:
		return h.fail(newFailure(KindMissingCode, "No authorization code received", nil))
	}
}

func (h *Handler) exchange(ctx context.Context) (*providers.ExchangeResult, error) {
	req := providers.ExchangeRequest{Code: h.params.Code, State: h.params.State}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-h.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	if h.deps.Guard != nil {
		return h.deps.Guard.Do(ctx, req.Code, func(ctx context.Context) (*providers.ExchangeResult, error) {
			return h.deps.Exchanger.Exchange(ctx, req)
		})
	}
	return h.deps.Exchanger.Exchange(ctx, req)
}

func (h *Handler) classify(ctx context.Context, err error) *Failure {
	if h.abandoned(ctx) || errors.Is(err, context.Canceled) {
		return newFailure(KindAbandoned, "Authentication was cancelled", err)
	}
	if errors.Is(err, ErrCodeUsed) {
		return newFailure(KindCodeReused, "Authentication failed: this sign-in link was already used", err)
	}
	if providers.IsMalformed(err) {
		if errors.Is(err, providers.ErrNoAccessToken) {
			return newFailure(KindMalformedResponse, "No access token received", err)
		}
		return newFailure(KindMalformedResponse, "Invalid response from the authentication server", err)
	}

	var httpErr *requester.HTTPError
	if errors.As(err, &httpErr) {
		return newFailure(KindExchangeHTTP, fmt.Sprintf("Authentication failed: HTTP error! status: %d", httpErr.StatusCode), err)
	}
	return newFailure(KindExchangeHTTP, "Authentication failed: could not reach the authentication server", err)
}

// signIn logs in unless the run was abandoned first.
func (h *Handler) signIn(ctx context.Context, token string, profile models.UserProfile) models.CallbackOutcome {
	if h.abandoned(ctx) {
		return h.fail(newFailure(KindAbandoned, "Authentication was cancelled", ctx.Err()))
	}
	if err := h.deps.Session.Login(ctx, token, profile); err != nil {
		return h.fail(newFailure(KindMalformedResponse, "No access token received", err))
	}

	h.transition(models.CallbackSucceeded)
	logger.Info("Authentication successful", zap.String("email", profile.Email))

	now := time.Now()
	return models.CallbackOutcome{
		State: models.CallbackSucceeded,
		Credential: &models.SessionCredential{
			AccessToken: token,
			Profile:     profile,
			IssuedAt:    now,
			ExpiresAt:   now.Add(h.deps.CredentialTTL),
		},
		RedirectTo:    h.deps.LandingRoute,
		RedirectAfter: h.deps.RedirectDelay,
	}
}

func (h *Handler) fail(f *Failure) models.CallbackOutcome {
	h.transition(models.CallbackFailed)
	logger.Warn("Authentication failed",
		zap.Stringer("kind", f.Kind),
		zap.String("message", f.Message),
		zap.NamedError("cause", f.Cause),
	)
	return models.CallbackOutcome{State: models.CallbackFailed, Err: f}
}

func (h *Handler) abandoned(ctx context.Context) bool {
	select {
	case <-h.closed:
		return true
	default:
	}
	return ctx.Err() != nil
}

func (h *Handler) transition(s models.CallbackState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()

	logger.Debug("Callback state changed", zap.Stringer("state", s))
	if h.deps.OnTransition != nil {
		h.deps.OnTransition(s)
	}
}

// profileFromExchange prefers the user object, then a verified ID token, then
// whatever the tokens themselves claim.
func (h *Handler) profileFromExchange(ctx context.Context, res *providers.ExchangeResult) models.UserProfile {
	if res.User != nil && !res.User.IsZero() {
		return *res.User
	}

	if res.IDToken != "" {
		if h.deps.Verifier != nil {
			profile, err := h.deps.Verifier.Verify(ctx, res.IDToken)
			if err == nil {
				return profile
			}
			logger.Warn("Ignoring unverifiable ID token", zap.Error(err))
		} else if profile, err := identity.FromToken(res.IDToken); err == nil {
			return profile
		}
	}
	return profileFromToken(res.AccessToken)
}

// profileFromToken derives a minimal profile from the token alone. No request
// is made.
func profileFromToken(token string) models.UserProfile {
	if profile, err := identity.FromToken(token); err == nil {
		return profile
	}
	return models.UserProfile{DisplayName: placeholderName}
}

const placeholderName = "User"
