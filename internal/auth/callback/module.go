package callback

import (
	"context"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/identity"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/providers"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/session"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/config"
	"go.uber.org/fx"
)

// Runner creates one Handler per redirect, sharing a Guard between them.
type Runner struct {
	deps Deps
}

type RunnerParams struct {
	fx.In

	Config    *config.OAuthConfig
	Exchanger providers.Exchanger
	Session   *session.Manager
	Verifier  IDVerifier
}

// NewRunner creates a Runner.
func NewRunner(params RunnerParams) *Runner {
	return &Runner{deps: Deps{
		Exchanger:     params.Exchanger,
		Session:       params.Session,
		Verifier:      params.Verifier,
		Guard:         NewGuard(),
		LandingRoute:  params.Config.LandingRoute,
		RedirectDelay: params.Config.RedirectDelay,
		CredentialTTL: params.Session.TTL(),
	}}
}

// NewHandler creates the Handler for one redirect.
func (r *Runner) NewHandler(params Params) *Handler {
	return NewHandler(params, r.deps)
}

// Run handles one redirect to completion.
func (r *Runner) Run(ctx context.Context, params Params) models.CallbackOutcome {
	return r.NewHandler(params).Run(ctx)
}

type verifierResult struct {
	fx.Out

	Verifier IDVerifier
}

// newVerifier discovers the provider keys only when ID token verification is enabled.
func newVerifier(cfg *config.OAuthConfig) (verifierResult, error) {
	if !cfg.VerifyIDToken || cfg.ClientID == "" {
		return verifierResult{}, nil
	}
	v, err := identity.NewGoogleVerifier(context.Background(), cfg.ClientID)
	if err != nil {
		return verifierResult{}, err
	}
	return verifierResult{Verifier: v}, nil
}

// Module provides the callback runner and the backend exchanger
var Module = fx.Module("callback",
	fx.Provide(
		fx.Annotate(
			providers.NewBackendExchanger,
			fx.As(new(providers.Exchanger)),
		),
		newVerifier,
		NewRunner,
	),
)
