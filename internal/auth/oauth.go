// Package auth wires the loopback OAuth routes of the sqlagent client.
package auth

import (
	"net/http"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/callback"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/constants"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/credstore"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/handlers"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/middleware"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/providers"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/session"
	"go.uber.org/fx"
)

// landingPattern matches the root path only, so stray requests such as
// /favicon.ico get a 404 instead of a login redirect.
const landingPattern = "GET /{$}"

// Service represents the OAuth service
type Service struct {
	manager  *session.Manager
	handler  *handlers.Handler
	outcomes chan models.CallbackOutcome
}

// NewService creates a new OAuth service
func NewService(authorizer *providers.Authorizer, runner *callback.Runner, manager *session.Manager) *Service {
	outcomes := make(chan models.CallbackOutcome, 1)
	return &Service{
		manager:  manager,
		handler:  handlers.NewHandler(authorizer, runner, manager, outcomes),
		outcomes: outcomes,
	}
}

// RegisterRoutes registers all auth routes and the guarded landing page
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(constants.RouteLogin, s.handler.HandleLogin)
	mux.HandleFunc(constants.RouteCallback, s.handler.HandleCallback)
	mux.HandleFunc(constants.RouteLogout, s.handler.HandleLogout)
	mux.HandleFunc(constants.RouteStatus, s.handler.HandleStatus)
	mux.Handle(landingPattern, s.RequireSession()(http.HandlerFunc(s.handler.HandleLanding)))
}

// Handler returns the complete route table
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return middleware.LogRequests(mux)
}

// RequireSession returns the session guard middleware
func (s *Service) RequireSession() func(http.Handler) http.Handler {
	return middleware.RequireSession(s.manager)
}

// Outcomes delivers the outcome of each completed callback while someone is
// receiving. The CLI login command waits on it.
func (s *Service) Outcomes() <-chan models.CallbackOutcome {
	return s.outcomes
}

// Module provides the credential store, session manager, callback runner and
// the auth routes
var Module = fx.Module("auth",
	credstore.Module,
	session.Module,
	callback.Module,
	fx.Provide(
		providers.NewAuthorizer,
		NewService,
	),
)
