package handlers

import (
	"errors"
	"html/template"
	"math"
	"net/http"
	"strings"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/callback"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/constants"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/providers"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/session"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/utils"
	"go.uber.org/zap"
)

// Handler handles the loopback auth routes
type Handler struct {
	authorizer *providers.Authorizer
	runner     *callback.Runner
	manager    *session.Manager
	outcomes   chan<- models.CallbackOutcome
}

// NewHandler creates a new Handler instance. Callback outcomes are offered to
// outcomes without blocking; it may be nil.
func NewHandler(authorizer *providers.Authorizer, runner *callback.Runner, manager *session.Manager, outcomes chan<- models.CallbackOutcome) *Handler {
	return &Handler{
		authorizer: authorizer,
		runner:     runner,
		manager:    manager,
		outcomes:   outcomes,
	}
}

// StatusResponse is the body of the status endpoint.
type StatusResponse struct {
	State         string              `json:"state"`
	Authenticated bool                `json:"authenticated"`
	User          *models.UserProfile `json:"user,omitempty"`
}

// HandleLogin starts the OAuth flow
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	authURL, state := h.authorizer.AuthURL()
	logger.Debug("Starting login", zap.String("state", state), zap.Bool("direct", h.authorizer.Direct()))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback runs the callback for the provider redirect and renders the result
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	outcome := h.runner.Run(r.Context(), callback.ParseParams(r.URL.Query()))
	h.publish(outcome)

	if outcome.State == models.CallbackSucceeded {
		render(w, callbackPage, http.StatusOK, pageData{
			Title:          "Signed in",
			Heading:        "Signed in",
			Message:        outcome.Message(),
			RefreshURL:     outcome.RedirectTo,
			RefreshSeconds: int(math.Ceil(outcome.RedirectAfter.Seconds())),
		})
		return
	}

	render(w, callbackPage, failureStatus(outcome.Err), pageData{
		Title:    "Sign in failed",
		Heading:  "Sign in failed",
		Message:  outcome.Message(),
		RetryURL: constants.RouteLogin,
	})
}

// HandleLogout signs the user out
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.manager.Logout(r.Context())

	if wantsHTML(r) {
		http.Redirect(w, r, constants.RouteLogin, http.StatusSeeOther)
		return
	}
	h.writeStatus(w)
}

// HandleStatus reports the session state
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeStatus(w)
}

// HandleLanding renders the signed-in landing page. It must be wrapped in
// middleware.RequireSession.
func (h *Handler) HandleLanding(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.manager.CurrentUser()
	if !ok {
		http.Redirect(w, r, constants.RouteLogin, http.StatusFound)
		return
	}
	render(w, landingPage, http.StatusOK, struct {
		pageData
		User      models.UserProfile
		LogoutURL string
	}{
		pageData:  pageData{Title: "Schema SQL Agent"},
		User:      user,
		LogoutURL: constants.RouteLogout,
	})
}

func (h *Handler) writeStatus(w http.ResponseWriter) {
	resp := StatusResponse{State: h.manager.State().String()}
	if user, ok := h.manager.CurrentUser(); ok {
		resp.Authenticated = true
		resp.User = &user
	}
	utils.WriteJSON(w, resp)
}

func (h *Handler) publish(outcome models.CallbackOutcome) {
	if h.outcomes == nil {
		return
	}
	select {
	case h.outcomes <- outcome:
	default:
		logger.Debug("Dropping callback outcome, no listener")
	}
}

func failureStatus(err error) int {
	var f *callback.Failure
	if !errors.As(err, &f) {
		return http.StatusInternalServerError
	}
	switch f.Kind {
	case callback.KindExchangeHTTP, callback.KindMalformedResponse:
		return http.StatusBadGateway
	case callback.KindAbandoned:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func wantsHTML(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

func render(w http.ResponseWriter, tmpl *template.Template, status int, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		logger.Error("Failed to render page", zap.String("template", tmpl.Name()), zap.Error(err))
	}
}
