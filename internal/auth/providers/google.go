package providers

import (
	"net/url"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/config"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Authorizer builds the URL that starts the OAuth flow.
type Authorizer struct {
	oauth2Config *oauth2.Config
	loginURL     string
}

// NewAuthorizer creates an Authorizer. Without a client id the flow is started
// by the backend login endpoint instead of the provider directly.
func NewAuthorizer(cfg *config.OAuthConfig) *Authorizer {
	a := &Authorizer{loginURL: cfg.LoginURL}
	if cfg.ClientID != "" {
		a.oauth2Config = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       cfg.Scopes,
			RedirectURL:  cfg.RedirectURL,
		}
	}
	return a
}

// Direct reports whether the consent URL is built locally.
func (a *Authorizer) Direct() bool {
	return a.oauth2Config != nil
}

// AuthURL returns the URL to open in the browser and the state it carries.
func (a *Authorizer) AuthURL() (string, string) {
	state := uuid.NewString()
	if a.oauth2Config != nil {
		return a.oauth2Config.AuthCodeURL(state,
			oauth2.AccessTypeOnline,
			oauth2.SetAuthURLParam("prompt", "select_account"),
		), state
	}

	u, err := url.Parse(a.loginURL)
	if err != nil {
		return a.loginURL, state
	}
	q := u.Query()
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), state
}
