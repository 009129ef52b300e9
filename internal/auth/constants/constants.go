package constants

import "time"

const (
	// DefaultPort is the default port for the loopback callback server
	DefaultPort = 3000

	// TokenType for Bearer authentication
	TokenType = "Bearer"

	// CredentialTTL is how long a persisted credential stays valid after it is written
	CredentialTTL = 24 * time.Hour

	// RedirectDelay is how long the success page is shown before going to the landing route
	RedirectDelay = 2 * time.Second
)

// Redirect query parameters understood by the callback
const (
	ParamCode             = "code"
	ParamState            = "state"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
	ParamToken            = "token"
)

// Persisted credential entry names
const (
	TokenKey   = "sqlagent_token"
	ProfileKey = "sqlagent_user"
)

// Routes served by the loopback server
const (
	RouteLogin    = "/auth/login"
	RouteCallback = "/auth/callback"
	RouteLogout   = "/auth/logout"
	RouteStatus   = "/auth/status"
)

// DefaultScopes requested from the identity provider
var DefaultScopes = []string{"openid", "profile", "email"}
