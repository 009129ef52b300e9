package requester

import (
	"go.uber.org/fx"
)

// Module provides the backend requester authenticated with the session token.
// A TokenSource must be provided elsewhere.
var Module = fx.Options(
	fx.Provide(
		NewHTTPRequester,
		fx.Annotate(
			NewSessionAuthManager,
			fx.As(new(AuthManager)),
		),
	),
)
