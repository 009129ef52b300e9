package apiclient

import (
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/requester"
	"go.uber.org/fx"
)

// Module provides the session API client and its authenticated requester
var Module = fx.Module("apiclient",
	requester.Module,
	fx.Provide(NewClient),
)
