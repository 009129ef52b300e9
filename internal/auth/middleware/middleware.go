package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/constants"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/session"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/utils"
	"go.uber.org/zap"
)

// authContextKey is the key type for the context
type authContextKey string

const (
	// AuthContextKey is used to store the signed-in user in the request context
	AuthContextKey authContextKey = "auth"
)

// UserFromContext returns the user stored by RequireSession.
func UserFromContext(ctx context.Context) (models.UserProfile, bool) {
	user, ok := ctx.Value(AuthContextKey).(models.UserProfile)
	return user, ok
}

// RequireSession lets a request through only for a signed-in user. The
// session is reconciled with the store first. While the session is still
// being restored the answer is 503 and no redirect happens.
func RequireSession(manager *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch manager.Refresh(r.Context()) {
			case session.StateInitializing:
				w.Header().Set("Retry-After", "1")
				utils.WriteError(w, "initializing", "Session is being restored", http.StatusServiceUnavailable)
				return
			case session.StateAnonymous:
				http.Redirect(w, r, constants.RouteLogin, http.StatusFound)
				return
			}

			user, ok := manager.CurrentUser()
			if !ok {
				http.Redirect(w, r, constants.RouteLogin, http.StatusFound)
				return
			}
			ctx := context.WithValue(r.Context(), AuthContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LogRequests logs every request at debug level. Query strings are omitted
// because they carry authorization codes and tokens.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}
