package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/database"
)

// AccountMiddleware wraps a handler so that it runs with an account-scoped
// database connection derived from the {aid} path parameter. The scope is
// released when the handler returns.
type AccountMiddleware func(http.HandlerFunc) http.HandlerFunc

// NewAccountMiddleware builds the middleware from the scope provider.
func NewAccountMiddleware(provider *database.AccountScopeProvider, logger *zap.Logger) AccountMiddleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			accountID, ok := ParseAccountID(w, r, logger)
			if !ok {
				return
			}

			ctx, cleanup, err := provider.WithAccountScope(r.Context(), accountID)
			if err != nil {
				logger.Error("Failed to acquire account scope",
					zap.String("account_id", accountID.String()),
					zap.Error(err))
				if err := ErrorResponse(w, http.StatusServiceUnavailable, "account_scope_unavailable", "Could not acquire a database connection for this account"); err != nil {
					logger.Error("Failed to write error response", zap.Error(err))
				}
				return
			}
			defer cleanup()

			next(w, r.WithContext(ctx))
		}
	}
}
