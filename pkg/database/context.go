package database

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// AccountScopeKey is the context key for storing the account-scoped database connection.
	AccountScopeKey contextKey = "accountScope"
)

// GetAccountScope retrieves the account-scoped database connection from context.
// Returns nil and false if not present.
func GetAccountScope(ctx context.Context) (*AccountScope, bool) {
	scope, ok := ctx.Value(AccountScopeKey).(*AccountScope)
	return scope, ok
}

// SetAccountScope stores the account-scoped database connection in context.
func SetAccountScope(ctx context.Context, scope *AccountScope) context.Context {
	return context.WithValue(ctx, AccountScopeKey, scope)
}

// AccountScopeProvider creates account-scoped contexts for database operations.
type AccountScopeProvider struct {
	db *DB
}

// NewAccountScopeProvider creates an AccountScopeProvider for the given database.
func NewAccountScopeProvider(db *DB) *AccountScopeProvider {
	return &AccountScopeProvider{db: db}
}

// WithAccountScope returns a context with account scope set for the given account.
// The cleanup function must be called when the scope is no longer needed.
func (p *AccountScopeProvider) WithAccountScope(ctx context.Context, accountID uuid.UUID) (context.Context, func(), error) {
	scope, err := p.db.WithAccount(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	accountCtx := SetAccountScope(ctx, scope)
	return accountCtx, func() { scope.Close() }, nil
}
