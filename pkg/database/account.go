package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountScope wraps a connection with account context and ensures cleanup.
// The connection has app.current_account_id set for RLS policy evaluation,
// so repository queries only ever see one account's contacts.
type AccountScope struct {
	Conn *pgxpool.Conn
}

// Close resets account context and releases connection to pool.
// This MUST be called to prevent account context from leaking to the next request.
func (s *AccountScope) Close() {
	if s.Conn == nil {
		return
	}
	// Reset the account context before returning connection to pool
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_account_id")
	s.Conn.Release()
}

// WithAccount acquires a connection and sets the account context for RLS.
// The returned AccountScope MUST be closed with defer scope.Close().
func (db *DB) WithAccount(ctx context.Context, accountID uuid.UUID) (*AccountScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_account_id', $1, false)", accountID.String())
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &AccountScope{Conn: conn}, nil
}
