package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// contextKey namespaces values this package stores on a context.Context so
// they can't collide with keys set by unrelated packages.
type contextKey string

const (
	DBConnKey contextKey = "db_conn"
	DBTxKey   contextKey = "db_tx"
)

// ConnFromContext retrieves a request-scoped pooled connection previously
// attached to ctx, or nil if none was attached; callers fall back to
// acquiring directly from the pool in that case.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// WithConn returns a copy of ctx carrying conn, so repository code further
// down the call chain reuses the same connection via ConnFromContext
// instead of acquiring a second one from the pool.
func WithConn(ctx context.Context, conn *pgxpool.Conn) context.Context {
	return context.WithValue(ctx, DBConnKey, conn)
}

// WithTx starts a transaction using the connection attached to ctx (see
// WithConn) and returns a new context carrying it. The caller is
// responsible for committing or rolling back the returned pgx.Tx.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, fmt.Errorf("db: no connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("db: begin transaction: %w", err)
	}
	txCtx := context.WithValue(ctx, DBTxKey, tx)
	return txCtx, tx, nil
}

// TxFromContext retrieves the active transaction attached to ctx by
// WithTx, or nil if none is active.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}
