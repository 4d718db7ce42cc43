// Package engine defines the database engine contract consumed by the host
// façades and implements it on top of database/sql.
//
// Every variant (local file, encrypted file, remote, replica, offline-synced)
// ends up as a *sql.DB opened by some registered driver. A Database pins one
// *sqlx.Conn per Connect call so that statements, transactions and
// connection-scoped state (last_insert_rowid, PRAGMAs, in-memory databases)
// all stay on the same engine connection. Variant-specific behavior such as
// replication or extension loading is injected with Options.
package engine

import (
	"context"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// Database is an opened database of any variant.
type Database interface {
	// Connect returns a new connection bound to the database.
	Connect(ctx context.Context) (Conn, error)
	// Sync replicates with the remote and returns once the remote has
	// acknowledged. Variants without replication return an engine error.
	Sync(ctx context.Context) error
	// Variant names the kind of database.
	Variant() types.Variant
	Close() error
}

// Conn is a single engine connection.
type Conn interface {
	Prepare(ctx context.Context, sql string) (Stmt, error)
	ExecuteBatch(ctx context.Context, sql string) error
	Begin(ctx context.Context, behavior types.TransactionBehavior) (Tx, error)
	EnableExtensions(ctx context.Context) error
	DisableExtensions(ctx context.Context) error
	LoadExtension(ctx context.Context, path, entryPoint string) error
	Close() error
}

// Stmt is a prepared statement. It borrows the connection it was prepared on.
type Stmt interface {
	Query(ctx context.Context, params *types.Params) (types.QueryResult, error)
	Execute(ctx context.Context, params *types.Params) (types.ExecuteResult, error)
	Reset(ctx context.Context) error
	Finalize() error
}

// Tx is an open transaction. Commit and Rollback each end it.
type Tx interface {
	Query(ctx context.Context, sql string, params *types.Params) (types.QueryResult, error)
	Execute(ctx context.Context, sql string, params *types.Params) (types.ExecuteResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
