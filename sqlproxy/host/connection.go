package host

import (
	"context"
	"errors"

	"github.com/tomyedwab/libsqlshim/sqlproxy/connector"
	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// LibsqlConnection is the handle returned by Connect.
type LibsqlConnection struct {
	DBID string `json:"db_id"`
}

// Connect builds the database described by args, attaches its primary
// connection and registers both under a new ID. Nothing is registered unless
// every step succeeds.
func Connect(ctx context.Context, args types.ConnectArgs) (LibsqlConnection, error) {
	db, err := connector.Open(ctx, args)
	if err != nil {
		return LibsqlConnection{}, types.WrapError(types.KindConnect, err)
	}
	conn, err := db.Connect(ctx)
	if err != nil {
		_ = db.Close()
		return LibsqlConnection{}, types.WrapError(types.KindConnect, err)
	}
	id := databases.Insert(&databaseEntry{db: db, conn: conn})
	return LibsqlConnection{DBID: id}, nil
}

func (c LibsqlConnection) entry() (*databaseEntry, error) {
	return databases.Get(c.DBID)
}

// Sync replicates with the remote. Only replica and offline-synced
// connections support it.
func (c LibsqlConnection) Sync(ctx context.Context) error {
	entry, err := c.entry()
	if err != nil {
		return err
	}
	return entry.db.Sync(ctx)
}

// Prepare compiles sql and registers the statement. The statement is only
// registered after the engine accepted it.
func (c LibsqlConnection) Prepare(ctx context.Context, sql string) (LibsqlStatement, error) {
	entry, err := c.entry()
	if err != nil {
		return LibsqlStatement{}, err
	}
	stmt, err := entry.conn.Prepare(ctx, sql)
	if err != nil {
		return LibsqlStatement{}, err
	}
	id := statements.Insert(&statementEntry{dbID: c.DBID, stmt: stmt})
	// Close may have swept the statement table while the engine was busy.
	if !databases.Exists(c.DBID) {
		if orphan, err := statements.Remove(id); err == nil {
			_ = orphan.stmt.Finalize()
		}
		return LibsqlStatement{}, ownerGone("statement", id)
	}
	return LibsqlStatement{StatementID: id}, nil
}

// Query runs sql through a transient statement that is never registered.
func (c LibsqlConnection) Query(ctx context.Context, sql string, params *types.Params) (types.QueryResult, error) {
	entry, err := c.entry()
	if err != nil {
		return types.QueryResult{}, err
	}
	stmt, err := entry.conn.Prepare(ctx, sql)
	if err != nil {
		return types.QueryResult{}, err
	}
	defer stmt.Finalize()
	return stmt.Query(ctx, params)
}

func (c LibsqlConnection) Execute(ctx context.Context, sql string, params *types.Params) (types.ExecuteResult, error) {
	entry, err := c.entry()
	if err != nil {
		return types.ExecuteResult{}, err
	}
	stmt, err := entry.conn.Prepare(ctx, sql)
	if err != nil {
		return types.ExecuteResult{}, err
	}
	defer stmt.Finalize()
	return stmt.Execute(ctx, params)
}

// Batch runs a multi-statement script without parameters or results.
func (c LibsqlConnection) Batch(ctx context.Context, sql string) error {
	entry, err := c.entry()
	if err != nil {
		return err
	}
	return entry.conn.ExecuteBatch(ctx, sql)
}

// Transaction begins a transaction; the zero behavior is deferred.
func (c LibsqlConnection) Transaction(ctx context.Context, behavior types.TransactionBehavior) (LibsqlTransaction, error) {
	entry, err := c.entry()
	if err != nil {
		return LibsqlTransaction{}, err
	}
	tx, err := entry.conn.Begin(ctx, behavior)
	if err != nil {
		return LibsqlTransaction{}, err
	}
	id := transactions.Insert(&transactionEntry{dbID: c.DBID, tx: tx})
	if !databases.Exists(c.DBID) {
		_, _ = transactions.Remove(id)
		return LibsqlTransaction{}, ownerGone("transaction", id)
	}
	return LibsqlTransaction{TransactionID: id}, nil
}

func (c LibsqlConnection) EnableExtension(ctx context.Context) error {
	entry, err := c.entry()
	if err != nil {
		return err
	}
	return entry.conn.EnableExtensions(ctx)
}

func (c LibsqlConnection) DisableExtension(ctx context.Context) error {
	entry, err := c.entry()
	if err != nil {
		return err
	}
	return entry.conn.DisableExtensions(ctx)
}

// LoadExtension loads the shared object at path. An empty entryPoint tries
// sqlite3_extension_init, then the name derived from the file name.
func (c LibsqlConnection) LoadExtension(ctx context.Context, path, entryPoint string) error {
	entry, err := c.entry()
	if err != nil {
		return err
	}
	return entry.conn.LoadExtension(ctx, path, entryPoint)
}

// Close releases the connection and its database. Statements prepared on it
// are finalized and open transactions rolled back; their IDs report
// HandleGone from now on.
func (c LibsqlConnection) Close(ctx context.Context) error {
	entry, err := databases.Remove(c.DBID)
	if err != nil {
		return err
	}

	var errs []error
	for _, tx := range transactions.RemoveWhere(func(_ string, tx *transactionEntry) bool {
		return tx.dbID == c.DBID
	}) {
		_ = tx.tx.Rollback(ctx)
	}
	for _, stmt := range statements.RemoveWhere(func(_ string, stmt *statementEntry) bool {
		return stmt.dbID == c.DBID
	}) {
		_ = stmt.stmt.Finalize()
	}
	if err := entry.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := entry.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
