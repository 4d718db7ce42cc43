package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

var beginStatements = map[types.TransactionBehavior]string{
	types.BehaviorDeferred:  "BEGIN DEFERRED",
	types.BehaviorImmediate: "BEGIN IMMEDIATE",
	types.BehaviorExclusive: "BEGIN EXCLUSIVE",
	types.BehaviorReadOnly:  "BEGIN DEFERRED",
}

// sqlConn is a pinned pool connection. mu serializes every round trip on it,
// including the change-counter reads that bracket a query.
type sqlConn struct {
	db   *SQLDatabase
	conn *sqlx.Conn
	mu   sync.Mutex

	inTx atomic.Bool

	extMu      sync.Mutex
	extEnabled bool
}

func (c *sqlConn) Prepare(ctx context.Context, query string) (Stmt, error) {
	c.mu.Lock()
	stmt, err := c.conn.PreparexContext(ctx, query)
	c.mu.Unlock()
	if err != nil {
		return nil, types.WrapError(types.KindEngine, err)
	}
	return &sqlStmt{conn: c, stmt: stmt, query: query}, nil
}

// ExecuteBatch hands the whole script to the driver in one call. Whether a
// failing statement rolls back the ones before it is up to the engine.
func (c *sqlConn) ExecuteBatch(ctx context.Context, script string) error {
	c.mu.Lock()
	_, err := c.conn.ExecContext(ctx, script)
	c.mu.Unlock()
	if err != nil {
		return types.WrapError(types.KindEngine, err)
	}
	return c.wrote(ctx)
}

func (c *sqlConn) Begin(ctx context.Context, behavior types.TransactionBehavior) (Tx, error) {
	behavior, err := behavior.Normalize()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.ExecContext(ctx, beginStatements[behavior]); err != nil {
		return nil, types.WrapError(types.KindEngine, err)
	}
	tx := &sqlTx{conn: c, readOnly: behavior == types.BehaviorReadOnly}
	if tx.readOnly {
		// A connection opened read-only already has query_only set and keeps it.
		var queryOnly int64
		_ = c.conn.QueryRowxContext(ctx, "PRAGMA query_only").Scan(&queryOnly)
		if queryOnly == 0 {
			if _, err := c.conn.ExecContext(ctx, "PRAGMA query_only = 1"); err != nil {
				_, _ = c.conn.ExecContext(ctx, "ROLLBACK")
				return nil, types.WrapError(types.KindEngine, err)
			}
			tx.restoreQueryOnly = true
		}
	}
	c.inTx.Store(true)
	return tx, nil
}

func (c *sqlConn) EnableExtensions(ctx context.Context) error {
	return c.setExtensions(ctx, true)
}

func (c *sqlConn) DisableExtensions(ctx context.Context) error {
	return c.setExtensions(ctx, false)
}

func (c *sqlConn) setExtensions(ctx context.Context, enabled bool) error {
	if c.db.loader == nil {
		return types.NewError(types.KindExtension, "extension loading is not supported by %s databases", c.db.variant)
	}
	c.extMu.Lock()
	defer c.extMu.Unlock()
	if c.db.toggle != nil {
		c.mu.Lock()
		err := c.db.toggle(ctx, c.conn, enabled)
		c.mu.Unlock()
		if err != nil {
			return types.WrapError(types.KindExtension, err)
		}
	}
	c.extEnabled = enabled
	return nil
}

func (c *sqlConn) LoadExtension(ctx context.Context, path, entryPoint string) error {
	if c.db.loader == nil {
		return types.NewError(types.KindExtension, "extension loading is not supported by %s databases", c.db.variant)
	}
	c.extMu.Lock()
	enabled := c.extEnabled
	c.extMu.Unlock()
	if !enabled {
		return types.NewError(types.KindExtension, "extension loading is disabled on this connection")
	}
	c.mu.Lock()
	err := c.db.loader(ctx, c.conn, path, entryPoint)
	c.mu.Unlock()
	if err != nil {
		return types.WrapError(types.KindExtension, err)
	}
	return nil
}

func (c *sqlConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.WrapError(types.KindEngine, c.conn.Close())
}

// counters reads the connection-wide change counter and last rowid. Callers
// hold mu.
func (c *sqlConn) counters(ctx context.Context) (changes int64, rowid int64, err error) {
	row := c.conn.QueryRowxContext(ctx, "SELECT total_changes(), last_insert_rowid()")
	if err := row.Scan(&changes, &rowid); err != nil {
		return 0, 0, fmt.Errorf("read change counters: %w", err)
	}
	return changes, rowid, nil
}

// query runs fn, drains its rows and fills in the change counters. The
// counters are best effort: engines that cannot report them leave zeros.
func (c *sqlConn) query(ctx context.Context, fn func() (*sqlx.Rows, error)) (types.QueryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before, _, counterErr := c.counters(ctx)

	rows, err := fn()
	if err != nil {
		return types.QueryResult{}, types.WrapError(types.KindEngine, err)
	}
	result, err := Materialize(rows)
	if err != nil {
		return types.QueryResult{}, types.WrapError(types.KindEngine, err)
	}

	if counterErr == nil {
		if after, rowid, err := c.counters(ctx); err == nil {
			if after > before {
				result.RowsAffected = uint64(after - before)
			}
			result.LastInsertRowID = rowid
		}
	}
	return result, nil
}

// wrote runs the write hook unless the write happened inside a transaction,
// in which case the commit runs it.
func (c *sqlConn) wrote(ctx context.Context) error {
	if c.inTx.Load() {
		return nil
	}
	return c.db.afterWrite(ctx)
}

// exec runs a statement that returns no rows.
func (c *sqlConn) exec(fn func() (sql.Result, error)) (types.ExecuteResult, error) {
	c.mu.Lock()
	res, err := fn()
	c.mu.Unlock()
	if err != nil {
		return types.ExecuteResult{}, types.WrapError(types.KindEngine, err)
	}
	affected, _ := res.RowsAffected()
	return executeResult(affected), nil
}

// executeResult clamps negative counts to zero.
func executeResult(affected int64) types.ExecuteResult {
	if affected < 0 {
		affected = 0
	}
	return types.ExecuteResult{RowsAffected: uint64(affected)}
}
