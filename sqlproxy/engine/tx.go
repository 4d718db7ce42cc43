package engine

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// sqlTx is a transaction opened with a plain BEGIN on the pinned connection.
// Every statement it runs goes through the same connection.
type sqlTx struct {
	conn     *sqlConn
	readOnly bool
	done     atomic.Bool

	restoreQueryOnly bool
}

func (t *sqlTx) Query(ctx context.Context, query string, params *types.Params) (types.QueryResult, error) {
	args, err := t.args(query, params)
	if err != nil {
		return types.QueryResult{}, err
	}
	return t.conn.query(ctx, func() (*sqlx.Rows, error) {
		return t.conn.conn.QueryxContext(ctx, query, args...)
	})
}

func (t *sqlTx) Execute(ctx context.Context, query string, params *types.Params) (types.ExecuteResult, error) {
	args, err := t.args(query, params)
	if err != nil {
		return types.ExecuteResult{}, err
	}
	return t.conn.exec(func() (sql.Result, error) {
		return t.conn.conn.ExecContext(ctx, query, args...)
	})
}

func (t *sqlTx) Commit(ctx context.Context) error {
	if err := t.end(ctx, "COMMIT"); err != nil {
		return err
	}
	if t.readOnly {
		return nil
	}
	return t.conn.db.afterWrite(ctx)
}

func (t *sqlTx) Rollback(ctx context.Context) error {
	return t.end(ctx, "ROLLBACK")
}

// end issues the terminator once. A failed COMMIT leaves SQLite inside the
// transaction, so it is rolled back to keep the connection usable.
func (t *sqlTx) end(ctx context.Context, stmt string) error {
	if !t.done.CompareAndSwap(false, true) {
		return types.NewError(types.KindHandleGone, "transaction already finished")
	}
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	_, err := t.conn.conn.ExecContext(ctx, stmt)
	if err != nil && stmt == "COMMIT" {
		_, _ = t.conn.conn.ExecContext(ctx, "ROLLBACK")
	}
	if t.restoreQueryOnly {
		_, _ = t.conn.conn.ExecContext(ctx, "PRAGMA query_only = 0")
	}
	t.conn.inTx.Store(false)
	return types.WrapError(types.KindEngine, err)
}

func (t *sqlTx) args(query string, params *types.Params) ([]any, error) {
	if t.done.Load() {
		return nil, types.NewError(types.KindHandleGone, "transaction already finished")
	}
	return params.Args(query)
}
