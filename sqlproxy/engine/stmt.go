package engine

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

type sqlStmt struct {
	conn      *sqlConn
	stmt      *sqlx.Stmt
	query     string
	finalized atomic.Bool
}

func (s *sqlStmt) Query(ctx context.Context, params *types.Params) (types.QueryResult, error) {
	args, err := s.args(params)
	if err != nil {
		return types.QueryResult{}, err
	}
	result, err := s.conn.query(ctx, func() (*sqlx.Rows, error) {
		return s.stmt.QueryxContext(ctx, args...)
	})
	if err != nil {
		return types.QueryResult{}, err
	}
	// INSERT ... RETURNING and friends write through the query path.
	if result.RowsAffected > 0 {
		if err := s.conn.wrote(ctx); err != nil {
			return types.QueryResult{}, err
		}
	}
	return result, nil
}

func (s *sqlStmt) Execute(ctx context.Context, params *types.Params) (types.ExecuteResult, error) {
	args, err := s.args(params)
	if err != nil {
		return types.ExecuteResult{}, err
	}
	result, err := s.conn.exec(func() (sql.Result, error) {
		return s.stmt.ExecContext(ctx, args...)
	})
	if err != nil {
		return types.ExecuteResult{}, err
	}
	if err := s.conn.wrote(ctx); err != nil {
		return types.ExecuteResult{}, err
	}
	return result, nil
}

// Reset only checks the statement is still usable. database/sql binds fresh
// arguments and resets the driver statement on every execution, so there is
// no cursor or binding left over between calls.
func (s *sqlStmt) Reset(ctx context.Context) error {
	if s.finalized.Load() {
		return types.NewError(types.KindHandleGone, "statement already finalized")
	}
	return nil
}

func (s *sqlStmt) Finalize() error {
	if !s.finalized.CompareAndSwap(false, true) {
		return nil
	}
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return types.WrapError(types.KindEngine, s.stmt.Close())
}

func (s *sqlStmt) args(params *types.Params) ([]any, error) {
	if s.finalized.Load() {
		return nil, types.NewError(types.KindHandleGone, "statement already finalized")
	}
	return params.Args(s.query)
}
