package host

import (
	"context"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// LibsqlStatement is the handle returned by LibsqlConnection.Prepare.
type LibsqlStatement struct {
	StatementID string `json:"stmt_id"`
}

func (s LibsqlStatement) Query(ctx context.Context, params *types.Params) (types.QueryResult, error) {
	entry, err := lookupStatement(s.StatementID)
	if err != nil {
		return types.QueryResult{}, err
	}
	return entry.stmt.Query(ctx, params)
}

// Execute returns the number of rows the statement changed.
func (s LibsqlStatement) Execute(ctx context.Context, params *types.Params) (types.ExecuteResult, error) {
	entry, err := lookupStatement(s.StatementID)
	if err != nil {
		return types.ExecuteResult{}, err
	}
	return entry.stmt.Execute(ctx, params)
}

func (s LibsqlStatement) Reset(ctx context.Context) error {
	entry, err := lookupStatement(s.StatementID)
	if err != nil {
		return err
	}
	return entry.stmt.Reset(ctx)
}

// Finalize releases the statement. A second Finalize fails with HandleGone.
func (s LibsqlStatement) Finalize(ctx context.Context) error {
	entry, err := statements.Remove(s.StatementID)
	if err != nil {
		return err
	}
	return entry.stmt.Finalize()
}
