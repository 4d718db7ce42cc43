package host

import (
	"context"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// LibsqlTransaction is the handle returned by LibsqlConnection.Transaction.
// Commit and Rollback consume it.
type LibsqlTransaction struct {
	TransactionID string `json:"tx_id"`
}

func (t LibsqlTransaction) Query(ctx context.Context, sql string, params *types.Params) (types.QueryResult, error) {
	entry, err := lookupTransaction(t.TransactionID)
	if err != nil {
		return types.QueryResult{}, err
	}
	return entry.tx.Query(ctx, sql, params)
}

func (t LibsqlTransaction) Execute(ctx context.Context, sql string, params *types.Params) (types.ExecuteResult, error) {
	entry, err := lookupTransaction(t.TransactionID)
	if err != nil {
		return types.ExecuteResult{}, err
	}
	return entry.tx.Execute(ctx, sql, params)
}

// Commit removes the handle before talking to the engine, so the ID is gone
// even when the commit itself fails.
func (t LibsqlTransaction) Commit(ctx context.Context) error {
	entry, err := t.take()
	if err != nil {
		return err
	}
	return entry.tx.Commit(ctx)
}

func (t LibsqlTransaction) Rollback(ctx context.Context) error {
	entry, err := t.take()
	if err != nil {
		return err
	}
	return entry.tx.Rollback(ctx)
}

func (t LibsqlTransaction) take() (*transactionEntry, error) {
	entry, err := transactions.Remove(t.TransactionID)
	if err != nil {
		return nil, err
	}
	if !databases.Exists(entry.dbID) {
		return nil, ownerGone("transaction", t.TransactionID)
	}
	return entry, nil
}
