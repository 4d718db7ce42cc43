package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// SQLHost decodes bridge requests and dispatches them onto the connection,
// statement and transaction façades. All handles live in the process-wide
// registries, so every SQLHost sees the same connections.
type SQLHost struct{}

// NewSQLHost creates a new SQLHost instance.
func NewSQLHost() *SQLHost {
	return &SQLHost{}
}

// HandleRequest processes a raw request payload and returns a raw response
// payload. Operational failures travel inside the response; the returned
// error is only set when the response itself could not be encoded.
func (h *SQLHost) HandleRequest(ctx context.Context, requestPayload []byte) ([]byte, error) {
	var req types.Request
	if err := json.Unmarshal(requestPayload, &req); err != nil {
		return marshalErrorResponse(types.NewError(types.KindEngine, "failed to unmarshal request: %v", err))
	}

	resp, err := h.dispatch(ctx, &req)
	if err != nil {
		return marshalErrorResponse(err)
	}
	return json.Marshal(resp)
}

func marshalErrorResponse(opErr error) ([]byte, error) {
	payload, err := json.Marshal(types.ErrorResponse(opErr))
	if err != nil {
		return []byte(`{"error":{"kind":"engine","message":"failed to marshal error response"}}`),
			fmt.Errorf("failed to marshal error response for %q: %w", opErr.Error(), err)
	}
	return payload, nil
}

func (h *SQLHost) dispatch(ctx context.Context, req *types.Request) (types.Response, error) {
	conn := LibsqlConnection{DBID: req.DBID}
	stmt := LibsqlStatement{StatementID: req.StmtID}
	tx := LibsqlTransaction{TransactionID: req.TxID}

	switch req.Command {
	case types.CmdConnect:
		if req.Connect == nil {
			return types.Response{}, types.NewError(types.KindConnect, "missing connect arguments")
		}
		conn, err := Connect(ctx, *req.Connect)
		return types.Response{DBID: conn.DBID}, err
	case types.CmdSync:
		return types.Response{}, conn.Sync(ctx)
	case types.CmdPrepare:
		stmt, err := conn.Prepare(ctx, req.SQL)
		return types.Response{StmtID: stmt.StatementID}, err
	case types.CmdQuery:
		return queryResponse(conn.Query(ctx, req.SQL, req.Params))
	case types.CmdExecute:
		return executeResponse(conn.Execute(ctx, req.SQL, req.Params))
	case types.CmdBatch:
		return types.Response{}, conn.Batch(ctx, req.SQL)
	case types.CmdTransaction:
		tx, err := conn.Transaction(ctx, req.Behavior)
		return types.Response{TxID: tx.TransactionID}, err
	case types.CmdEnableExtension:
		return types.Response{}, conn.EnableExtension(ctx)
	case types.CmdDisableExtension:
		return types.Response{}, conn.DisableExtension(ctx)
	case types.CmdLoadExtension:
		return types.Response{}, conn.LoadExtension(ctx, req.Path, req.EntryPoint)
	case types.CmdClose:
		return types.Response{}, conn.Close(ctx)

	case types.CmdStmtQuery:
		return queryResponse(stmt.Query(ctx, req.Params))
	case types.CmdStmtExecute:
		return executeResponse(stmt.Execute(ctx, req.Params))
	case types.CmdStmtReset:
		return types.Response{}, stmt.Reset(ctx)
	case types.CmdStmtFinalize:
		return types.Response{}, stmt.Finalize(ctx)

	case types.CmdTxQuery:
		return queryResponse(tx.Query(ctx, req.SQL, req.Params))
	case types.CmdTxExecute:
		return executeResponse(tx.Execute(ctx, req.SQL, req.Params))
	case types.CmdTxCommit:
		return types.Response{}, tx.Commit(ctx)
	case types.CmdTxRollback:
		return types.Response{}, tx.Rollback(ctx)
	}
	return types.Response{}, types.NewError(types.KindEngine, "unknown command: %s", req.Command)
}

func queryResponse(result types.QueryResult, err error) (types.Response, error) {
	if err != nil {
		return types.Response{}, err
	}
	return types.Response{Query: &result}, nil
}

func executeResponse(result types.ExecuteResult, err error) (types.Response, error) {
	if err != nil {
		return types.Response{}, err
	}
	return types.Response{Execute: &result}, nil
}
