package types

// --- Result shapes returned by every façade ---

// QueryResult holds a fully drained cursor. Every row has exactly
// len(Columns) cells.
type QueryResult struct {
	Columns         []string  `json:"columns"`
	Rows            [][]Value `json:"rows"`
	RowsAffected    uint64    `json:"rows_affected"`
	LastInsertRowID int64     `json:"last_insert_rowid"`
}

// ExecuteResult is the outcome of a statement that does not return rows.
type ExecuteResult struct {
	RowsAffected uint64 `json:"rows_affected"`
}

// --- JSON structures for bridge communication ---

// Bridge commands understood by the host.
const (
	CmdConnect          = "connect"
	CmdSync             = "sync"
	CmdPrepare          = "prepare"
	CmdQuery            = "query"
	CmdExecute          = "execute"
	CmdBatch            = "batch"
	CmdTransaction      = "transaction"
	CmdEnableExtension  = "enable_extension"
	CmdDisableExtension = "disable_extension"
	CmdLoadExtension    = "load_extension"
	CmdClose            = "close"
	CmdStmtQuery        = "stmt_query"
	CmdStmtExecute      = "stmt_execute"
	CmdStmtReset        = "stmt_reset"
	CmdStmtFinalize     = "stmt_finalize"
	CmdTxQuery          = "tx_query"
	CmdTxExecute        = "tx_execute"
	CmdTxCommit         = "tx_commit"
	CmdTxRollback       = "tx_rollback"
)

// Request is a single bridge call. Which fields are read depends on Command.
type Request struct {
	Command    string              `json:"command"`
	DBID       string              `json:"db_id,omitempty"`
	StmtID     string              `json:"stmt_id,omitempty"`
	TxID       string              `json:"tx_id,omitempty"`
	SQL        string              `json:"sql,omitempty"`
	Params     *Params             `json:"params,omitempty"`
	Behavior   TransactionBehavior `json:"behavior,omitempty"`
	Path       string              `json:"path,omitempty"`
	EntryPoint string              `json:"entry_point,omitempty"`
	Connect    *ConnectArgs        `json:"connect,omitempty"`
}

// WireError is the serialized form of an *Error.
type WireError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Response is the reply to a Request. Error is set on failure and every
// other field is then empty.
type Response struct {
	DBID    string         `json:"db_id,omitempty"`
	StmtID  string         `json:"stmt_id,omitempty"`
	TxID    string         `json:"tx_id,omitempty"`
	Query   *QueryResult   `json:"query,omitempty"`
	Execute *ExecuteResult `json:"execute,omitempty"`
	Error   *WireError     `json:"error,omitempty"`
}

// Err converts the wire error back into an *Error, or nil.
func (r *Response) Err() error {
	if r.Error == nil {
		return nil
	}
	kind := r.Error.Kind
	if _, ok := kindSentinels[kind]; !ok {
		kind = KindEngine
	}
	return &Error{Kind: kind, Message: r.Error.Message}
}

// ErrorResponse builds the response for a failed call.
func ErrorResponse(err error) Response {
	return Response{Error: &WireError{Kind: KindOf(err), Message: MessageOf(err)}}
}
