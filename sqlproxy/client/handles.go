package client

import (
	"errors"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// Connection is a connected database on the host.
type Connection struct {
	ID string
}

// Connect asks the host to open the database described by args.
func Connect(args types.ConnectArgs) (*Connection, error) {
	resp, err := call(types.Request{Command: types.CmdConnect, Connect: &args})
	if err != nil {
		return nil, err
	}
	if resp.DBID == "" {
		return nil, errors.New("libsql: host did not return a connection ID")
	}
	return &Connection{ID: resp.DBID}, nil
}

func (c *Connection) Sync() error {
	_, err := call(types.Request{Command: types.CmdSync, DBID: c.ID})
	return err
}

func (c *Connection) Prepare(sql string) (*Statement, error) {
	resp, err := call(types.Request{Command: types.CmdPrepare, DBID: c.ID, SQL: sql})
	if err != nil {
		return nil, err
	}
	if resp.StmtID == "" {
		return nil, errors.New("libsql: host did not return a statement ID")
	}
	return &Statement{ID: resp.StmtID}, nil
}

func (c *Connection) Query(sql string, params *types.Params) (types.QueryResult, error) {
	return queryResult(call(types.Request{Command: types.CmdQuery, DBID: c.ID, SQL: sql, Params: params}))
}

func (c *Connection) Execute(sql string, params *types.Params) (types.ExecuteResult, error) {
	return executeResult(call(types.Request{Command: types.CmdExecute, DBID: c.ID, SQL: sql, Params: params}))
}

func (c *Connection) Batch(sql string) error {
	_, err := call(types.Request{Command: types.CmdBatch, DBID: c.ID, SQL: sql})
	return err
}

func (c *Connection) Transaction(behavior types.TransactionBehavior) (*Transaction, error) {
	resp, err := call(types.Request{Command: types.CmdTransaction, DBID: c.ID, Behavior: behavior})
	if err != nil {
		return nil, err
	}
	if resp.TxID == "" {
		return nil, errors.New("libsql: host did not return a transaction ID")
	}
	return &Transaction{ID: resp.TxID}, nil
}

func (c *Connection) EnableExtension() error {
	_, err := call(types.Request{Command: types.CmdEnableExtension, DBID: c.ID})
	return err
}

func (c *Connection) DisableExtension() error {
	_, err := call(types.Request{Command: types.CmdDisableExtension, DBID: c.ID})
	return err
}

func (c *Connection) LoadExtension(path, entryPoint string) error {
	_, err := call(types.Request{Command: types.CmdLoadExtension, DBID: c.ID, Path: path, EntryPoint: entryPoint})
	return err
}

func (c *Connection) Close() error {
	_, err := call(types.Request{Command: types.CmdClose, DBID: c.ID})
	return err
}

// Statement is a prepared statement registered on the host.
type Statement struct {
	ID string
}

func (s *Statement) Query(params *types.Params) (types.QueryResult, error) {
	return queryResult(call(types.Request{Command: types.CmdStmtQuery, StmtID: s.ID, Params: params}))
}

func (s *Statement) Execute(params *types.Params) (types.ExecuteResult, error) {
	return executeResult(call(types.Request{Command: types.CmdStmtExecute, StmtID: s.ID, Params: params}))
}

func (s *Statement) Reset() error {
	_, err := call(types.Request{Command: types.CmdStmtReset, StmtID: s.ID})
	return err
}

func (s *Statement) Finalize() error {
	_, err := call(types.Request{Command: types.CmdStmtFinalize, StmtID: s.ID})
	return err
}

// Transaction is an open transaction on the host. Commit and Rollback
// consume it.
type Transaction struct {
	ID string
}

func (t *Transaction) Query(sql string, params *types.Params) (types.QueryResult, error) {
	return queryResult(call(types.Request{Command: types.CmdTxQuery, TxID: t.ID, SQL: sql, Params: params}))
}

func (t *Transaction) Execute(sql string, params *types.Params) (types.ExecuteResult, error) {
	return executeResult(call(types.Request{Command: types.CmdTxExecute, TxID: t.ID, SQL: sql, Params: params}))
}

func (t *Transaction) Commit() error {
	_, err := call(types.Request{Command: types.CmdTxCommit, TxID: t.ID})
	return err
}

func (t *Transaction) Rollback() error {
	_, err := call(types.Request{Command: types.CmdTxRollback, TxID: t.ID})
	return err
}
