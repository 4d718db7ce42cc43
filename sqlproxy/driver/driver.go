package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/libsqlshim/sqlproxy/client"
	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// DriverName is the name the driver registers with database/sql.
const DriverName = "libsqlproxy"

func init() {
	sql.Register(DriverName, &Driver{})
	// Named queries through sqlx compile to "?" placeholders.
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

// ParseDSN accepts either a ConnectArgs JSON document or a bare database URL.
func ParseDSN(dsn string) (types.ConnectArgs, error) {
	trimmed := strings.TrimSpace(dsn)
	if strings.HasPrefix(trimmed, "{") {
		var args types.ConnectArgs
		if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
			return types.ConnectArgs{}, types.NewError(types.KindConnect, "invalid DSN: %v", err)
		}
		return args, nil
	}
	return types.ConnectArgs{URL: trimmed}, nil
}

// --- Driver implementation ---

// Driver is the database/sql driver for the bridge.
type Driver struct{}

// Open connects to the database named by dsn. Each pooled connection is a
// separate host connection, so ":memory:" pools should be limited to one
// open connection.
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	args, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := client.Connect(args)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn}, nil
}

// --- Connection implementation ---

// Conn implements driver.Conn on top of a host connection. Transactions on
// the host share the connection, so statements and direct queries issued
// while a transaction is open run inside it.
type Conn struct {
	conn *client.Connection
	tx   *client.Transaction
}

var (
	_ driver.Conn               = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.ConnPrepareContext = (*Conn)(nil)
)

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *Conn) PrepareContext(_ context.Context, query string) (driver.Stmt, error) {
	stmt, err := c.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &Stmt{conn: c, stmt: stmt, query: query}, nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *Conn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.tx != nil {
		return nil, fmt.Errorf("libsqlproxy: transaction already active on this connection (TxID: %s)", c.tx.ID)
	}
	if sql.IsolationLevel(opts.Isolation) != sql.LevelDefault && sql.IsolationLevel(opts.Isolation) != sql.LevelSerializable {
		return nil, fmt.Errorf("libsqlproxy: unsupported isolation level %s", sql.IsolationLevel(opts.Isolation))
	}
	behavior := types.BehaviorDeferred
	if opts.ReadOnly {
		behavior = types.BehaviorReadOnly
	}
	tx, err := c.conn.Transaction(behavior)
	if err != nil {
		return nil, err
	}
	c.tx = tx
	return &Tx{conn: c, tx: tx}, nil
}

func (c *Conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	params, err := namedValuesToParams(query, args)
	if err != nil {
		return nil, err
	}
	res, err := c.conn.Execute(query, params)
	if err != nil {
		return nil, err
	}
	return &Result{conn: c, rowsAffected: int64(res.RowsAffected)}, nil
}

func (c *Conn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	params, err := namedValuesToParams(query, args)
	if err != nil {
		return nil, err
	}
	result, err := c.conn.Query(query, params)
	if err != nil {
		return nil, err
	}
	return &Rows{result: result}, nil
}

// --- Statement implementation ---

// Stmt implements driver.Stmt on top of a host statement.
type Stmt struct {
	conn  *Conn
	stmt  *client.Statement
	query string
}

var (
	_ driver.StmtExecContext  = (*Stmt)(nil)
	_ driver.StmtQueryContext = (*Stmt)(nil)
)

func (s *Stmt) Close() error {
	return s.stmt.Finalize()
}

// NumInput returns -1; the engine checks the placeholder count.
func (s *Stmt) NumInput() int {
	return -1
}

func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), valuesToNamed(args))
}

func (s *Stmt) ExecContext(_ context.Context, args []driver.NamedValue) (driver.Result, error) {
	params, err := namedValuesToParams(s.query, args)
	if err != nil {
		return nil, err
	}
	res, err := s.stmt.Execute(params)
	if err != nil {
		return nil, err
	}
	return &Result{conn: s.conn, rowsAffected: int64(res.RowsAffected)}, nil
}

func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), valuesToNamed(args))
}

func (s *Stmt) QueryContext(_ context.Context, args []driver.NamedValue) (driver.Rows, error) {
	params, err := namedValuesToParams(s.query, args)
	if err != nil {
		return nil, err
	}
	result, err := s.stmt.Query(params)
	if err != nil {
		return nil, err
	}
	return &Rows{result: result}, nil
}

// --- Transaction implementation ---

// Tx implements driver.Tx. Both terminators release the connection's
// transaction slot whatever the host answers.
type Tx struct {
	conn *Conn
	tx   *client.Transaction
}

func (t *Tx) Commit() error {
	t.conn.tx = nil
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	t.conn.tx = nil
	return t.tx.Rollback()
}

// --- Result implementation ---

// Result implements driver.Result. The last insert rowid is fetched from the
// host on demand since most callers never ask for it.
type Result struct {
	conn         *Conn
	rowsAffected int64
}

func (r *Result) LastInsertId() (int64, error) {
	result, err := r.conn.conn.Query("SELECT last_insert_rowid()", nil)
	if err != nil {
		return 0, err
	}
	if len(result.Rows) != 1 || len(result.Rows[0]) != 1 {
		return 0, fmt.Errorf("libsqlproxy: unexpected last_insert_rowid() result")
	}
	return result.Rows[0][0].Integer, nil
}

func (r *Result) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// --- Rows implementation ---

// Rows implements driver.Rows over a fully buffered QueryResult.
type Rows struct {
	result types.QueryResult
	next   int
}

func (r *Rows) Columns() []string {
	return r.result.Columns
}

func (r *Rows) Close() error {
	r.result.Rows = nil
	r.next = 0
	return nil
}

func (r *Rows) Next(dest []driver.Value) error {
	if r.next >= len(r.result.Rows) {
		return io.EOF
	}
	row := r.result.Rows[r.next]
	r.next++
	for i := range dest {
		dest[i] = nil
		if i < len(row) {
			dest[i] = row[i].Any()
		}
	}
	return nil
}

// --- Argument conversion ---

func valuesToNamed(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}

// namedValuesToParams binds by name when every argument is named (sql.Named)
// and by position when none is. sql.Named carries no sigil, so each name takes
// the one query uses for it.
func namedValuesToParams(query string, args []driver.NamedValue) (*types.Params, error) {
	if len(args) == 0 {
		return nil, nil
	}
	var (
		named map[string]types.Value
		slots types.Placeholders
	)
	positional := make([]driver.NamedValue, 0, len(args))
	for _, arg := range args {
		if arg.Name == "" {
			positional = append(positional, arg)
			continue
		}
		if named == nil {
			named = make(map[string]types.Value)
			slots = types.ScanPlaceholders(query)
		}
		named[sigilFor(slots, arg.Name)] = types.ValueOf(arg.Value)
	}
	if named != nil && len(positional) > 0 {
		return nil, types.NewError(types.KindBind, "cannot mix named and positional arguments")
	}
	if named != nil {
		return types.NamedParams(named), nil
	}
	sort.Slice(positional, func(i, j int) bool { return positional[i].Ordinal < positional[j].Ordinal })
	values := make([]types.Value, len(positional))
	for i, arg := range positional {
		values[i] = types.ValueOf(arg.Value)
	}
	return types.PositionalParams(values...), nil
}

func sigilFor(slots types.Placeholders, name string) string {
	for _, sigil := range []string{":", "@", "$"} {
		if _, ok := slots.Index[sigil+name]; ok {
			return sigil + name
		}
	}
	return ":" + name
}
