package connector

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// sqliteDriverName is go-sqlite3 with cells returned exactly as stored and a
// per-connection gate on the load_extension() SQL function.
const sqliteDriverName = "sqlite3_libsqlshim"

const defaultEntryPoint = "sqlite3_extension_init"

func init() {
	sql.Register(sqliteDriverName, &sqliteDriver{})
}

type sqliteDriver struct {
	sqlite3.SQLiteDriver
}

func (d *sqliteDriver) Open(dsn string) (driver.Conn, error) {
	conn, err := d.SQLiteDriver.Open(dsn)
	if err != nil {
		return nil, err
	}
	c := &sqliteConn{SQLiteConn: conn.(*sqlite3.SQLiteConn)}
	if err := c.registerLoadExtension(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

type sqliteConn struct {
	*sqlite3.SQLiteConn
	extensions atomic.Bool
}

// registerLoadExtension replaces SQLite's load_extension() so that it follows
// EnableExtensions rather than the engine's own load flag, which go-sqlite3
// only raises for the duration of a LoadExtension call.
func (c *sqliteConn) registerLoadExtension() error {
	if err := c.RegisterFunc("load_extension", func(path string) (any, error) {
		return nil, c.loadExtension(path, "")
	}, false); err != nil {
		return err
	}
	return c.RegisterFunc("load_extension", func(path, entryPoint string) (any, error) {
		return nil, c.loadExtension(path, entryPoint)
	}, false)
}

func (c *sqliteConn) loadExtension(path, entryPoint string) error {
	if !c.extensions.Load() {
		return errors.New("not authorized")
	}
	return loadWithFallback(c.SQLiteConn, path, entryPoint)
}

func (c *sqliteConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	return storedRows(c.SQLiteConn.Query(query, args))
}

func (c *sqliteConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return storedRows(c.SQLiteConn.QueryContext(ctx, query, args))
}

func (c *sqliteConn) Prepare(query string) (driver.Stmt, error) {
	return wrapStmt(c.SQLiteConn.Prepare(query))
}

func (c *sqliteConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	return wrapStmt(c.SQLiteConn.PrepareContext(ctx, query))
}

type sqliteStmt struct {
	*sqlite3.SQLiteStmt
}

func wrapStmt(stmt driver.Stmt, err error) (driver.Stmt, error) {
	if err != nil {
		return nil, err
	}
	return &sqliteStmt{SQLiteStmt: stmt.(*sqlite3.SQLiteStmt)}, nil
}

func (s *sqliteStmt) Query(args []driver.Value) (driver.Rows, error) {
	return storedRows(s.SQLiteStmt.Query(args))
}

func (s *sqliteStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return storedRows(s.SQLiteStmt.QueryContext(ctx, args))
}

// storedRows blanks the declared column types go-sqlite3 keys its conversions
// on, so BOOLEAN and DATE/DATETIME/TIMESTAMP columns yield the stored integer
// or text instead of a bool or time.Time.
func storedRows(rows driver.Rows, err error) (driver.Rows, error) {
	if err != nil {
		return rows, err
	}
	if sr, ok := rows.(*sqlite3.SQLiteRows); ok {
		decltypes := sr.DeclTypes()
		for i := range decltypes {
			decltypes[i] = ""
		}
	}
	return rows, nil
}

// fallbackEntryPoint derives the entry point SQLite tries after
// sqlite3_extension_init: "sqlite3_" + the lowercased letters of the file
// name up to its first '.', minus any "lib" prefix, + "_init".
func fallbackEntryPoint(path string) string {
	base := path[strings.LastIndexByte(path, '/')+1:]
	if len(base) >= 3 && strings.EqualFold(base[:3], "lib") {
		base = base[3:]
	}
	var name strings.Builder
	for i := 0; i < len(base) && base[i] != '.'; i++ {
		c := base[i]
		switch {
		case c >= 'a' && c <= 'z':
			name.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			name.WriteByte(c + ('a' - 'A'))
		}
	}
	return "sqlite3_" + name.String() + "_init"
}

// loadWithFallback loads path with entryPoint. go-sqlite3 always passes an
// entry point to SQLite, so when none is given both names SQLite would try
// are attempted here.
func loadWithFallback(conn *sqlite3.SQLiteConn, path, entryPoint string) error {
	if entryPoint != "" {
		return conn.LoadExtension(path, entryPoint)
	}
	err := conn.LoadExtension(path, defaultEntryPoint)
	if err == nil {
		return nil
	}
	if fallback := fallbackEntryPoint(path); fallback != defaultEntryPoint {
		if err := conn.LoadExtension(path, fallback); err == nil {
			return nil
		}
	}
	return err
}

func rawSQLite(conn *sqlx.Conn, fn func(*sqliteConn) error) error {
	return conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*sqliteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		return fn(sc)
	})
}

// loadSQLiteExtension loads through the C API. It does not depend on the
// load_extension() gate; the engine checks EnableExtensions before calling.
func loadSQLiteExtension(ctx context.Context, conn *sqlx.Conn, path, entryPoint string) error {
	return rawSQLite(conn, func(sc *sqliteConn) error {
		return loadWithFallback(sc.SQLiteConn, path, entryPoint)
	})
}

func toggleSQLiteExtensions(ctx context.Context, conn *sqlx.Conn, enabled bool) error {
	return rawSQLite(conn, func(sc *sqliteConn) error {
		sc.extensions.Store(enabled)
		return nil
	})
}
