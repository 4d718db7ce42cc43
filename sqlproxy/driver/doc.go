// Package driver implements a database/sql driver for code running on the
// guest side of the bridge, typically a WASI module.
//
// Every driver call becomes a bridge request handled by the host's handle
// registries, so the guest can use *sql.DB, sqlx or gorm without holding any
// native database object itself.
//
// Usage:
//
//  1. Install the bridge function with client.SetHostHandler (the wasi/guest
//     package does this when compiled for wasip1).
//
//  2. Import the driver package. This registers the driver as "libsqlproxy".
//
//     import _ "github.com/tomyedwab/libsqlshim/sqlproxy/driver"
//
//  3. Open a database. The DSN is either a database URL or a JSON encoded
//     ConnectArgs document:
//
//     db, err := sql.Open("libsqlproxy", `{"url":"app.db","open_flags":"create"}`)
//
// Each pooled database/sql connection is its own host connection. Pools over
// ":memory:" should call db.SetMaxOpenConns(1) to keep seeing one database.
//
// Transactions are opened on the host connection itself, so queries issued on
// a *sql.Tx use the same host connection as the transaction. The driver
// implements driver.Conn, driver.ConnBeginTx, driver.ExecerContext,
// driver.QueryerContext, driver.Stmt, driver.Tx, driver.Result and
// driver.Rows. Rows are fully buffered by the host before they are returned.
package driver
