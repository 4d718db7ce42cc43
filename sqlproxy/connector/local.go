package connector

import (
	"context"
	"database/sql"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/libsqlshim/sqlproxy/engine"
	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

var openModes = map[types.OpenFlags]string{
	types.OpenReadOnly:  "ro",
	types.OpenReadWrite: "rw",
	types.OpenCreate:    "rwc",
}

// localDSN builds a go-sqlite3 DSN. File paths become URI filenames so that
// the open mode can be passed through to SQLite.
func localDSN(path string, flags types.OpenFlags) string {
	query := url.Values{}
	query.Set("_busy_timeout", strconv.Itoa(busyTimeoutMs))
	if path == ":memory:" {
		return path + "?" + query.Encode()
	}
	if mode, ok := openModes[flags]; ok {
		query.Set("mode", mode)
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + query.Encode()
	}
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + query.Encode()
}

func openLocal(args types.ConnectArgs) (*engine.SQLDatabase, error) {
	db, err := sql.Open(sqliteDriverName, localDSN(args.URL, args.OpenFlags))
	if err != nil {
		return nil, err
	}
	return engine.NewSQLDatabase(db, "sqlite3", types.VariantLocal,
		engine.WithExtensionLoader(loadSQLiteExtension),
		engine.WithExtensionToggle(toggleSQLiteExtensions),
		engine.WithConnectHook(pingConn),
	), nil
}

// pingConn surfaces open failures (missing file in read-only mode, bad
// permissions) at connect time.
func pingConn(ctx context.Context, conn *sqlx.Conn) error {
	return conn.PingContext(ctx)
}
