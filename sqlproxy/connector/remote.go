package connector

import (
	"database/sql"

	"github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/tomyedwab/libsqlshim/sqlproxy/engine"
	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// openRemote talks to a libsql server over HTTP (http://, https://) or
// WebSockets (libsql://). TLS uses the system trust roots. Remote databases
// have no sync, no local encryption and no extension loading.
func openRemote(args types.ConnectArgs) (*engine.SQLDatabase, error) {
	opts := []libsql.Option{}
	if args.AuthToken != "" {
		opts = append(opts, libsql.WithAuthToken(args.AuthToken))
	}
	connector, err := libsql.NewConnector(args.URL, opts...)
	if err != nil {
		return nil, err
	}
	return engine.NewSQLDatabase(sql.OpenDB(connector), "libsql", types.VariantRemote,
		engine.WithConnectHook(pingConn),
	), nil
}
