// Package connector turns a ConnectArgs record into an opened engine.Database.
//
// The variant is chosen by ConnectArgs.Variant:
//
//   - offline-synced and remote-replica databases use the turso sync engine
//   - remote databases use the libsql HTTP/WebSocket client
//   - local databases use go-sqlite3, or the turso engine when an encryption
//     key is given
//
// Every failure while building or connecting is reported as a connect error.
package connector

import (
	"context"
	"time"

	"github.com/tomyedwab/libsqlshim/sqlproxy/engine"
	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// busyTimeoutMs is applied to every local connection so that concurrent
// connections to the same file wait for each other instead of failing.
const busyTimeoutMs = 5000

// Open builds the database described by args. The caller owns the result and
// must Close it.
func Open(ctx context.Context, args types.ConnectArgs) (engine.Database, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	args.AuthToken = normalizeAuthToken(args.AuthToken)
	if err := checkAuthToken(args.AuthToken, time.Now()); err != nil {
		return nil, err
	}

	var (
		db  engine.Database
		err error
	)
	switch args.Variant() {
	case types.VariantOfflineSynced, types.VariantRemoteReplica:
		db, err = openSynced(ctx, args)
	case types.VariantRemote:
		db, err = openRemote(args)
	default:
		if args.EncryptionKey != "" {
			db, err = openEncrypted(args)
		} else {
			db, err = openLocal(args)
		}
	}
	if err != nil {
		return nil, types.WrapError(types.KindConnect, err)
	}
	return db, nil
}
