package connector

import (
	"context"

	turso "turso.tech/database/tursogo"

	"github.com/tomyedwab/libsqlshim/sqlproxy/engine"
	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

const syncClientName = "libsqlshim"

// openSynced builds a database whose local file at args.URL replicates with
// args.SyncURL. A remote replica bootstraps from the remote when the file is
// empty and honors the sync interval and read-your-writes settings. An
// offline-synced database never touches the network until Sync is called.
func openSynced(ctx context.Context, args types.ConnectArgs) (*engine.SQLDatabase, error) {
	initTurso()

	variant := args.Variant()
	bootstrap := variant == types.VariantRemoteReplica
	syncDB, err := turso.NewTursoSyncDb(ctx, turso.TursoSyncDbConfig{
		Path:             args.URL,
		RemoteUrl:        args.SyncURL,
		AuthToken:        args.AuthToken,
		ClientName:       syncClientName,
		BootstrapIfEmpty: &bootstrap,
	})
	if err != nil {
		return nil, err
	}
	db, err := syncDB.Connect(ctx)
	if err != nil {
		return nil, err
	}

	r := &replicator{db: syncDB}
	opts := []engine.Option{engine.WithConnectHook(pingConn)}
	if variant == types.VariantRemoteReplica {
		opts = append(opts, engine.WithSyncer(r.sync, args.SyncInterval()))
		if args.ReadYourWrites {
			opts = append(opts, engine.WithWriteHook(r.push))
		}
	} else {
		opts = append(opts, engine.WithSyncer(r.sync, 0))
	}
	return engine.NewSQLDatabase(db, "turso", variant, opts...), nil
}

type replicator struct {
	db *turso.TursoSyncDb
}

// sync sends local changes first so that the pull does not roll them back.
func (r *replicator) sync(ctx context.Context) error {
	if err := r.db.Push(ctx); err != nil {
		return err
	}
	_, err := r.db.Pull(ctx)
	return err
}

func (r *replicator) push(ctx context.Context) error {
	return r.db.Push(ctx)
}
