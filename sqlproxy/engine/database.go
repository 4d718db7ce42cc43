package engine

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// ExtensionLoader loads a shared-object extension into a pinned connection.
type ExtensionLoader func(ctx context.Context, conn *sqlx.Conn, path, entryPoint string) error

// ExtensionToggle switches the engine-side extension gate on a pinned
// connection, including the load_extension() SQL function.
type ExtensionToggle func(ctx context.Context, conn *sqlx.Conn, enabled bool) error

// Option configures an SQLDatabase.
type Option func(*SQLDatabase)

// WithSyncer installs the replication function used by Sync. When interval is
// positive it also runs in the background until the database is closed.
func WithSyncer(sync func(ctx context.Context) error, interval time.Duration) Option {
	return func(d *SQLDatabase) {
		d.syncer = sync
		d.syncInterval = interval
	}
}

// WithWriteHook runs hook after every write made outside a transaction and
// after every commit.
func WithWriteHook(hook func(ctx context.Context) error) Option {
	return func(d *SQLDatabase) {
		d.writeHook = hook
	}
}

func WithExtensionLoader(loader ExtensionLoader) Option {
	return func(d *SQLDatabase) {
		d.loader = loader
	}
}

// WithExtensionToggle installs the engine-side half of EnableExtensions and
// DisableExtensions.
func WithExtensionToggle(toggle ExtensionToggle) Option {
	return func(d *SQLDatabase) {
		d.toggle = toggle
	}
}

// WithConnectHook runs hook on every freshly pinned connection before it is
// handed out. A hook error fails Connect.
func WithConnectHook(hook func(ctx context.Context, conn *sqlx.Conn) error) Option {
	return func(d *SQLDatabase) {
		d.connectHook = hook
	}
}

// WithOnClose runs fn after the pool has been closed.
func WithOnClose(fn func() error) Option {
	return func(d *SQLDatabase) {
		d.onClose = fn
	}
}

// SQLDatabase implements Database over a database/sql pool.
type SQLDatabase struct {
	db      *sqlx.DB
	variant types.Variant

	syncer       func(ctx context.Context) error
	syncInterval time.Duration
	writeHook    func(ctx context.Context) error
	loader       ExtensionLoader
	toggle       ExtensionToggle
	connectHook  func(ctx context.Context, conn *sqlx.Conn) error
	onClose      func() error

	syncMu     sync.Mutex
	stopWorker context.CancelFunc
	workerDone chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// NewSQLDatabase wraps db, which must already be open. driverName is used by
// sqlx for bind-variable rebinding.
func NewSQLDatabase(db *sql.DB, driverName string, variant types.Variant, opts ...Option) *SQLDatabase {
	d := &SQLDatabase{
		db:      sqlx.NewDb(db, driverName),
		variant: variant,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.syncer != nil && d.syncInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		d.stopWorker = cancel
		d.workerDone = make(chan struct{})
		go d.syncWorker(ctx)
	}
	return d
}

func (d *SQLDatabase) Variant() types.Variant {
	return d.variant
}

// DB exposes the underlying pool.
func (d *SQLDatabase) DB() *sqlx.DB {
	return d.db
}

func (d *SQLDatabase) Connect(ctx context.Context) (Conn, error) {
	conn, err := d.db.Connx(ctx)
	if err != nil {
		return nil, types.WrapError(types.KindConnect, err)
	}
	if d.connectHook != nil {
		if err := d.connectHook(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, types.WrapError(types.KindConnect, err)
		}
	}
	return &sqlConn{db: d, conn: conn}, nil
}

// Sync is serialized with the background worker so that at most one
// replication round is in flight per database.
func (d *SQLDatabase) Sync(ctx context.Context) error {
	if d.syncer == nil {
		return types.NewError(types.KindEngine, "sync is not supported by %s databases", d.variant)
	}
	d.syncMu.Lock()
	defer d.syncMu.Unlock()
	return types.WrapError(types.KindEngine, d.syncer(ctx))
}

func (d *SQLDatabase) syncWorker(ctx context.Context) {
	defer close(d.workerDone)
	ticker := time.NewTicker(d.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Sync(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[sync] background sync of %s database failed: %v", d.variant, err)
			}
		}
	}
}

// afterWrite reports the write hook's failure as an engine error. The write
// itself has already been applied.
func (d *SQLDatabase) afterWrite(ctx context.Context) error {
	if d.writeHook == nil {
		return nil
	}
	d.syncMu.Lock()
	defer d.syncMu.Unlock()
	return types.WrapError(types.KindEngine, d.writeHook(ctx))
}

func (d *SQLDatabase) Close() error {
	d.closeOnce.Do(func() {
		if d.stopWorker != nil {
			d.stopWorker()
			<-d.workerDone
		}
		d.closeErr = d.db.Close()
		if d.onClose != nil {
			if err := d.onClose(); err != nil && d.closeErr == nil {
				d.closeErr = err
			}
		}
	})
	return types.WrapError(types.KindEngine, d.closeErr)
}
