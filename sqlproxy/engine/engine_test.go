package engine

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

func openMemory(t *testing.T, opts ...Option) (*SQLDatabase, Conn) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	database := NewSQLDatabase(db, "sqlite3", types.VariantLocal, opts...)
	t.Cleanup(func() { _ = database.Close() })

	conn, err := database.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return database, conn
}

func seed(t *testing.T, conn Conn) {
	t.Helper()
	require.NoError(t, conn.ExecuteBatch(context.Background(),
		"CREATE TABLE t(a INTEGER, b TEXT); INSERT INTO t VALUES(1,'x'),(2,'y');"))
}

func query(t *testing.T, conn Conn, sql string, params *types.Params) types.QueryResult {
	t.Helper()
	ctx := context.Background()
	stmt, err := conn.Prepare(ctx, sql)
	require.NoError(t, err)
	defer stmt.Finalize()
	result, err := stmt.Query(ctx, params)
	require.NoError(t, err)
	return result
}

func TestBatchThenQuery(t *testing.T) {
	_, conn := openMemory(t)
	seed(t, conn)

	result := query(t, conn, "SELECT a,b FROM t ORDER BY a", nil)
	require.Equal(t, []string{"a", "b"}, result.Columns)
	require.Equal(t, [][]types.Value{
		{types.IntegerValue(1), types.TextValue("x")},
		{types.IntegerValue(2), types.TextValue("y")},
	}, result.Rows)
	require.Zero(t, result.RowsAffected)
	for _, row := range result.Rows {
		require.Len(t, row, len(result.Columns))
	}
}

func TestEmptyResultHasRows(t *testing.T) {
	_, conn := openMemory(t)
	seed(t, conn)

	result := query(t, conn, "SELECT a FROM t WHERE a > 100", nil)
	require.NotNil(t, result.Rows)
	require.Empty(t, result.Rows)
	require.Equal(t, []string{"a"}, result.Columns)
}

func TestQueryReportsChanges(t *testing.T) {
	_, conn := openMemory(t)
	seed(t, conn)

	result := query(t, conn, "INSERT INTO t VALUES(5,'r') RETURNING a", nil)
	require.Equal(t, [][]types.Value{{types.IntegerValue(5)}}, result.Rows)
	require.Equal(t, uint64(1), result.RowsAffected)
	require.Equal(t, int64(3), result.LastInsertRowID)
}

func TestExecutePositional(t *testing.T) {
	ctx := context.Background()
	_, conn := openMemory(t)
	seed(t, conn)

	stmt, err := conn.Prepare(ctx, "UPDATE t SET b=? WHERE a=?")
	require.NoError(t, err)
	defer stmt.Finalize()

	res, err := stmt.Execute(ctx, types.PositionalParams(types.TextValue("z"), types.IntegerValue(1)))
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.RowsAffected)

	result := query(t, conn, "SELECT b FROM t WHERE a = 1", nil)
	require.Equal(t, types.TextValue("z"), result.Rows[0][0])
}

func TestPositionalRoundTrip(t *testing.T) {
	_, conn := openMemory(t)
	values := []types.Value{
		types.NullValue(),
		types.IntegerValue(math.MinInt64),
		types.IntegerValue(math.MaxInt64),
		types.RealValue(-0.25),
		types.TextValue("naïve ☃"),
		types.BlobValue([]byte{0x00, 0xFF, 0x10}),
		types.BlobValue([]byte{}),
	}
	for _, v := range values {
		t.Run(v.String(), func(t *testing.T) {
			result := query(t, conn, "SELECT ?", types.PositionalParams(v))
			require.Len(t, result.Rows, 1)
			require.Len(t, result.Rows[0], 1)
			require.True(t, v.Equal(result.Rows[0][0]), "sent %s, got %s", v, result.Rows[0][0])
		})
	}
}

func TestNamedBlob(t *testing.T) {
	_, conn := openMemory(t)
	blob := types.BlobValue([]byte{0xDE, 0xAD})

	result := query(t, conn, "SELECT :x", types.NamedParams(map[string]types.Value{":x": blob}))
	require.Equal(t, [][]types.Value{{blob}}, result.Rows)
}

func TestNamedForms(t *testing.T) {
	ctx := context.Background()
	_, conn := openMemory(t)
	seed(t, conn)

	result := query(t, conn, "SELECT ?1, :_x, $1, :_x", types.NamedParams(map[string]types.Value{
		"?1":  types.IntegerValue(1),
		":_x": types.TextValue("u"),
		"$1":  types.IntegerValue(3),
	}))
	require.Equal(t, [][]types.Value{{
		types.IntegerValue(1), types.TextValue("u"), types.IntegerValue(3), types.TextValue("u"),
	}}, result.Rows)

	tx, err := conn.Begin(ctx, types.BehaviorDeferred)
	require.NoError(t, err)
	_, err = tx.Execute(ctx, "INSERT INTO t VALUES(@a, $b)", types.NamedParams(map[string]types.Value{
		"$b": types.TextValue("z"),
		"@a": types.IntegerValue(7),
	}))
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	result = query(t, conn, "SELECT b FROM t WHERE a = 7", nil)
	require.Equal(t, [][]types.Value{{types.TextValue("z")}}, result.Rows)

	stmt, err := conn.Prepare(ctx, "SELECT :x")
	require.NoError(t, err)
	defer stmt.Finalize()
	_, err = stmt.Query(ctx, types.NamedParams(map[string]types.Value{":y": types.NullValue()}))
	require.True(t, errors.Is(err, types.ErrBind))
}

func TestBindErrorBeforeEngine(t *testing.T) {
	ctx := context.Background()
	_, conn := openMemory(t)

	stmt, err := conn.Prepare(ctx, "SELECT ?")
	require.NoError(t, err)
	defer stmt.Finalize()

	_, err = stmt.Query(ctx, &types.Params{
		Positional: []types.Value{types.NullValue()},
		Named:      map[string]types.Value{":a": types.NullValue()},
	})
	require.True(t, errors.Is(err, types.ErrBind))
}

func TestPrepareSyntaxError(t *testing.T) {
	_, conn := openMemory(t)
	_, err := conn.Prepare(context.Background(), "SELEC 1")
	require.True(t, errors.Is(err, types.ErrEngine))
}

func TestFinalizedStatement(t *testing.T) {
	ctx := context.Background()
	_, conn := openMemory(t)

	stmt, err := conn.Prepare(ctx, "SELECT 1")
	require.NoError(t, err)
	require.NoError(t, stmt.Reset(ctx))
	require.NoError(t, stmt.Finalize())
	require.NoError(t, stmt.Finalize())

	_, err = stmt.Query(ctx, nil)
	require.True(t, errors.Is(err, types.ErrHandleGone))
	require.True(t, errors.Is(stmt.Reset(ctx), types.ErrHandleGone))
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	_, conn := openMemory(t)
	seed(t, conn)

	tx, err := conn.Begin(ctx, "")
	require.NoError(t, err)
	res, err := tx.Execute(ctx, "INSERT INTO t VALUES(3,'q')", nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.RowsAffected)

	inside, err := tx.Query(ctx, "SELECT count(*) FROM t", nil)
	require.NoError(t, err)
	require.Equal(t, types.IntegerValue(3), inside.Rows[0][0])

	require.NoError(t, tx.Rollback(ctx))
	result := query(t, conn, "SELECT count(*) FROM t", nil)
	require.Equal(t, [][]types.Value{{types.IntegerValue(2)}}, result.Rows)
}

func TestTransactionCommitOnce(t *testing.T) {
	ctx := context.Background()
	_, conn := openMemory(t)
	seed(t, conn)

	tx, err := conn.Begin(ctx, types.BehaviorImmediate)
	require.NoError(t, err)
	_, err = tx.Execute(ctx, "INSERT INTO t VALUES(3,'q')", nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	require.True(t, errors.Is(tx.Commit(ctx), types.ErrHandleGone))
	require.True(t, errors.Is(tx.Rollback(ctx), types.ErrHandleGone))

	result := query(t, conn, "SELECT count(*) FROM t", nil)
	require.Equal(t, types.IntegerValue(3), result.Rows[0][0])
}

func TestReadOnlyTransaction(t *testing.T) {
	ctx := context.Background()
	_, conn := openMemory(t)
	seed(t, conn)

	tx, err := conn.Begin(ctx, types.BehaviorReadOnly)
	require.NoError(t, err)
	_, err = tx.Execute(ctx, "INSERT INTO t VALUES(3,'q')", nil)
	require.True(t, errors.Is(err, types.ErrEngine))
	require.NoError(t, tx.Rollback(ctx))

	stmt, err := conn.Prepare(ctx, "INSERT INTO t VALUES(3,'q')")
	require.NoError(t, err)
	defer stmt.Finalize()
	_, err = stmt.Execute(ctx, nil)
	require.NoError(t, err, "query_only is cleared when the transaction ends")
}

func TestUnknownBehavior(t *testing.T) {
	_, conn := openMemory(t)
	_, err := conn.Begin(context.Background(), "serializable")
	require.Error(t, err)
}

func TestBatchMatchesIndividualStatements(t *testing.T) {
	ctx := context.Background()
	statements := []string{
		"CREATE TABLE u(id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO u(name) VALUES('ann')",
		"INSERT INTO u(name) VALUES('bob')",
	}

	_, batched := openMemory(t)
	require.NoError(t, batched.ExecuteBatch(ctx, statements[0]+";"+statements[1]+";"+statements[2]+";"))

	_, individual := openMemory(t)
	for _, s := range statements {
		stmt, err := individual.Prepare(ctx, s)
		require.NoError(t, err)
		_, err = stmt.Execute(ctx, nil)
		require.NoError(t, err)
		require.NoError(t, stmt.Finalize())
	}

	const q = "SELECT id, name FROM u ORDER BY id"
	require.Equal(t, query(t, individual, q, nil).Rows, query(t, batched, q, nil).Rows)
}

func TestSyncUnsupported(t *testing.T) {
	database, _ := openMemory(t)
	err := database.Sync(context.Background())
	require.True(t, errors.Is(err, types.ErrEngine))
	require.Contains(t, err.Error(), "not supported")
}

func TestSyncCallsSyncer(t *testing.T) {
	var calls atomic.Int32
	database, _ := openMemory(t, WithSyncer(func(context.Context) error {
		calls.Add(1)
		return nil
	}, 0))
	require.NoError(t, database.Sync(context.Background()))
	require.Equal(t, int32(1), calls.Load())

	failing, _ := openMemory(t, WithSyncer(func(context.Context) error {
		return errors.New("remote unreachable")
	}, 0))
	require.True(t, errors.Is(failing.Sync(context.Background()), types.ErrEngine))
}

func TestBackgroundSync(t *testing.T) {
	var calls atomic.Int32
	database, _ := openMemory(t, WithSyncer(func(context.Context) error {
		calls.Add(1)
		return nil
	}, 5*time.Millisecond))

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, database.Close())

	stopped := calls.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, stopped, calls.Load(), "worker stops on close")
}

func TestWriteHook(t *testing.T) {
	ctx := context.Background()
	var pushes atomic.Int32
	_, conn := openMemory(t, WithWriteHook(func(context.Context) error {
		pushes.Add(1)
		return nil
	}))

	seed(t, conn)
	require.Equal(t, int32(1), pushes.Load())

	tx, err := conn.Begin(ctx, types.BehaviorDeferred)
	require.NoError(t, err)
	_, err = tx.Execute(ctx, "INSERT INTO t VALUES(3,'q')", nil)
	require.NoError(t, err)
	require.NoError(t, conn.ExecuteBatch(ctx, "INSERT INTO t VALUES(4,'w')"))
	require.Equal(t, int32(1), pushes.Load(), "no push inside a transaction")
	require.NoError(t, tx.Commit(ctx))
	require.Equal(t, int32(2), pushes.Load())

	stmt, err := conn.Prepare(ctx, "DELETE FROM t WHERE a = ?")
	require.NoError(t, err)
	defer stmt.Finalize()
	_, err = stmt.Execute(ctx, types.PositionalParams(types.IntegerValue(1)))
	require.NoError(t, err)
	require.Equal(t, int32(3), pushes.Load())

	returning, err := conn.Prepare(ctx, "INSERT INTO t VALUES(9,'r') RETURNING a")
	require.NoError(t, err)
	defer returning.Finalize()
	result, err := returning.Query(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, [][]types.Value{{types.IntegerValue(9)}}, result.Rows)
	require.Equal(t, int32(4), pushes.Load(), "writes through the query path push too")
}

func TestConnectHookFailure(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	database := NewSQLDatabase(db, "sqlite3", types.VariantLocal,
		WithConnectHook(func(context.Context, *sqlx.Conn) error {
			return errors.New("file is not a database")
		}))
	defer database.Close()

	_, err = database.Connect(context.Background())
	require.True(t, errors.Is(err, types.ErrConnect))
}

func TestOnCloseRunsOnce(t *testing.T) {
	var closes atomic.Int32
	database, _ := openMemory(t, WithOnClose(func() error {
		closes.Add(1)
		return nil
	}))
	require.NoError(t, database.Close())
	require.NoError(t, database.Close())
	require.Equal(t, int32(1), closes.Load())
}

func TestExtensions(t *testing.T) {
	ctx := context.Background()

	_, unsupported := openMemory(t)
	require.True(t, errors.Is(unsupported.EnableExtensions(ctx), types.ErrExtension))
	require.True(t, errors.Is(unsupported.LoadExtension(ctx, "x.so", ""), types.ErrExtension))

	var loaded []string
	var toggles []bool
	_, conn := openMemory(t, WithExtensionLoader(func(_ context.Context, _ *sqlx.Conn, path, entry string) error {
		if path == "missing.so" {
			return errors.New("cannot open shared object file")
		}
		loaded = append(loaded, path+"#"+entry)
		return nil
	}), WithExtensionToggle(func(_ context.Context, _ *sqlx.Conn, enabled bool) error {
		toggles = append(toggles, enabled)
		return nil
	}))

	require.True(t, errors.Is(conn.LoadExtension(ctx, "vec.so", ""), types.ErrExtension), "disabled by default")
	require.NoError(t, conn.EnableExtensions(ctx))
	require.NoError(t, conn.LoadExtension(ctx, "vec.so", "sqlite3_vec_init"))
	require.True(t, errors.Is(conn.LoadExtension(ctx, "missing.so", ""), types.ErrExtension))
	require.NoError(t, conn.DisableExtensions(ctx))
	require.True(t, errors.Is(conn.LoadExtension(ctx, "vec.so", ""), types.ErrExtension))
	require.Equal(t, []string{"vec.so#sqlite3_vec_init"}, loaded)
	require.Equal(t, []bool{true, false}, toggles)
}

func TestExtensionToggleFailure(t *testing.T) {
	ctx := context.Background()
	_, conn := openMemory(t,
		WithExtensionLoader(func(context.Context, *sqlx.Conn, string, string) error { return nil }),
		WithExtensionToggle(func(context.Context, *sqlx.Conn, bool) error { return errors.New("denied") }),
	)
	require.True(t, errors.Is(conn.EnableExtensions(ctx), types.ErrExtension))
	require.True(t, errors.Is(conn.LoadExtension(ctx, "vec.so", ""), types.ErrExtension), "a failed enable leaves loading off")
}
