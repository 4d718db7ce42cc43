package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueJSON(t *testing.T) {
	values := []Value{
		NullValue(),
		IntegerValue(math.MaxInt64),
		IntegerValue(math.MinInt64),
		RealValue(1.5),
		RealValue(math.Inf(-1)),
		TextValue("héllo"),
		BlobValue([]byte{0xDE, 0xAD}),
		BlobValue([]byte{}),
	}
	for _, v := range values {
		t.Run(v.String(), func(t *testing.T) {
			raw, err := json.Marshal(v)
			require.NoError(t, err)
			var back Value
			require.NoError(t, json.Unmarshal(raw, &back))
			require.True(t, v.Equal(back), "%s != %s (%s)", v, back, raw)
		})
	}
}

func TestIntegerTravelsAsString(t *testing.T) {
	raw, err := json.Marshal(IntegerValue(9007199254740993))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"integer","value":"9007199254740993"}`, string(raw))
}

func TestUnknownValueType(t *testing.T) {
	var v Value
	require.Error(t, json.Unmarshal([]byte(`{"type":"decimal","value":"1"}`), &v))
}

func TestValueOf(t *testing.T) {
	require.Equal(t, TypeNull, ValueOf(nil).Type)
	require.Equal(t, IntegerValue(1), ValueOf(true))
	require.Equal(t, IntegerValue(42), ValueOf(int64(42)))
	require.Equal(t, RealValue(2.5), ValueOf(2.5))
	require.Equal(t, TextValue("x"), ValueOf("x"))

	src := []byte{1, 2, 3}
	blob := ValueOf(src)
	src[0] = 9
	require.Equal(t, []byte{1, 2, 3}, blob.Blob, "blob cells are copied")
}

func TestParamsArgs(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var p *Params
		args, err := p.Args("SELECT 1")
		require.NoError(t, err)
		require.Empty(t, args)
	})
	t.Run("positional", func(t *testing.T) {
		args, err := PositionalParams(TextValue("z"), IntegerValue(1), NullValue()).Args("SELECT ?, ?, ?")
		require.NoError(t, err)
		require.Equal(t, []any{"z", int64(1), nil}, args)
	})
	t.Run("named", func(t *testing.T) {
		args, err := NamedParams(map[string]Value{":x": BlobValue([]byte{0xDE}), "@y": IntegerValue(2)}).Args("SELECT @y, :x")
		require.NoError(t, err)
		require.Equal(t, []any{int64(2), []byte{0xDE}}, args)
	})
	t.Run("sqlite name forms", func(t *testing.T) {
		args, err := NamedParams(map[string]Value{
			"?1":  IntegerValue(1),
			":_x": TextValue("under"),
			"$1":  IntegerValue(3),
		}).Args("SELECT ?1, :_x, $1, :_x")
		require.NoError(t, err)
		require.Equal(t, []any{int64(1), "under", int64(3)}, args)
	})
	t.Run("gaps bind null", func(t *testing.T) {
		args, err := NamedParams(map[string]Value{"?3": TextValue("c")}).Args("SELECT ?3")
		require.NoError(t, err)
		require.Equal(t, []any{nil, nil, "c"}, args)
	})
	t.Run("both", func(t *testing.T) {
		p := &Params{Positional: []Value{NullValue()}, Named: map[string]Value{":a": NullValue()}}
		_, err := p.Args("SELECT :a")
		require.True(t, errors.Is(err, ErrBind))
	})
	t.Run("missing sigil", func(t *testing.T) {
		_, err := NamedParams(map[string]Value{"x": NullValue()}).Args("SELECT :x")
		require.True(t, errors.Is(err, ErrBind))
	})
	t.Run("unknown name", func(t *testing.T) {
		_, err := NamedParams(map[string]Value{":y": NullValue()}).Args("SELECT :x")
		require.True(t, errors.Is(err, ErrBind))
	})
}

func TestScanPlaceholders(t *testing.T) {
	tests := []struct {
		name  string
		query string
		index map[string]int
		count int
	}{
		{"anonymous", "SELECT ?, ?", map[string]int{}, 2},
		{"numbered", "SELECT ?2, ?", map[string]int{"?2": 2}, 3},
		{"repeated name", "SELECT :a, @b, :a", map[string]int{":a": 1, "@b": 2}, 2},
		{"digits and underscore", "SELECT $1, :_x, @a_1", map[string]int{"$1": 1, ":_x": 2, "@a_1": 3}, 3},
		{"tcl name", "SELECT $ns::v", map[string]int{"$ns::v": 1}, 1},
		{"literals skipped", "SELECT ':a', \"?\", `@b`, [$c], 'it''s :d', :e", map[string]int{":e": 1}, 1},
		{"comments skipped", "SELECT :a -- :b ?\n, /* @c ? */ ?", map[string]int{":a": 1}, 2},
		{"dollar in identifier", "SELECT a$b, :x FROM t", map[string]int{":x": 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScanPlaceholders(tt.query)
			require.Equal(t, tt.index, got.Index)
			require.Equal(t, tt.count, got.Count)
		})
	}
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("no such table: t")
	err := WrapError(KindEngine, cause)
	require.True(t, errors.Is(err, ErrEngine))
	require.True(t, errors.Is(err, cause))
	require.Equal(t, KindEngine, KindOf(err))
	require.Equal(t, "libsql: engine error: no such table: t", err.Error())

	// Already classified errors keep their kind.
	gone := NewError(KindHandleGone, "statement %q", "abc")
	require.Equal(t, KindHandleGone, KindOf(WrapError(KindEngine, gone)))
	require.Equal(t, KindHandleGone, KindOf(fmt.Errorf("prepare: %w", gone)))

	require.Equal(t, KindEngine, KindOf(errors.New("unclassified")))
}

func TestResponseErrRoundTrip(t *testing.T) {
	resp := ErrorResponse(NewError(KindBind, "expected 2 arguments"))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var back Response
	require.NoError(t, json.Unmarshal(raw, &back))
	got := back.Err()
	require.True(t, errors.Is(got, ErrBind))
	require.Equal(t, "libsql: bind error: expected 2 arguments", got.Error())
}

func TestConnectArgsVariant(t *testing.T) {
	tests := []struct {
		name string
		args ConnectArgs
		want Variant
	}{
		{"offline synced", ConnectArgs{URL: "local.db", SyncURL: "libsql://x", Offline: true}, VariantOfflineSynced},
		{"replica", ConnectArgs{URL: "local.db", SyncURL: "libsql://x"}, VariantRemoteReplica},
		{"libsql remote", ConnectArgs{URL: "libsql://db.turso.io"}, VariantRemote},
		{"https remote", ConnectArgs{URL: "https://db.turso.io"}, VariantRemote},
		{"http remote", ConnectArgs{URL: "http://127.0.0.1:8080"}, VariantRemote},
		{"offline without sync url", ConnectArgs{URL: "local.db", Offline: true}, VariantLocal},
		{"memory", ConnectArgs{URL: ":memory:"}, VariantLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.args.Variant())
		})
	}
}

func TestConnectArgsValidate(t *testing.T) {
	require.True(t, errors.Is(ConnectArgs{}.Validate(), ErrConnect))
	require.True(t, errors.Is(ConnectArgs{URL: "x.db", OpenFlags: "bogus"}.Validate(), ErrConnect))
	require.NoError(t, ConnectArgs{URL: "x.db", OpenFlags: OpenReadOnly}.Validate())
	require.NoError(t, ConnectArgs{URL: "x.db", EncryptionKey: "k"}.Validate())
	for _, offline := range []bool{false, true} {
		err := ConnectArgs{URL: "x.db", SyncURL: "https://db.example", EncryptionKey: "k", Offline: offline}.Validate()
		require.True(t, errors.Is(err, ErrConnect))
		require.ErrorContains(t, err, "encryption_key")
	}
}

func TestTransactionBehaviorNormalize(t *testing.T) {
	b, err := TransactionBehavior("").Normalize()
	require.NoError(t, err)
	require.Equal(t, BehaviorDeferred, b)
	_, err = TransactionBehavior("serializable").Normalize()
	require.Error(t, err)
}
