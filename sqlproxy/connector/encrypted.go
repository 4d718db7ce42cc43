package connector

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"

	"github.com/jmoiron/sqlx"
	turso "turso.tech/database/tursogo"

	"github.com/tomyedwab/libsqlshim/sqlproxy/engine"
	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

const encryptionCipher = "aes256gcm"

// encryptionHexKey derives the 256-bit page key from the user's passphrase.
func encryptionHexKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func encryptedDSN(path, key string) string {
	query := url.Values{}
	query.Set("experimental", "encryption")
	query.Set("encryption_cipher", encryptionCipher)
	query.Set("encryption_hexkey", encryptionHexKey(key))
	return path + "?" + query.Encode()
}

// openEncrypted opens a local file through the turso engine, which encrypts
// every page. The turso driver has no open-mode switch, so read-only opens
// are enforced with query_only and read-write opens require the file to exist.
func openEncrypted(args types.ConnectArgs) (*engine.SQLDatabase, error) {
	if args.OpenFlags == types.OpenReadWrite || args.OpenFlags == types.OpenReadOnly {
		if _, err := os.Stat(args.URL); err != nil {
			return nil, fmt.Errorf("unable to open database file: %w", err)
		}
	}
	initTurso()

	connector, err := turso.NewConnector(encryptedDSN(args.URL, args.EncryptionKey), turso.WithBusyTimeout(busyTimeoutMs))
	if err != nil {
		return nil, err
	}
	return encryptedDatabase(sql.OpenDB(connector), "turso", args.OpenFlags == types.OpenReadOnly), nil
}

// encryptedDatabase wraps an opened pool of encrypted pages. Every pinned
// connection proves the key before it is handed out.
func encryptedDatabase(db *sql.DB, driverName string, readOnly bool) *engine.SQLDatabase {
	return engine.NewSQLDatabase(db, driverName, types.VariantLocal,
		engine.WithConnectHook(func(ctx context.Context, conn *sqlx.Conn) error {
			return checkEncryptionKey(ctx, conn, readOnly)
		}),
	)
}

// checkEncryptionKey reads the schema page so that a wrong key fails at connect
// rather than on the first query.
func checkEncryptionKey(ctx context.Context, conn *sqlx.Conn, readOnly bool) error {
	var tables int64
	if err := conn.QueryRowxContext(ctx, "SELECT count(*) FROM sqlite_schema").Scan(&tables); err != nil {
		return fmt.Errorf("unable to read encrypted database (wrong key?): %w", err)
	}
	if readOnly {
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only = 1"); err != nil {
			return err
		}
	}
	return nil
}
