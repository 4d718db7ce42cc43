//go:build wasip1

// Command libsqlguest is a sample WASI reactor that talks to its database
// through the host bridge. Build it with
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o guest.wasm ./cmd/libsqlguest
//
// and run it with libsqlhost -wasm guest.wasm -dsn notes.db.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/libsqlshim/sqlproxy/driver"
	_ "github.com/tomyedwab/libsqlshim/wasi/guest"
)

type note struct {
	ID   int64  `db:"id"`
	Body string `db:"body"`
}

func main() {}

//go:wasmexport run
func run() int32 {
	if err := recordVisit(os.Getenv("LIBSQLSHIM_DSN")); err != nil {
		log.Printf("libsqlguest: %v", err)
		return 1
	}
	return 0
}

func recordVisit(dsn string) error {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sqlx.Connect(driver.DriverName, dsn)
	if err != nil {
		return fmt.Errorf("sqlx.Connect failed: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS notes(id INTEGER PRIMARY KEY, body TEXT NOT NULL)"); err != nil {
		return err
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	if _, err := tx.NamedExec("INSERT INTO notes(body) VALUES(:body)", note{Body: "hello from the guest"}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	var notes []note
	if err := db.Select(&notes, "SELECT id, body FROM notes ORDER BY id"); err != nil {
		return err
	}
	for _, n := range notes {
		fmt.Printf("%d\t%s\n", n.ID, n.Body)
	}
	return nil
}
