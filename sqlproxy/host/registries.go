package host

import (
	"github.com/tomyedwab/libsqlshim/sqlproxy/engine"
	"github.com/tomyedwab/libsqlshim/sqlproxy/registry"
	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// databaseEntry pairs a database with the primary connection attached to it
// at connect time. They share one lifetime.
type databaseEntry struct {
	db   engine.Database
	conn engine.Conn
}

// Statements and transactions remember the database they borrow from so that
// closing it can find and release them.
type statementEntry struct {
	dbID string
	stmt engine.Stmt
}

type transactionEntry struct {
	dbID string
	tx   engine.Tx
}

// Process-wide handle tables. They live until the process exits.
var (
	databases    = registry.New[*databaseEntry]("database")
	statements   = registry.New[*statementEntry]("statement")
	transactions = registry.New[*transactionEntry]("transaction")
)

// ownerGone reports a dependent handle whose database was closed.
func ownerGone(kind, id string) error {
	return types.NewError(types.KindHandleGone, "%s %q belongs to a closed connection", kind, id)
}

// lookupStatement returns a statement whose database is still open. A
// statement orphaned by a concurrent close is dropped on the spot.
func lookupStatement(id string) (*statementEntry, error) {
	entry, err := statements.Get(id)
	if err != nil {
		return nil, err
	}
	if !databases.Exists(entry.dbID) {
		if orphan, err := statements.Remove(id); err == nil {
			_ = orphan.stmt.Finalize()
		}
		return nil, ownerGone("statement", id)
	}
	return entry, nil
}

func lookupTransaction(id string) (*transactionEntry, error) {
	entry, err := transactions.Get(id)
	if err != nil {
		return nil, err
	}
	if !databases.Exists(entry.dbID) {
		_, _ = transactions.Remove(id)
		return nil, ownerGone("transaction", id)
	}
	return entry, nil
}
