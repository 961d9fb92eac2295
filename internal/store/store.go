// Package store persists validated transactions. Two backends are provided:
// an embedded SQLite file for single-host deployments and Postgres for
// shared ones. Persistence failures never undo an archive move, so the
// watcher logs them loudly with enough payload to re-enter by hand.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"ledgerscan/internal/document"
)

// TransactionStore is what the ingest layer needs from persistence.
type TransactionStore interface {
	// Create inserts one validated transaction and returns its id.
	Create(ctx context.Context, tx *document.ValidatedTransaction, sourcePath string) (uuid.UUID, error)
	Close() error
}

// StoreError wraps any persistence failure so callers can tell it apart
// from pipeline failures: the document was already processed and archived
// when this happens.
type StoreError struct {
	Driver string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store(%s): %v", e.Driver, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Open picks a store implementation by driver name.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (TransactionStore, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(ctx, dsn, logger)
	case "postgres":
		return OpenPostgres(ctx, dsn, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
