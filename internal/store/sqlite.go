package store

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ledgerscan/internal/document"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id             TEXT PRIMARY KEY,
	document_class TEXT NOT NULL,
	direction      TEXT NOT NULL,
	tx_date        TEXT NOT NULL,
	amount         REAL NOT NULL,
	tax_amount     REAL NOT NULL,
	counterparty   TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	confidence     REAL NOT NULL DEFAULT 0,
	consistent     INTEGER NOT NULL DEFAULT 1,
	source_path    TEXT NOT NULL,
	created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_transactions_tx_date ON transactions(tx_date);
`

// SQLiteStore persists transactions in an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and ensures
// the schema exists. Pass ":memory:" for an ephemeral store.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Driver: "sqlite", Err: err}
	}
	// modernc/sqlite serializes writes; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, &StoreError{Driver: "sqlite", Err: err}
	}
	logger.Info("store.sqlite_ready", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, tx *document.ValidatedTransaction, sourcePath string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, document_class, direction, tx_date, amount, tax_amount,
			 counterparty, description, category, confidence, consistent, source_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(),
		string(tx.DocumentClass),
		string(tx.Direction),
		tx.Date,
		tx.Amount,
		tx.TaxAmount,
		tx.Counterparty,
		tx.Description,
		tx.Category,
		tx.Confidence,
		boolToInt(tx.Consistent),
		sourcePath,
	)
	if err != nil {
		return uuid.Nil, &StoreError{Driver: "sqlite", Err: err}
	}
	s.logger.Debug("store.transaction_created", "id", id, "source_path", sourcePath)
	return id, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
