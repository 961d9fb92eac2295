package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledgerscan/internal/document"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id             UUID PRIMARY KEY,
	document_class TEXT NOT NULL,
	direction      TEXT NOT NULL,
	tx_date        DATE NOT NULL,
	amount         NUMERIC(14,2) NOT NULL,
	tax_amount     NUMERIC(14,2) NOT NULL,
	counterparty   TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	consistent     BOOLEAN NOT NULL DEFAULT TRUE,
	source_path    TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transactions_tx_date ON transactions(tx_date);
`

// PostgresStore persists transactions through a pgx connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres creates the pool, pings it, and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "dsn", dsn)
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, &StoreError{Driver: "postgres", Err: err}
	}
	pc.MaxConns = 10
	pc.MinConns = 1
	pc.MaxConnLifetime = 30 * time.Minute
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.ConnConfig.RuntimeParams["application_name"] = "ledgerscan"

	dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, &StoreError{Driver: "postgres", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &StoreError{Driver: "postgres", Err: err}
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, &StoreError{Driver: "postgres", Err: err}
	}
	logger.Info("successfully connected to database")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Create(ctx context.Context, tx *document.ValidatedTransaction, sourcePath string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions
			(id, document_class, direction, tx_date, amount, tax_amount,
			 counterparty, description, category, confidence, consistent, source_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id,
		string(tx.DocumentClass),
		string(tx.Direction),
		tx.Date,
		tx.Amount,
		tx.TaxAmount,
		tx.Counterparty,
		tx.Description,
		tx.Category,
		tx.Confidence,
		tx.Consistent,
		sourcePath,
	)
	if err != nil {
		return uuid.Nil, &StoreError{Driver: "postgres", Err: err}
	}
	s.logger.Debug("store.transaction_created", "id", id, "source_path", sourcePath)
	return id, nil
}

func (s *PostgresStore) Close() error {
	s.logger.Info("closing database connections")
	s.pool.Close()
	return nil
}
