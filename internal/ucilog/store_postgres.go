package ucilog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore appends UCI records to the uci_log table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed UCI log.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open dials the database and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open uci log database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping uci log database: %w", err)
	}
	return db, nil
}

// Append inserts one record. Duplicate UCIs indicate an entropy failure and
// are surfaced as errors rather than overwritten.
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO uci_log (uci, provider, event_unique, issued_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, rec.UCI, rec.Provider, rec.Unique, rec.IssuedAt); err != nil {
		return fmt.Errorf("append uci record: %w", err)
	}
	return nil
}
