package adapters

import (
	"context"
	"database/sql"
)

// SQLAdapter implements DBAdapter for standard library sql.DB.
type SQLAdapter struct {
	db *sql.DB
}

// NewSQLAdapter creates a new standard library SQL adapter.
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

// Query executes a query using the sql.DB connection pool.
func (s *SQLAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &stdRows{rows: rows}, nil
}

// Exec executes a statement using the sql.DB connection pool.
func (s *SQLAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &stdResult{result: result}, nil
}

// BeginTx starts a transaction with the pool's default isolation level.
func (s *SQLAdapter) BeginTx(ctx context.Context) (DBTransaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &stdTransaction{tx: tx}, nil
}
