// Package adapters provides database abstraction adapters for the
// circulation store.
//
// It wraps pgxpool.Pool, database/sql and sqlx behind the small DBAdapter
// interface so the engine can build SQL once and execute it through any of
// the supported drivers. DBTransaction extends the same surface with
// commit/rollback for the atomic circulation operations (issue, return).
package adapters
