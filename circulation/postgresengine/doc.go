// Package postgresengine provides the PostgreSQL implementation of the
// circulation state engine.
//
// This package keeps item availability, loan status, and accrued fines
// mutually consistent, supporting multiple database adapters (pgx, sql.DB,
// sqlx) with atomic multi-table operations and conflict detection through
// storage-layer constraints.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Atomic loan issuance and return with double-assignment protection
//   - Derived loan status and overdue days, never stored
//   - Configurable fine policy, clock injection, and dual-logger support
//   - Read-side reports (active loans, pending fines, rankings, availability)
//
// Usage examples:
//
//	// Basic usage
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewCirculationStoreFromPGXPool(db)
//
//	// With a fine policy and operational logging
//	store, _ := postgresengine.NewCirculationStoreFromPGXPool(
//		db,
//		postgresengine.WithFinePolicy(circulation.FinePolicy{DailyRateCents: 50, GraceDays: 2}),
//		postgresengine.WithLogger(logger),
//	)
//
//	loan, _ := store.IssueLoan(ctx, patronID, itemID, 7)
//	loan, fine, _ := store.ReturnLoan(ctx, loan.ID)
package postgresengine
