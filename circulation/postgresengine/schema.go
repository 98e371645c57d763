package postgresengine

import (
	"context"
	"fmt"
)

// Schema returns the DDL for the five circulation tables with the configured
// table prefix applied. The constraints are part of the contract, not an
// optimization: unique keys and foreign keys close the race between an
// application-level existence check and the write, and the partial unique
// index on open loans guarantees that at most one unreturned loan can
// reference an item, whatever code path writes it.
func (cs *CirculationStore) Schema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			isbn      text PRIMARY KEY,
			title     text NOT NULL,
			author    text NOT NULL DEFAULT '',
			publisher text NOT NULL DEFAULT '',
			year      integer NOT NULL DEFAULT 0,
			category  text NOT NULL DEFAULT '',
			language  text NOT NULL DEFAULT '',
			pages     integer NOT NULL DEFAULT 0
		)`, cs.booksTable()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id       text PRIMARY KEY,
			name     text NOT NULL,
			email    text NOT NULL,
			address  text NOT NULL DEFAULT '',
			phone    text NOT NULL DEFAULT '',
			category text NOT NULL
		)`, cs.patronsTable()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id        uuid PRIMARY KEY,
			book_isbn text NOT NULL REFERENCES %s (isbn) ON DELETE RESTRICT,
			barcode   text NOT NULL UNIQUE,
			state     text NOT NULL,
			location  text NOT NULL DEFAULT '',
			condition text NOT NULL
		)`, cs.itemsTable(), cs.booksTable()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          uuid PRIMARY KEY,
			patron_id   text NOT NULL REFERENCES %s (id) ON DELETE RESTRICT,
			item_id     uuid NOT NULL REFERENCES %s (id) ON DELETE RESTRICT,
			issued_at   date NOT NULL,
			due_at      date NOT NULL,
			returned_at date
		)`, cs.loansTable(), cs.patronsTable(), cs.itemsTable()),

		// at most one open loan per item (I1 on the storage level)
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_open_item_idx ON %s (item_id) WHERE returned_at IS NULL`,
			cs.loansTable(), cs.loansTable()),

		// loan_id is severed, not cascaded, when an admin hard-deletes a
		// loan; the fine itself must survive the correction
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id           uuid PRIMARY KEY,
			patron_id    text NOT NULL REFERENCES %s (id) ON DELETE RESTRICT,
			loan_id      uuid REFERENCES %s (id) ON DELETE SET NULL,
			amount_cents bigint NOT NULL,
			incurred_at  date NOT NULL,
			status       text NOT NULL
		)`, cs.finesTable(), cs.patronsTable(), cs.loansTable()),
	}
}

// CreateSchema creates the circulation tables, indexes and constraints.
// Intended for tests and bootstrap tooling; production deployments usually
// run the same DDL through their migration pipeline.
func (cs *CirculationStore) CreateSchema(ctx context.Context) error {
	for _, statement := range cs.Schema() {
		if _, err := cs.executeExec(ctx, "create_schema", statement); err != nil {
			return cs.storageError(err)
		}
	}

	return nil
}

// DropSchema drops the circulation tables in dependency order.
func (cs *CirculationStore) DropSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, cs.finesTable()),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, cs.loansTable()),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, cs.itemsTable()),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, cs.patronsTable()),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, cs.booksTable()),
	}

	for _, statement := range statements {
		if _, err := cs.executeExec(ctx, "drop_schema", statement); err != nil {
			return cs.storageError(err)
		}
	}

	return nil
}
