package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/circulationkit/library-circulation-go/circulation"
	"github.com/circulationkit/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	tableNameBooks   = "books"
	tableNameItems   = "items"
	tableNamePatrons = "patrons"
	tableNameLoans   = "loans"
	tableNameFines   = "fines"

	dialectPostgres = "postgres"

	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"

	logMsgBuildQueryFailed = "failed to build sql query"
	logMsgDBQueryFailed    = "database query execution failed"
	logMsgDBExecFailed     = "database execution failed"
	logMsgCloseRowsFailed  = "failed to close database rows"
	logMsgScanRowFailed    = "failed to scan database row"
	logMsgRollbackFailed   = "failed to roll back transaction"
	logMsgSQLExecuted      = "executed sql for: "
	logMsgOperation        = "circulation operation: "
	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrDurationMS      = "duration_ms"
	logAttrBookISBN        = "book_isbn"
	logAttrItemID          = "item_id"
	logAttrPatronID        = "patron_id"
	logAttrLoanID          = "loan_id"
	logAttrFineID          = "fine_id"
	logAttrAmountCents     = "amount_cents"
	logAttrOverdueDays     = "overdue_days"
	logAttrRowCount        = "row_count"

	colID         = "id"
	colISBN       = "isbn"
	colTitle      = "title"
	colAuthor     = "author"
	colPublisher  = "publisher"
	colYear       = "year"
	colCategory   = "category"
	colLanguage   = "language"
	colPages      = "pages"
	colName       = "name"
	colEmail      = "email"
	colAddress    = "address"
	colPhone      = "phone"
	colBookISBN   = "book_isbn"
	colBarcode    = "barcode"
	colState      = "state"
	colLocation   = "location"
	colCondition  = "condition"
	colPatronID   = "patron_id"
	colItemID     = "item_id"
	colIssuedAt   = "issued_at"
	colDueAt      = "due_at"
	colReturnedAt = "returned_at"
	colLoanID     = "loan_id"
	colAmount     = "amount_cents"
	colIncurredAt = "incurred_at"
	colStatus     = "status"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
)

// CirculationStore is the Postgres-backed circulation state engine. It owns
// every mutation of item availability, loan lifecycle and fine bookkeeping,
// plus the read-side report projections, and guarantees that the multi-row
// circulation operations run inside a single transaction.
//
// It leverages a database adapter and supports customizable logging, fine
// policy, clock and table naming through functional options.
type CirculationStore struct {
	db               adapters.DBAdapter
	tablePrefix      string
	finePolicy       circulation.FinePolicy
	clock            func() time.Time
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// NewCirculationStoreFromPGXPool creates a new CirculationStore using a pgx
// pool with optional configuration.
func NewCirculationStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*CirculationStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newCirculationStore(adapters.NewPGXAdapter(db), options...)
}

// NewCirculationStoreFromSQLDB creates a new CirculationStore using a sql.DB
// with optional configuration.
func NewCirculationStoreFromSQLDB(db *sql.DB, options ...Option) (*CirculationStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newCirculationStore(adapters.NewSQLAdapter(db), options...)
}

// NewCirculationStoreFromSQLX creates a new CirculationStore using a sqlx.DB
// with optional configuration.
func NewCirculationStoreFromSQLX(db *sqlx.DB, options ...Option) (*CirculationStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newCirculationStore(adapters.NewSQLXAdapter(db), options...)
}

func newCirculationStore(db adapters.DBAdapter, options ...Option) (*CirculationStore, error) {
	cs := &CirculationStore{
		db:         db,
		finePolicy: circulation.DefaultFinePolicy(),
		clock:      time.Now,
	}

	for _, option := range options {
		if err := option(cs); err != nil {
			return nil, err
		}
	}

	return cs, nil
}

// FinePolicy returns the configured fine policy.
func (cs *CirculationStore) FinePolicy() circulation.FinePolicy {
	return cs.finePolicy
}

// booksTable, itemsTable etc. apply the configured prefix, if any.

func (cs *CirculationStore) booksTable() string   { return cs.tablePrefix + tableNameBooks }
func (cs *CirculationStore) itemsTable() string   { return cs.tablePrefix + tableNameItems }
func (cs *CirculationStore) patronsTable() string { return cs.tablePrefix + tableNamePatrons }
func (cs *CirculationStore) loansTable() string   { return cs.tablePrefix + tableNameLoans }
func (cs *CirculationStore) finesTable() string   { return cs.tablePrefix + tableNameFines }

// builder returns a goqu dialect wrapper; all SQL is rendered to a complete
// statement with ToSQL and executed through the adapter.
func (cs *CirculationStore) builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

// today returns the current calendar date according to the injected clock.
func (cs *CirculationStore) today() time.Time {
	return circulation.DateOnly(cs.clock())
}

// executeQuery executes the SQL query through the adapter with timing
// information, wrapping driver failures as storage errors.
func (cs *CirculationStore) executeQuery(ctx context.Context, action string, sqlQuery sqlQueryString) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := cs.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	cs.logQueryWithDuration(ctx, sqlQuery, action, duration)
	cs.recordDurationMetrics(action, duration, queryErr)

	if queryErr != nil {
		cs.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, cs.storageError(queryErr)
	}

	return rows, nil
}

// executeExec executes the SQL statement through the adapter with timing
// information. The driver error is returned unwrapped so call sites can
// classify constraint violations in their own context.
func (cs *CirculationStore) executeExec(ctx context.Context, action string, sqlQuery sqlQueryString) (rowsAffectedInt64, error) {
	start := time.Now()
	result, execErr := cs.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	cs.logQueryWithDuration(ctx, sqlQuery, action, duration)
	cs.recordDurationMetrics(action, duration, execErr)

	if execErr != nil {
		cs.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return 0, execErr
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		cs.logError(ctx, logMsgDBExecFailed, rowsAffectedErr)
		return 0, cs.storageError(rowsAffectedErr)
	}

	return rowsAffected, nil
}

// queryInTx and execInTx mirror executeQuery/executeExec for statements that
// run inside an open transaction.

func (cs *CirculationStore) queryInTx(ctx context.Context, tx adapters.DBTransaction, action string, sqlQuery sqlQueryString) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := tx.Query(ctx, sqlQuery)
	cs.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if queryErr != nil {
		cs.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, cs.storageError(queryErr)
	}

	return rows, nil
}

func (cs *CirculationStore) execInTx(ctx context.Context, tx adapters.DBTransaction, action string, sqlQuery sqlQueryString) (rowsAffectedInt64, error) {
	start := time.Now()
	result, execErr := tx.Exec(ctx, sqlQuery)
	cs.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if execErr != nil {
		cs.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return 0, execErr
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		cs.logError(ctx, logMsgDBExecFailed, rowsAffectedErr)
		return 0, cs.storageError(rowsAffectedErr)
	}

	return rowsAffected, nil
}

// withinTransaction runs fn inside one transaction with a guaranteed
// rollback on error. Each call acquires its own transaction from the pool;
// nothing is held beyond the operation.
func (cs *CirculationStore) withinTransaction(ctx context.Context, fn func(tx adapters.DBTransaction) error) error {
	tx, beginErr := cs.db.BeginTx(ctx)
	if beginErr != nil {
		return cs.storageError(beginErr)
	}

	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			cs.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return cs.storageError(commitErr)
	}

	return nil
}

// closeRows safely closes database rows and logs any errors.
func (cs *CirculationStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		cs.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// sqlStateOf extracts the Postgres SQLSTATE from a driver error, handling
// both pgx and lib/pq error types.
func sqlStateOf(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	return ""
}

// classifyCreateError maps constraint violations on an insert: a unique
// violation means the identifier is taken, a foreign key violation means the
// referenced parent row is absent.
func (cs *CirculationStore) classifyCreateError(err error) error {
	switch sqlStateOf(err) {
	case sqlStateUniqueViolation:
		return errors.Join(circulation.ErrDuplicateKey, err)
	case sqlStateForeignKeyViolation:
		return errors.Join(circulation.ErrNotFound, err)
	default:
		return cs.storageError(err)
	}
}

// classifyDeleteError maps constraint violations on a delete: a foreign key
// violation means dependent rows still reference the target.
func (cs *CirculationStore) classifyDeleteError(err error) error {
	if sqlStateOf(err) == sqlStateForeignKeyViolation {
		return errors.Join(circulation.ErrReferentialConflict, err)
	}

	return cs.storageError(err)
}

// storageError wraps an infrastructure failure so callers can detect it with
// errors.Is(err, circulation.ErrStorageUnavailable) while the cause stays
// inspectable.
func (cs *CirculationStore) storageError(err error) error {
	return errors.Join(circulation.ErrStorageUnavailable, err)
}

// buildSQLError logs and wraps a query building failure.
func (cs *CirculationStore) buildSQLError(ctx context.Context, err error) error {
	cs.logError(ctx, logMsgBuildQueryFailed, err)
	return cs.storageError(err)
}

// scanError logs and wraps a row scanning failure.
func (cs *CirculationStore) scanError(ctx context.Context, err error) error {
	cs.logError(ctx, logMsgScanRowFailed, err)
	return cs.storageError(err)
}
