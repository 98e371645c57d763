package postgresengine

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/circulationkit/library-circulation-go/circulation"
)

const (
	actionActiveLoans           = "report_active_loans"
	actionPendingFines          = "report_pending_fines"
	actionBookPopularity        = "report_book_popularity"
	actionAvailability          = "report_availability"
	actionPatronActivityRanking = "report_patron_activity"
	actionDashboardStats        = "report_dashboard_stats"

	aliasLoanCount = "loan_count"
	aliasItemCount = "item_count"
)

// ActiveLoanRow is an open loan joined with patron and book metadata. Status
// and overdue days are derived against the store clock at query time.
type ActiveLoanRow struct {
	Loan        circulation.Loan
	PatronName  string
	Barcode     string
	BookISBN    string
	BookTitle   string
	Status      circulation.LoanStatus
	OverdueDays int
}

// PendingFineRow is an outstanding fine joined with patron and book
// metadata. BookTitle is empty when the fine's loan was hard-deleted.
type PendingFineRow struct {
	Fine       circulation.Fine
	PatronName string
	BookTitle  string
}

// BookPopularityRow ranks one book by its all-time loan count. Turnover is
// loans per copy, with the copy count floored at one so a book whose items
// were all retired still reports a finite ratio.
type BookPopularityRow struct {
	ISBN      string
	Title     string
	LoanCount int64
	ItemCount int64
	Turnover  float64
}

// AvailabilityRow partitions one book's items by their current state.
type AvailabilityRow struct {
	ISBN          string
	Title         string
	Available     int64
	OnLoan        int64
	UnderRepair   int64
	LostOrRetired int64
	Total         int64
}

// PatronActivityRow ranks one patron by all-time loan count.
type PatronActivityRow struct {
	PatronID  string
	Name      string
	Category  circulation.PatronCategory
	LoanCount int64
}

// DashboardStats is the KPI block shown on the landing view.
type DashboardStats struct {
	BookCount        int64
	ItemCount        int64
	PatronCount      int64
	OpenLoanCount    int64
	OverdueLoanCount int64
	PendingFineCents int64
}

// ActiveLoans retrieves all open loans joined with patron and book metadata,
// soonest due first. Overdue status is computed from due dates at read time,
// it is never stored.
func (cs *CirculationStore) ActiveLoans(ctx context.Context) ([]ActiveLoanRow, error) {
	sqlQuery, _, buildErr := cs.builder().
		From(cs.loansTable()).
		Join(
			goqu.T(cs.patronsTable()),
			goqu.On(goqu.I(cs.loansCol(colPatronID)).Eq(goqu.I(cs.patronsCol(colID)))),
		).
		Join(
			goqu.T(cs.itemsTable()),
			goqu.On(goqu.I(cs.loansCol(colItemID)).Eq(goqu.I(cs.itemsCol(colID)))),
		).
		Join(
			goqu.T(cs.booksTable()),
			goqu.On(goqu.I(cs.itemsCol(colBookISBN)).Eq(goqu.I(cs.booksCol(colISBN)))),
		).
		Select(
			cs.loansCol(colID), cs.loansCol(colPatronID), cs.loansCol(colItemID),
			cs.loansCol(colIssuedAt), cs.loansCol(colDueAt),
			cs.patronsCol(colName), cs.itemsCol(colBarcode),
			cs.booksCol(colISBN), cs.booksCol(colTitle),
		).
		Where(goqu.I(cs.loansCol(colReturnedAt)).IsNull()).
		Order(goqu.I(cs.loansCol(colDueAt)).Asc(), goqu.I(cs.loansCol(colID)).Asc()).
		ToSQL()
	if buildErr != nil {
		return nil, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionActiveLoans, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer cs.closeRows(ctx, rows)

	now := cs.clock()
	report := make([]ActiveLoanRow, 0)

	for rows.Next() {
		var row ActiveLoanRow
		var loanID, itemID string

		if scanErr := rows.Scan(
			&loanID, &row.Loan.PatronID, &itemID,
			&row.Loan.IssuedAt, &row.Loan.DueAt,
			&row.PatronName, &row.Barcode,
			&row.BookISBN, &row.BookTitle,
		); scanErr != nil {
			return nil, cs.scanError(ctx, scanErr)
		}

		parsedLoanID, parseErr := uuid.Parse(loanID)
		if parseErr != nil {
			return nil, cs.scanError(ctx, parseErr)
		}

		parsedItemID, parseErr := uuid.Parse(itemID)
		if parseErr != nil {
			return nil, cs.scanError(ctx, parseErr)
		}

		row.Loan.ID = parsedLoanID
		row.Loan.ItemID = parsedItemID
		row.Status = row.Loan.StatusAt(now)
		row.OverdueDays = row.Loan.OverdueDaysAt(now)
		report = append(report, row)
	}

	return report, nil
}

// PendingFines retrieves all outstanding fines joined with patron and book
// metadata, most recently incurred first.
func (cs *CirculationStore) PendingFines(ctx context.Context) ([]PendingFineRow, error) {
	sqlQuery, _, buildErr := cs.builder().
		From(cs.finesTable()).
		Join(
			goqu.T(cs.patronsTable()),
			goqu.On(goqu.I(cs.finesCol(colPatronID)).Eq(goqu.I(cs.patronsCol(colID)))),
		).
		LeftJoin(
			goqu.T(cs.loansTable()),
			goqu.On(goqu.I(cs.finesCol(colLoanID)).Eq(goqu.I(cs.loansCol(colID)))),
		).
		LeftJoin(
			goqu.T(cs.itemsTable()),
			goqu.On(goqu.I(cs.loansCol(colItemID)).Eq(goqu.I(cs.itemsCol(colID)))),
		).
		LeftJoin(
			goqu.T(cs.booksTable()),
			goqu.On(goqu.I(cs.itemsCol(colBookISBN)).Eq(goqu.I(cs.booksCol(colISBN)))),
		).
		Select(
			cs.finesCol(colID), cs.finesCol(colPatronID), cs.finesCol(colLoanID),
			cs.finesCol(colAmount), cs.finesCol(colIncurredAt), cs.finesCol(colStatus),
			cs.patronsCol(colName), goqu.COALESCE(goqu.I(cs.booksCol(colTitle)), ""),
		).
		Where(goqu.Ex{cs.finesCol(colStatus): string(circulation.FineStatusPending)}).
		Order(goqu.I(cs.finesCol(colIncurredAt)).Desc(), goqu.I(cs.finesCol(colID)).Asc()).
		ToSQL()
	if buildErr != nil {
		return nil, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionPendingFines, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer cs.closeRows(ctx, rows)

	report := make([]PendingFineRow, 0)

	for rows.Next() {
		var row PendingFineRow
		var fineID, status string
		var loanID sql.NullString

		if scanErr := rows.Scan(
			&fineID, &row.Fine.PatronID, &loanID,
			&row.Fine.AmountCents, &row.Fine.IncurredAt, &status,
			&row.PatronName, &row.BookTitle,
		); scanErr != nil {
			return nil, cs.scanError(ctx, scanErr)
		}

		parsedFineID, parseErr := uuid.Parse(fineID)
		if parseErr != nil {
			return nil, cs.scanError(ctx, parseErr)
		}

		row.Fine.ID = parsedFineID
		row.Fine.Status = circulation.FineStatus(status)

		if loanID.Valid {
			parsedLoanID, loanParseErr := uuid.Parse(loanID.String)
			if loanParseErr != nil {
				return nil, cs.scanError(ctx, loanParseErr)
			}

			row.Fine.LoanID = &parsedLoanID
		}

		report = append(report, row)
	}

	return report, nil
}

// BookPopularityRanking retrieves all books ordered by all-time loan count
// descending, ties broken by ISBN ascending. Books with no items or loans
// are included with zero counts.
func (cs *CirculationStore) BookPopularityRanking(ctx context.Context) ([]BookPopularityRow, error) {
	sqlQuery, _, buildErr := cs.builder().
		From(cs.booksTable()).
		LeftJoin(
			goqu.T(cs.itemsTable()),
			goqu.On(goqu.I(cs.itemsCol(colBookISBN)).Eq(goqu.I(cs.booksCol(colISBN)))),
		).
		LeftJoin(
			goqu.T(cs.loansTable()),
			goqu.On(goqu.I(cs.loansCol(colItemID)).Eq(goqu.I(cs.itemsCol(colID)))),
		).
		Select(
			cs.booksCol(colISBN), cs.booksCol(colTitle),
			goqu.COUNT(goqu.I(cs.loansCol(colID))).As(aliasLoanCount),
			goqu.COUNT(goqu.DISTINCT(goqu.I(cs.itemsCol(colID)))).As(aliasItemCount),
		).
		GroupBy(goqu.I(cs.booksCol(colISBN)), goqu.I(cs.booksCol(colTitle))).
		Order(goqu.I(aliasLoanCount).Desc(), goqu.I(cs.booksCol(colISBN)).Asc()).
		ToSQL()
	if buildErr != nil {
		return nil, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionBookPopularity, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer cs.closeRows(ctx, rows)

	ranking := make([]BookPopularityRow, 0)

	for rows.Next() {
		var row BookPopularityRow

		if scanErr := rows.Scan(&row.ISBN, &row.Title, &row.LoanCount, &row.ItemCount); scanErr != nil {
			return nil, cs.scanError(ctx, scanErr)
		}

		copies := row.ItemCount
		if copies < 1 {
			copies = 1
		}

		row.Turnover = float64(row.LoanCount) / float64(copies)
		ranking = append(ranking, row)
	}

	return ranking, nil
}

// Availability retrieves per-book item counts partitioned by current state,
// ordered by ISBN. Lost and retired copies are reported as one bucket.
func (cs *CirculationStore) Availability(ctx context.Context) ([]AvailabilityRow, error) {
	countState := func(states ...circulation.ItemState) any {
		values := make([]string, 0, len(states))
		for _, state := range states {
			values = append(values, string(state))
		}

		return goqu.SUM(goqu.Case().
			When(goqu.I(cs.itemsCol(colState)).In(values), 1).
			Else(0))
	}

	sqlQuery, _, buildErr := cs.builder().
		From(cs.booksTable()).
		LeftJoin(
			goqu.T(cs.itemsTable()),
			goqu.On(goqu.I(cs.itemsCol(colBookISBN)).Eq(goqu.I(cs.booksCol(colISBN)))),
		).
		Select(
			cs.booksCol(colISBN), cs.booksCol(colTitle),
			countState(circulation.ItemStateAvailable),
			countState(circulation.ItemStateOnLoan),
			countState(circulation.ItemStateUnderRepair),
			countState(circulation.ItemStateLost, circulation.ItemStateRetired),
			goqu.COUNT(goqu.I(cs.itemsCol(colID))),
		).
		GroupBy(goqu.I(cs.booksCol(colISBN)), goqu.I(cs.booksCol(colTitle))).
		Order(goqu.I(cs.booksCol(colISBN)).Asc()).
		ToSQL()
	if buildErr != nil {
		return nil, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionAvailability, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer cs.closeRows(ctx, rows)

	report := make([]AvailabilityRow, 0)

	for rows.Next() {
		var row AvailabilityRow

		if scanErr := rows.Scan(
			&row.ISBN, &row.Title,
			&row.Available, &row.OnLoan, &row.UnderRepair, &row.LostOrRetired,
			&row.Total,
		); scanErr != nil {
			return nil, cs.scanError(ctx, scanErr)
		}

		report = append(report, row)
	}

	return report, nil
}

// PatronActivityRanking retrieves patrons ordered by all-time loan count
// descending, ties broken by patron identifier ascending. A limit below one
// returns the full ranking.
func (cs *CirculationStore) PatronActivityRanking(ctx context.Context, limit int) ([]PatronActivityRow, error) {
	selectStmt := cs.builder().
		From(cs.patronsTable()).
		LeftJoin(
			goqu.T(cs.loansTable()),
			goqu.On(goqu.I(cs.loansCol(colPatronID)).Eq(goqu.I(cs.patronsCol(colID)))),
		).
		Select(
			cs.patronsCol(colID), cs.patronsCol(colName), cs.patronsCol(colCategory),
			goqu.COUNT(goqu.I(cs.loansCol(colID))).As(aliasLoanCount),
		).
		GroupBy(
			goqu.I(cs.patronsCol(colID)),
			goqu.I(cs.patronsCol(colName)),
			goqu.I(cs.patronsCol(colCategory)),
		).
		Order(goqu.I(aliasLoanCount).Desc(), goqu.I(cs.patronsCol(colID)).Asc())

	if limit > 0 {
		selectStmt = selectStmt.Limit(uint(limit))
	}

	sqlQuery, _, buildErr := selectStmt.ToSQL()
	if buildErr != nil {
		return nil, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionPatronActivityRanking, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer cs.closeRows(ctx, rows)

	ranking := make([]PatronActivityRow, 0)

	for rows.Next() {
		var row PatronActivityRow
		var category string

		if scanErr := rows.Scan(&row.PatronID, &row.Name, &category, &row.LoanCount); scanErr != nil {
			return nil, cs.scanError(ctx, scanErr)
		}

		row.Category = circulation.PatronCategory(category)
		ranking = append(ranking, row)
	}

	return ranking, nil
}

// Stats retrieves the dashboard KPI block in one pass: entity counts, open
// and overdue loan counts, and the outstanding fine total.
func (cs *CirculationStore) Stats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats

	counts := []struct {
		dest  *int64
		table string
		where goqu.Expression
	}{
		{&stats.BookCount, cs.booksTable(), nil},
		{&stats.ItemCount, cs.itemsTable(), nil},
		{&stats.PatronCount, cs.patronsTable(), nil},
		{&stats.OpenLoanCount, cs.loansTable(), goqu.I(colReturnedAt).IsNull()},
		{&stats.OverdueLoanCount, cs.loansTable(), goqu.And(
			goqu.I(colReturnedAt).IsNull(),
			goqu.I(colDueAt).Lt(cs.today()),
		)},
	}

	for _, count := range counts {
		total, err := cs.countRows(ctx, count.table, count.where)
		if err != nil {
			return DashboardStats{}, err
		}

		*count.dest = total
	}

	pendingCents, err := cs.SumPendingFines(ctx)
	if err != nil {
		return DashboardStats{}, err
	}

	stats.PendingFineCents = pendingCents

	return stats, nil
}

func (cs *CirculationStore) countRows(ctx context.Context, table string, where goqu.Expression) (int64, error) {
	selectStmt := cs.builder().
		From(table).
		Select(goqu.COUNT(goqu.Star()))

	if where != nil {
		selectStmt = selectStmt.Where(where)
	}

	sqlQuery, _, buildErr := selectStmt.ToSQL()
	if buildErr != nil {
		return 0, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionDashboardStats, sqlQuery)
	if err != nil {
		return 0, err
	}
	defer cs.closeRows(ctx, rows)

	var total int64

	if rows.Next() {
		if scanErr := rows.Scan(&total); scanErr != nil {
			return 0, cs.scanError(ctx, scanErr)
		}
	}

	return total, nil
}
