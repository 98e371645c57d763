package postgresengine

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/circulationkit/library-circulation-go/circulation"
	"github.com/circulationkit/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	actionAssessFine      = "assess_fine"
	actionSettleFine      = "settle_fine"
	actionGetFine         = "get_fine"
	actionListFines       = "list_fines"
	actionSumPendingFines = "sum_pending_fines"
)

// ErrInvalidFineAmount is returned when AssessFine is called with a
// non-positive amount.
var ErrInvalidFineAmount = errors.New("fine amount must be positive")

// AssessFine records a manual fine against a patron, optionally tied to a
// loan. Fines assessed on overdue returns are created by ReturnLoan instead.
//
// It fails with circulation.ErrNotFound when the patron or the referenced
// loan is absent.
func (cs *CirculationStore) AssessFine(
	ctx context.Context,
	patronID string,
	loanID *uuid.UUID,
	amountCents int64,
) (circulation.Fine, error) {

	if amountCents < 1 {
		return circulation.Fine{}, errors.Join(circulation.ErrInvalidState, ErrInvalidFineAmount)
	}

	fine := circulation.Fine{
		ID:          uuid.New(),
		PatronID:    patronID,
		LoanID:      loanID,
		AmountCents: amountCents,
		IncurredAt:  cs.today(),
		Status:      circulation.FineStatusPending,
	}

	sqlQuery, _, buildErr := cs.insertFineQuery(fine)
	if buildErr != nil {
		return circulation.Fine{}, cs.buildSQLError(ctx, buildErr)
	}

	if _, err := cs.executeExec(ctx, actionAssessFine, sqlQuery); err != nil {
		return circulation.Fine{}, cs.classifyCreateError(err)
	}

	cs.logOperation(ctx, actionAssessFine,
		logAttrFineID, fine.ID.String(),
		logAttrPatronID, patronID,
		logAttrAmountCents, amountCents,
	)

	return fine, nil
}

// SettleFine marks a pending fine as settled.
//
// It fails with circulation.ErrNotFound when the fine is absent and with
// circulation.ErrInvalidState when it is already settled.
func (cs *CirculationStore) SettleFine(ctx context.Context, fineID uuid.UUID) error {
	sqlQuery, _, buildErr := cs.builder().
		Update(cs.finesTable()).
		Set(goqu.Record{colStatus: string(circulation.FineStatusSettled)}).
		Where(
			goqu.Ex{colID: fineID.String()},
			goqu.Ex{colStatus: string(circulation.FineStatusPending)},
		).
		ToSQL()
	if buildErr != nil {
		return cs.buildSQLError(ctx, buildErr)
	}

	rowsAffected, err := cs.executeExec(ctx, actionSettleFine, sqlQuery)
	if err != nil {
		return cs.storageError(err)
	}

	if rowsAffected == 0 {
		if _, getErr := cs.GetFine(ctx, fineID); getErr != nil {
			return getErr
		}

		return circulation.ErrInvalidState
	}

	cs.logOperation(ctx, actionSettleFine, logAttrFineID, fineID.String())

	return nil
}

// GetFine retrieves one fine by identifier.
func (cs *CirculationStore) GetFine(ctx context.Context, fineID uuid.UUID) (circulation.Fine, error) {
	sqlQuery, _, buildErr := cs.selectFines().
		Where(goqu.Ex{colID: fineID.String()}).
		ToSQL()
	if buildErr != nil {
		return circulation.Fine{}, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionGetFine, sqlQuery)
	if err != nil {
		return circulation.Fine{}, err
	}
	defer cs.closeRows(ctx, rows)

	if !rows.Next() {
		return circulation.Fine{}, circulation.ErrNotFound
	}

	return cs.scanFine(ctx, rows)
}

// ListFines retrieves all fines, most recently incurred first.
func (cs *CirculationStore) ListFines(ctx context.Context) ([]circulation.Fine, error) {
	sqlQuery, _, buildErr := cs.selectFines().
		Order(goqu.I(colIncurredAt).Desc(), goqu.I(colID).Asc()).
		ToSQL()
	if buildErr != nil {
		return nil, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionListFines, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer cs.closeRows(ctx, rows)

	fines := make([]circulation.Fine, 0)

	for rows.Next() {
		fine, scanErr := cs.scanFine(ctx, rows)
		if scanErr != nil {
			return nil, scanErr
		}

		fines = append(fines, fine)
	}

	return fines, nil
}

// SumPendingFines totals the outstanding fine amount across all patrons.
func (cs *CirculationStore) SumPendingFines(ctx context.Context) (int64, error) {
	return cs.sumPendingFines(ctx, nil)
}

// SumPendingFinesForPatron totals the outstanding fine amount for one
// patron. An unknown patron yields zero, not an error.
func (cs *CirculationStore) SumPendingFinesForPatron(ctx context.Context, patronID string) (int64, error) {
	return cs.sumPendingFines(ctx, &patronID)
}

func (cs *CirculationStore) sumPendingFines(ctx context.Context, patronID *string) (int64, error) {
	query := cs.builder().
		From(cs.finesTable()).
		Select(goqu.COALESCE(goqu.SUM(colAmount), 0)).
		Where(goqu.Ex{colStatus: string(circulation.FineStatusPending)})

	if patronID != nil {
		query = query.Where(goqu.Ex{colPatronID: *patronID})
	}

	sqlQuery, _, buildErr := query.ToSQL()
	if buildErr != nil {
		return 0, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionSumPendingFines, sqlQuery)
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

func (cs *CirculationStore) insertFineInTx(ctx context.Context, tx adapters.DBTransaction, fine circulation.Fine) error {
	sqlQuery, _, buildErr := cs.insertFineQuery(fine)
	if buildErr != nil {
		return cs.buildSQLError(ctx, buildErr)
	}

	if _, err := cs.execInTx(ctx, tx, actionAssessFine, sqlQuery); err != nil {
		return cs.classifyCreateError(err)
	}

	return nil
}

func (cs *CirculationStore) insertFineQuery(fine circulation.Fine) (string, []interface{}, error) {
	record := goqu.Record{
		colID:         fine.ID.String(),
		colPatronID:   fine.PatronID,
		colAmount:     fine.AmountCents,
		colIncurredAt: fine.IncurredAt,
		colStatus:     string(fine.Status),
	}

	if fine.LoanID != nil {
		record[colLoanID] = fine.LoanID.String()
	}

	return cs.builder().
		Insert(cs.finesTable()).
		Rows(record).
		ToSQL()
}

func (cs *CirculationStore) selectFines() *goqu.SelectDataset {
	return cs.builder().
		From(cs.finesTable()).
		Select(colID, colPatronID, colLoanID, colAmount, colIncurredAt, colStatus)
}

func (cs *CirculationStore) scanFine(ctx context.Context, rows adapters.DBRows) (circulation.Fine, error) {
	var fine circulation.Fine
	var fineID string
	var loanID sql.NullString
	var status string

	if err := rows.Scan(&fineID, &fine.PatronID, &loanID, &fine.AmountCents, &fine.IncurredAt, &status); err != nil {
		return circulation.Fine{}, cs.scanError(ctx, err)
	}

	parsedFineID, parseErr := uuid.Parse(fineID)
	if parseErr != nil {
		return circulation.Fine{}, cs.scanError(ctx, parseErr)
	}

	fine.ID = parsedFineID
	fine.Status = circulation.FineStatus(status)

	if loanID.Valid {
		parsedLoanID, loanParseErr := uuid.Parse(loanID.String)
		if loanParseErr != nil {
			return circulation.Fine{}, cs.scanError(ctx, loanParseErr)
		}

		fine.LoanID = &parsedLoanID
	}

	return fine, nil
}
