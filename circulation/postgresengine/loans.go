package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/circulationkit/library-circulation-go/circulation"
	"github.com/circulationkit/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	actionIssueLoan       = "issue_loan"
	actionReturnLoan      = "return_loan"
	actionForceDeleteLoan = "force_delete_loan"
	actionGetLoan         = "get_loan"
	actionListLoans       = "list_loans"

	logMsgFineAssessedOnReturn = "fine assessed on overdue return"
)

// ErrInvalidLoanDuration is returned when IssueLoan is called with a
// non-positive number of days.
var ErrInvalidLoanDuration = errors.New("loan duration must be at least one day")

// IssueLoan creates a loan for an available item as a single atomic unit:
// the loan row is inserted and the item moves to on_loan, or neither
// happens. The issue date is today per the store clock, the due date is
// durationDays later.
//
// It fails with circulation.ErrNotFound when patron or item are absent and
// with circulation.ErrItemUnavailable when the item is not available. Two
// concurrent calls for the same item can not both succeed: the conditional
// item state update is the serialization point, the loser observes zero
// affected rows.
func (cs *CirculationStore) IssueLoan(
	ctx context.Context,
	patronID string,
	itemID uuid.UUID,
	durationDays int,
) (circulation.Loan, error) {

	if durationDays < 1 {
		return circulation.Loan{}, errors.Join(circulation.ErrInvalidState, ErrInvalidLoanDuration)
	}

	ctx, finishSpan := cs.startSpan(ctx, actionIssueLoan)

	issuedAt := cs.today()
	loan := circulation.Loan{
		ID:       uuid.New(),
		PatronID: patronID,
		ItemID:   itemID,
		IssuedAt: issuedAt,
		DueAt:    issuedAt.AddDate(0, 0, durationDays),
	}

	txErr := cs.withinTransaction(ctx, func(tx adapters.DBTransaction) error {
		if err := cs.claimItemForLoan(ctx, tx, itemID); err != nil {
			return err
		}

		return cs.insertLoan(ctx, tx, loan)
	})

	finishSpan(txErr)

	if txErr != nil {
		return circulation.Loan{}, txErr
	}

	cs.logOperation(ctx, actionIssueLoan,
		logAttrLoanID, loan.ID.String(),
		logAttrPatronID, patronID,
		logAttrItemID, itemID.String(),
	)

	return loan, nil
}

// ReturnLoan closes an open loan as a single atomic unit: the return date is
// set, the item moves back to available, and when the loan is overdue beyond
// the configured grace period a pending fine is assessed for the elapsed
// overdue days. The assessed fine, if any, is returned alongside the loan.
//
// It fails with circulation.ErrNotFound when the loan is absent and with
// circulation.ErrAlreadyReturned when the return date is already set.
func (cs *CirculationStore) ReturnLoan(ctx context.Context, loanID uuid.UUID) (circulation.Loan, *circulation.Fine, error) {
	ctx, finishSpan := cs.startSpan(ctx, actionReturnLoan)

	var loan circulation.Loan
	var fine *circulation.Fine

	txErr := cs.withinTransaction(ctx, func(tx adapters.DBTransaction) error {
		lockedLoan, err := cs.lockLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}

		if lockedLoan.ReturnedAt != nil {
			return circulation.ErrAlreadyReturned
		}

		returnedAt := cs.today()
		if err = cs.markLoanReturned(ctx, tx, loanID, returnedAt); err != nil {
			return err
		}

		if err = cs.releaseItemFromLoan(ctx, tx, lockedLoan.ItemID); err != nil {
			return err
		}

		lockedLoan.ReturnedAt = &returnedAt
		loan = lockedLoan

		overdueDays := loan.OverdueDaysAt(returnedAt)
		amountCents := cs.finePolicy.AmountFor(overdueDays)

		if amountCents > 0 {
			assessed := circulation.Fine{
				ID:          uuid.New(),
				PatronID:    loan.PatronID,
				LoanID:      &loan.ID,
				AmountCents: amountCents,
				IncurredAt:  returnedAt,
				Status:      circulation.FineStatusPending,
			}

			if err = cs.insertFineInTx(ctx, tx, assessed); err != nil {
				return err
			}

			fine = &assessed

			cs.logOperation(ctx, logMsgFineAssessedOnReturn,
				logAttrLoanID, loan.ID.String(),
				logAttrOverdueDays, overdueDays,
				logAttrAmountCents, amountCents,
			)
		}

		return nil
	})

	finishSpan(txErr)

	if txErr != nil {
		return circulation.Loan{}, nil, txErr
	}

	cs.logOperation(ctx, actionReturnLoan, logAttrLoanID, loanID.String())

	return loan, fine, nil
}

// ForceDeleteLoan hard-deletes a loan record as an administrative
// correction. It bypasses fine settlement and item state reconciliation on
// purpose; fines referencing the loan survive with their loan reference
// severed. Prefer ReturnLoan for regular operation.
func (cs *CirculationStore) ForceDeleteLoan(ctx context.Context, loanID uuid.UUID) error {
	sqlQuery, _, buildErr := cs.builder().
		Delete(cs.loansTable()).
		Where(goqu.Ex{colID: loanID.String()}).
		ToSQL()
	if buildErr != nil {
		return cs.buildSQLError(ctx, buildErr)
	}

	rowsAffected, err := cs.executeExec(ctx, actionForceDeleteLoan, sqlQuery)
	if err != nil {
		return cs.classifyDeleteError(err)
	}

	if rowsAffected == 0 {
		return circulation.ErrNotFound
	}

	cs.logOperation(ctx, actionForceDeleteLoan, logAttrLoanID, loanID.String())

	return nil
}

// GetLoan retrieves one loan by identifier. The status is not part of the
// record; derive it with StatusAt against the caller's clock.
func (cs *CirculationStore) GetLoan(ctx context.Context, loanID uuid.UUID) (circulation.Loan, error) {
	sqlQuery, _, buildErr := cs.selectLoans().
		Where(goqu.Ex{colID: loanID.String()}).
		ToSQL()
	if buildErr != nil {
		return circulation.Loan{}, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionGetLoan, sqlQuery)
	if err != nil {
		return circulation.Loan{}, err
	}
	defer cs.closeRows(ctx, rows)

	if !rows.Next() {
		return circulation.Loan{}, circulation.ErrNotFound
	}

	return cs.scanLoan(ctx, rows)
}

// ListLoans retrieves the full loan history, most recently issued first.
func (cs *CirculationStore) ListLoans(ctx context.Context) ([]circulation.Loan, error) {
	sqlQuery, _, buildErr := cs.selectLoans().
		Order(goqu.I(colIssuedAt).Desc(), goqu.I(colID).Asc()).
		ToSQL()
	if buildErr != nil {
		return nil, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionListLoans, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer cs.closeRows(ctx, rows)

	loans := make([]circulation.Loan, 0)

	for rows.Next() {
		loan, scanErr := cs.scanLoan(ctx, rows)
		if scanErr != nil {
			return nil, scanErr
		}

		loans = append(loans, loan)
	}

	return loans, nil
}

// claimItemForLoan flips an available item to on_loan. Zero affected rows
// means the item is either absent or not available; a follow-up read inside
// the same transaction disambiguates.
func (cs *CirculationStore) claimItemForLoan(ctx context.Context, tx adapters.DBTransaction, itemID uuid.UUID) error {
	sqlQuery, _, buildErr := cs.builder().
		Update(cs.itemsTable()).
		Set(goqu.Record{colState: string(circulation.ItemStateOnLoan)}).
		Where(
			goqu.Ex{colID: itemID.String()},
			goqu.Ex{colState: string(circulation.ItemStateAvailable)},
		).
		ToSQL()
	if buildErr != nil {
		return cs.buildSQLError(ctx, buildErr)
	}

	rowsAffected, err := cs.execInTx(ctx, tx, actionIssueLoan, sqlQuery)
	if err != nil {
		return cs.storageError(err)
	}

	if rowsAffected == 1 {
		return nil
	}

	exists, existsErr := cs.itemExistsInTx(ctx, tx, itemID)
	if existsErr != nil {
		return existsErr
	}

	if !exists {
		return circulation.ErrNotFound
	}

	return circulation.ErrItemUnavailable
}

// releaseItemFromLoan flips an item back to available on return.
func (cs *CirculationStore) releaseItemFromLoan(ctx context.Context, tx adapters.DBTransaction, itemID uuid.UUID) error {
	sqlQuery, _, buildErr := cs.builder().
		Update(cs.itemsTable()).
		Set(goqu.Record{colState: string(circulation.ItemStateAvailable)}).
		Where(
			goqu.Ex{colID: itemID.String()},
			goqu.Ex{colState: string(circulation.ItemStateOnLoan)},
		).
		ToSQL()
	if buildErr != nil {
		return cs.buildSQLError(ctx, buildErr)
	}

	if _, err := cs.execInTx(ctx, tx, actionReturnLoan, sqlQuery); err != nil {
		return cs.storageError(err)
	}

	return nil
}

func (cs *CirculationStore) insertLoan(ctx context.Context, tx adapters.DBTransaction, loan circulation.Loan) error {
	sqlQuery, _, buildErr := cs.builder().
		Insert(cs.loansTable()).
		Rows(goqu.Record{
			colID:       loan.ID.String(),
			colPatronID: loan.PatronID,
			colItemID:   loan.ItemID.String(),
			colIssuedAt: loan.IssuedAt,
			colDueAt:    loan.DueAt,
		}).
		ToSQL()
	if buildErr != nil {
		return cs.buildSQLError(ctx, buildErr)
	}

	if _, err := cs.execInTx(ctx, tx, actionIssueLoan, sqlQuery); err != nil {
		switch sqlStateOf(err) {
		case sqlStateForeignKeyViolation:
			// the item was claimed above, so the absent parent is the patron
			return errors.Join(circulation.ErrNotFound, err)
		case sqlStateUniqueViolation:
			// the partial open-loan index fired, the item is double-booked
			return errors.Join(circulation.ErrItemUnavailable, err)
		default:
			return cs.storageError(err)
		}
	}

	return nil
}

func (cs *CirculationStore) markLoanReturned(ctx context.Context, tx adapters.DBTransaction, loanID uuid.UUID, returnedAt time.Time) error {
	sqlQuery, _, buildErr := cs.builder().
		Update(cs.loansTable()).
		Set(goqu.Record{colReturnedAt: returnedAt}).
		Where(
			goqu.Ex{colID: loanID.String()},
			goqu.C(colReturnedAt).IsNull(),
		).
		ToSQL()
	if buildErr != nil {
		return cs.buildSQLError(ctx, buildErr)
	}

	rowsAffected, err := cs.execInTx(ctx, tx, actionReturnLoan, sqlQuery)
	if err != nil {
		return cs.storageError(err)
	}

	if rowsAffected == 0 {
		return circulation.ErrAlreadyReturned
	}

	return nil
}

func (cs *CirculationStore) lockLoan(ctx context.Context, tx adapters.DBTransaction, loanID uuid.UUID) (circulation.Loan, error) {
	sqlQuery, _, buildErr := cs.selectLoans().
		Where(goqu.Ex{colID: loanID.String()}).
		ForUpdate(exp.Wait).
		ToSQL()
	if buildErr != nil {
		return circulation.Loan{}, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.queryInTx(ctx, tx, actionReturnLoan, sqlQuery)
	if err != nil {
		return circulation.Loan{}, err
	}
	defer cs.closeRows(ctx, rows)

	if !rows.Next() {
		return circulation.Loan{}, circulation.ErrNotFound
	}

	return cs.scanLoan(ctx, rows)
}

func (cs *CirculationStore) itemExistsInTx(ctx context.Context, tx adapters.DBTransaction, itemID uuid.UUID) (bool, error) {
	sqlQuery, _, buildErr := cs.builder().
		From(cs.itemsTable()).
		Select(colID).
		Where(goqu.Ex{colID: itemID.String()}).
		ToSQL()
	if buildErr != nil {
		return false, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.queryInTx(ctx, tx, actionIssueLoan, sqlQuery)
	if err != nil {
		return false, err
	}
	defer cs.closeRows(ctx, rows)

	return rows.Next(), nil
}

func (cs *CirculationStore) selectLoans() *goqu.SelectDataset {
	return cs.builder().
		From(cs.loansTable()).
		Select(colID, colPatronID, colItemID, colIssuedAt, colDueAt, colReturnedAt)
}

func (cs *CirculationStore) scanLoan(ctx context.Context, rows adapters.DBRows) (circulation.Loan, error) {
	var loan circulation.Loan
	var loanID, itemID string
	var returnedAt sql.NullTime

	if err := rows.Scan(&loanID, &loan.PatronID, &itemID, &loan.IssuedAt, &loan.DueAt, &returnedAt); err != nil {
		return circulation.Loan{}, cs.scanError(ctx, err)
	}

	parsedLoanID, parseErr := uuid.Parse(loanID)
	if parseErr != nil {
		return circulation.Loan{}, cs.scanError(ctx, parseErr)
	}

	parsedItemID, parseErr := uuid.Parse(itemID)
	if parseErr != nil {
		return circulation.Loan{}, cs.scanError(ctx, parseErr)
	}

	loan.ID = parsedLoanID
	loan.ItemID = parsedItemID

	if returnedAt.Valid {
		returned := returnedAt.Time
		loan.ReturnedAt = &returned
	}

	return loan, nil
}
