package postgresengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"

	"github.com/circulationkit/library-circulation-go/circulation"
	. "github.com/circulationkit/library-circulation-go/circulation/postgresengine"
	"github.com/circulationkit/library-circulation-go/testutil/postgresengine/config"
	. "github.com/circulationkit/library-circulation-go/testutil/postgresengine/helper"
)

func Test_ActiveLoans_Annotates_OverdueDays(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
	defer connPool.Close()
	assert.NoError(t, err, "error connecting to DB pool in test setup")

	fakeClock := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

	cs, err := NewCirculationStoreFromPGXPool(connPool, WithClock(func() time.Time { return fakeClock }))
	assert.NoError(t, err, "creating the store failed")

	// arrange
	CleanUp(t, connPool)
	overdueLoan := GivenOpenLoanExists(t, ctxWithTimeout, cs, "5001-a", 7)
	fakeClock = fakeClock.AddDate(0, 0, 10)
	activeLoan := GivenOpenLoanExists(t, ctxWithTimeout, cs, "5001-b", 7)

	returnedLoan := GivenOpenLoanExists(t, ctxWithTimeout, cs, "5001-c", 7)
	_, _, err = cs.ReturnLoan(ctxWithTimeout, returnedLoan.ID)
	assert.NoError(t, err, "error in arranging test data")

	// act
	rows, err := cs.ActiveLoans(ctxWithTimeout)

	// assert
	assert.NoError(t, err, "error in reading the active loans report")
	assert.Len(t, rows, 2, "returned loans must not appear")

	assert.Equal(t, overdueLoan.ID, rows[0].Loan.ID, "the report is ordered by due date")
	assert.Equal(t, circulation.LoanStatusOverdue, rows[0].Status)
	assert.Equal(t, 3, rows[0].OverdueDays)

	assert.Equal(t, activeLoan.ID, rows[1].Loan.ID)
	assert.Equal(t, circulation.LoanStatusActive, rows[1].Status)
	assert.Equal(t, 0, rows[1].OverdueDays)
	assert.NotEmpty(t, rows[1].PatronName)
	assert.NotEmpty(t, rows[1].BookTitle)
}

func Test_PendingFines_Joins_PatronAndBook(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
	defer connPool.Close()
	assert.NoError(t, err, "error connecting to DB pool in test setup")

	fakeClock := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

	cs, err := NewCirculationStoreFromPGXPool(connPool, WithClock(func() time.Time { return fakeClock }))
	assert.NoError(t, err, "creating the store failed")

	// arrange
	CleanUp(t, connPool)
	loan := GivenOpenLoanExists(t, ctxWithTimeout, cs, "5002", 7)
	fakeClock = fakeClock.AddDate(0, 0, 10)
	_, fine, err := cs.ReturnLoan(ctxWithTimeout, loan.ID)
	assert.NoError(t, err, "error in arranging test data")
	assert.NotNil(t, fine, "error in arranging test data")

	// act
	rows, err := cs.PendingFines(ctxWithTimeout)

	// assert
	assert.NoError(t, err, "error in reading the pending fines report")
	assert.Len(t, rows, 1)
	assert.Equal(t, fine.ID, rows[0].Fine.ID)
	assert.Equal(t, loan.PatronID, rows[0].Fine.PatronID)
	assert.NotEmpty(t, rows[0].PatronName)
	assert.NotEmpty(t, rows[0].BookTitle)
}

func Test_PendingFines_When_TheLoanWasHardDeleted(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
	defer connPool.Close()
	assert.NoError(t, err, "error connecting to DB pool in test setup")

	fakeClock := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

	cs, err := NewCirculationStoreFromPGXPool(connPool, WithClock(func() time.Time { return fakeClock }))
	assert.NoError(t, err, "creating the store failed")

	// arrange
	CleanUp(t, connPool)
	loan := GivenOpenLoanExists(t, ctxWithTimeout, cs, "5003", 7)
	fakeClock = fakeClock.AddDate(0, 0, 10)
	_, fine, err := cs.ReturnLoan(ctxWithTimeout, loan.ID)
	assert.NoError(t, err, "error in arranging test data")
	assert.NotNil(t, fine, "error in arranging test data")

	err = cs.ForceDeleteLoan(ctxWithTimeout, loan.ID)
	assert.NoError(t, err, "error in arranging test data")

	// act
	rows, err := cs.PendingFines(ctxWithTimeout)

	// assert
	assert.NoError(t, err, "error in reading the pending fines report")
	assert.Len(t, rows, 1)
	assert.Nil(t, rows[0].Fine.LoanID)
	assert.Empty(t, rows[0].BookTitle, "a severed fine has no book metadata")
	assert.NotEmpty(t, rows[0].PatronName)
}

func Test_BookPopularityRanking_BreaksTies_ByISBN(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
	defer connPool.Close()
	assert.NoError(t, err, "error connecting to DB pool in test setup")

	cs, err := NewCirculationStoreFromPGXPool(connPool)
	assert.NoError(t, err, "creating the store failed")

	// arrange
	CleanUp(t, connPool)
	patron := GivenPatronExists(t, ctxWithTimeout, cs, "5004")
	popular := GivenBookExists(t, ctxWithTimeout, cs, "5004-a")
	tiedLow := GivenBookExists(t, ctxWithTimeout, cs, "5004-b")
	tiedHigh := GivenBookExists(t, ctxWithTimeout, cs, "5004-c")
	unlent := GivenBookExists(t, ctxWithTimeout, cs, "5004-d")

	GivenSomeLoanHistory(t, ctxWithTimeout, cs, popular.ISBN, patron.ID, 3, "5004-pop")
	GivenSomeLoanHistory(t, ctxWithTimeout, cs, tiedHigh.ISBN, patron.ID, 1, "5004-hi")
	GivenSomeLoanHistory(t, ctxWithTimeout, cs, tiedLow.ISBN, patron.ID, 1, "5004-lo")

	// act
	ranking, err := cs.BookPopularityRanking(ctxWithTimeout)

	// assert
	assert.NoError(t, err, "error in reading the popularity ranking")
	assert.Len(t, ranking, 4)

	assert.Equal(t, popular.ISBN, ranking[0].ISBN)
	assert.Equal(t, int64(3), ranking[0].LoanCount)
	assert.Equal(t, int64(3), ranking[0].ItemCount)
	assert.InDelta(t, 1.0, ranking[0].Turnover, 0.0001)

	// equal loan counts are ordered by ISBN ascending
	assert.Equal(t, tiedLow.ISBN, ranking[1].ISBN)
	assert.Equal(t, tiedHigh.ISBN, ranking[2].ISBN)

	assert.Equal(t, unlent.ISBN, ranking[3].ISBN)
	assert.Equal(t, int64(0), ranking[3].LoanCount)
	assert.Equal(t, float64(0), ranking[3].Turnover)
}

func Test_Availability_Partitions_ItemsByState(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
	defer connPool.Close()
	assert.NoError(t, err, "error connecting to DB pool in test setup")

	cs, err := NewCirculationStoreFromPGXPool(connPool)
	assert.NoError(t, err, "creating the store failed")

	// arrange
	CleanUp(t, connPool)
	book := GivenBookExists(t, ctxWithTimeout, cs, "5005")
	patron := GivenPatronExists(t, ctxWithTimeout, cs, "5005")

	GivenItemExists(t, ctxWithTimeout, cs, book.ISBN, "5005-a")
	lent := GivenItemExists(t, ctxWithTimeout, cs, book.ISBN, "5005-b")
	repaired := GivenItemExists(t, ctxWithTimeout, cs, book.ISBN, "5005-c")
	lost := GivenItemExists(t, ctxWithTimeout, cs, book.ISBN, "5005-d")

	_, err = cs.IssueLoan(ctxWithTimeout, patron.ID, lent.ID, 7)
	assert.NoError(t, err, "error in arranging test data")

	_, err = cs.UpdateItem(ctxWithTimeout, repaired.ID,
		circulation.ItemStateUnderRepair, repaired.Location, repaired.Condition)
	assert.NoError(t, err, "error in arranging test data")

	_, err = cs.UpdateItem(ctxWithTimeout, lost.ID,
		circulation.ItemStateLost, lost.Location, lost.Condition)
	assert.NoError(t, err, "error in arranging test data")

	// act
	report, err := cs.Availability(ctxWithTimeout)

	// assert
	assert.NoError(t, err, "error in reading the availability report")
	assert.Len(t, report, 1)
	assert.Equal(t, book.ISBN, report[0].ISBN)
	assert.Equal(t, int64(1), report[0].Available)
	assert.Equal(t, int64(1), report[0].OnLoan)
	assert.Equal(t, int64(1), report[0].UnderRepair)
	assert.Equal(t, int64(1), report[0].LostOrRetired)
	assert.Equal(t, int64(4), report[0].Total)
}

func Test_PatronActivityRanking_Orders_ByLoanCount(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
	defer connPool.Close()
	assert.NoError(t, err, "error connecting to DB pool in test setup")

	cs, err := NewCirculationStoreFromPGXPool(connPool)
	assert.NoError(t, err, "creating the store failed")

	// arrange
	CleanUp(t, connPool)
	book := GivenBookExists(t, ctxWithTimeout, cs, "5006")
	busy := GivenPatronExists(t, ctxWithTimeout, cs, "5006-a")
	casual := GivenPatronExists(t, ctxWithTimeout, cs, "5006-b")
	inactive := GivenPatronExists(t, ctxWithTimeout, cs, "5006-c")

	GivenSomeLoanHistory(t, ctxWithTimeout, cs, book.ISBN, busy.ID, 3, "5006-busy")
	GivenSomeLoanHistory(t, ctxWithTimeout, cs, book.ISBN, casual.ID, 1, "5006-casual")

	// act
	ranking, err := cs.PatronActivityRanking(ctxWithTimeout, 2)

	// assert
	assert.NoError(t, err, "error in reading the patron activity ranking")
	assert.Len(t, ranking, 2, "the limit caps the ranking")
	assert.Equal(t, busy.ID, ranking[0].PatronID)
	assert.Equal(t, int64(3), ranking[0].LoanCount)
	assert.Equal(t, casual.ID, ranking[1].PatronID)

	// act again, without a limit
	fullRanking, err := cs.PatronActivityRanking(ctxWithTimeout, 0)

	// assert
	assert.NoError(t, err, "error in reading the patron activity ranking")
	assert.Len(t, fullRanking, 3)
	assert.Equal(t, inactive.ID, fullRanking[2].PatronID)
	assert.Equal(t, int64(0), fullRanking[2].LoanCount)
}

func Test_Stats_Summarizes_TheWholeDataset(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
	defer connPool.Close()
	assert.NoError(t, err, "error connecting to DB pool in test setup")

	fakeClock := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

	cs, err := NewCirculationStoreFromPGXPool(connPool, WithClock(func() time.Time { return fakeClock }))
	assert.NoError(t, err, "creating the store failed")

	// arrange
	CleanUp(t, connPool)
	GivenOpenLoanExists(t, ctxWithTimeout, cs, "5007-a", 7)
	fakeClock = fakeClock.AddDate(0, 0, 10)
	GivenOpenLoanExists(t, ctxWithTimeout, cs, "5007-b", 7)

	settledLoan := GivenOpenLoanExists(t, ctxWithTimeout, cs, "5007-c", 7)
	_, _, err = cs.ReturnLoan(ctxWithTimeout, settledLoan.ID)
	assert.NoError(t, err, "error in arranging test data")

	patron := GivenPatronExists(t, ctxWithTimeout, cs, "5007-d")
	_, err = cs.AssessFine(ctxWithTimeout, patron.ID, nil, 150)
	assert.NoError(t, err, "error in arranging test data")

	// act
	stats, err := cs.Stats(ctxWithTimeout)

	// assert
	assert.NoError(t, err, "error in reading the dashboard stats")
	assert.Equal(t, int64(3), stats.BookCount)
	assert.Equal(t, int64(3), stats.ItemCount)
	assert.Equal(t, int64(4), stats.PatronCount)
	assert.Equal(t, int64(2), stats.OpenLoanCount)
	assert.Equal(t, int64(1), stats.OverdueLoanCount)
	assert.Equal(t, int64(150), stats.PendingFineCents)
}
