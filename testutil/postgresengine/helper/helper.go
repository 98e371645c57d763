package helper

import (
	"context"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"

	"github.com/circulationkit/library-circulation-go/circulation"
	"github.com/circulationkit/library-circulation-go/circulation/postgresengine"
)

// GivenUniqueID creates a UUIDv7 for test data.
func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id
}

// FixtureBook builds a book with a unique ISBN derived from the supplied
// discriminator.
func FixtureBook(discriminator string) circulation.Book {
	return circulation.Book{
		ISBN:      "978-84-376-" + discriminator,
		Title:     "Cien años de soledad " + discriminator,
		Author:    "Gabriel García Márquez",
		Publisher: "Editorial Sudamericana",
		Year:      1967,
		Category:  "novel",
		Language:  "es",
		Pages:     471,
	}
}

// FixturePatron builds a patron with a unique identifier derived from the
// supplied discriminator.
func FixturePatron(discriminator string) circulation.Patron {
	return circulation.Patron{
		ID:       "P-" + discriminator,
		Name:     "Reader " + discriminator,
		Email:    "reader-" + discriminator + "@example.edu",
		Address:  "Av. Principal " + discriminator,
		Phone:    "+56 9 " + discriminator,
		Category: circulation.PatronCategoryStudent,
	}
}

// FixtureItem builds an available item for the given book with a unique
// barcode derived from the supplied discriminator.
func FixtureItem(bookISBN string, discriminator string) circulation.Item {
	return circulation.Item{
		BookISBN:  bookISBN,
		Barcode:   "BC-" + discriminator,
		State:     circulation.ItemStateAvailable,
		Location:  "shelf A-" + discriminator,
		Condition: circulation.ItemConditionGood,
	}
}

// GivenBookExists seeds a book through the store API.
func GivenBookExists(t testing.TB, ctx context.Context, cs *postgresengine.CirculationStore, discriminator string) circulation.Book {
	book := FixtureBook(discriminator)
	_, err := cs.CreateBook(ctx, book)
	assert.NoError(t, err, "error in arranging test data")

	return book
}

// GivenPatronExists seeds a patron through the store API.
func GivenPatronExists(t testing.TB, ctx context.Context, cs *postgresengine.CirculationStore, discriminator string) circulation.Patron {
	patron := FixturePatron(discriminator)
	_, err := cs.CreatePatron(ctx, patron)
	assert.NoError(t, err, "error in arranging test data")

	return patron
}

// GivenItemExists seeds an available item for a book through the store API.
func GivenItemExists(t testing.TB, ctx context.Context, cs *postgresengine.CirculationStore, bookISBN string, discriminator string) circulation.Item {
	item, err := cs.CreateItem(ctx, FixtureItem(bookISBN, discriminator))
	assert.NoError(t, err, "error in arranging test data")

	return item
}

// GivenOpenLoanExists seeds a patron, a book with one item, and an open loan
// for them.
func GivenOpenLoanExists(t testing.TB, ctx context.Context, cs *postgresengine.CirculationStore, discriminator string, durationDays int) circulation.Loan {
	book := GivenBookExists(t, ctx, cs, discriminator)
	patron := GivenPatronExists(t, ctx, cs, discriminator)
	item := GivenItemExists(t, ctx, cs, book.ISBN, discriminator)

	loan, err := cs.IssueLoan(ctx, patron.ID, item.ID, durationDays)
	assert.NoError(t, err, "error in arranging test data")

	return loan
}

// GivenSomeLoanHistory seeds numLoans issued-and-returned loans for one
// patron against distinct items of one book, to feed the report queries.
func GivenSomeLoanHistory(t testing.TB, ctx context.Context, cs *postgresengine.CirculationStore, bookISBN string, patronID string, numLoans int, discriminator string) {
	for i := 0; i < numLoans; i++ {
		item := GivenItemExists(t, ctx, cs, bookISBN, discriminator+"-"+strconv.Itoa(i))

		loan, err := cs.IssueLoan(ctx, patronID, item.ID, 7)
		assert.NoError(t, err, "error in arranging test data")

		_, _, err = cs.ReturnLoan(ctx, loan.ID)
		assert.NoError(t, err, "error in arranging test data")
	}
}

// CleanUp empties all five circulation tables, children first.
func CleanUp(t testing.TB, connPool *pgxpool.Pool) {
	for _, table := range []string{"fines", "loans", "items", "patrons", "books"} {
		_, err := connPool.Exec(context.Background(), "DELETE FROM "+table)
		assert.NoError(t, err, "error in cleaning up the test tables")
	}
}
