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

func Test_CreateBook_And_GetBook_RoundTrip(t *testing.T) {
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
	book := FixtureBook("0001")

	// act
	created, err := cs.CreateBook(ctxWithTimeout, book)
	assert.NoError(t, err, "error in creating the book")

	got, err := cs.GetBook(ctxWithTimeout, book.ISBN)

	// assert
	assert.NoError(t, err, "error in reading the book")
	assert.Equal(t, book, created)
	assert.Equal(t, book, got)
}

func Test_CreateBook_When_ISBN_IsTaken(t *testing.T) {
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
	book := GivenBookExists(t, ctxWithTimeout, cs, "0002")

	// act
	_, err = cs.CreateBook(ctxWithTimeout, book)

	// assert
	assert.ErrorIs(t, err, circulation.ErrDuplicateKey)
}

func Test_GetBook_When_ISBN_IsUnknown(t *testing.T) {
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

	// act
	_, err = cs.GetBook(ctxWithTimeout, "978-0-00-unknown-0")

	// assert
	assert.ErrorIs(t, err, circulation.ErrNotFound)
}

func Test_UpdateBook_Changes_DescriptiveFields(t *testing.T) {
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
	book := GivenBookExists(t, ctxWithTimeout, cs, "0003")
	book.Title = "El amor en los tiempos del cólera"
	book.Year = 1985

	// act
	updated, err := cs.UpdateBook(ctxWithTimeout, book)

	// assert
	assert.NoError(t, err, "error in updating the book")
	assert.Equal(t, book, updated)

	got, err := cs.GetBook(ctxWithTimeout, book.ISBN)
	assert.NoError(t, err, "error in reading the book")
	assert.Equal(t, book, got)
}

func Test_UpdateBook_When_ISBN_IsUnknown(t *testing.T) {
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

	// act
	_, err = cs.UpdateBook(ctxWithTimeout, FixtureBook("0004"))

	// assert
	assert.ErrorIs(t, err, circulation.ErrNotFound)
}

func Test_DeleteBook_When_ItemsStillReferenceIt(t *testing.T) {
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
	book := GivenBookExists(t, ctxWithTimeout, cs, "0005")
	item := GivenItemExists(t, ctxWithTimeout, cs, book.ISBN, "0005")

	// act
	err = cs.DeleteBook(ctxWithTimeout, book.ISBN)

	// assert
	assert.ErrorIs(t, err, circulation.ErrReferentialConflict)

	// act again, after the item is removed
	err = cs.DeleteItem(ctxWithTimeout, item.ID)
	assert.NoError(t, err, "error in deleting the item")

	err = cs.DeleteBook(ctxWithTimeout, book.ISBN)

	// assert
	assert.NoError(t, err, "error in deleting the book")

	_, err = cs.GetBook(ctxWithTimeout, book.ISBN)
	assert.ErrorIs(t, err, circulation.ErrNotFound)
}

func Test_ListBooks_IsOrderedByISBN(t *testing.T) {
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
	second := GivenBookExists(t, ctxWithTimeout, cs, "0007")
	first := GivenBookExists(t, ctxWithTimeout, cs, "0006")

	// act
	books, err := cs.ListBooks(ctxWithTimeout)

	// assert
	assert.NoError(t, err, "error in listing the books")
	assert.Equal(t, []circulation.Book{first, second}, books)
}
