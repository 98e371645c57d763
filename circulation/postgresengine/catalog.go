package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/circulationkit/library-circulation-go/circulation"
	"github.com/circulationkit/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	actionCreateBook = "create_book"
	actionGetBook    = "get_book"
	actionListBooks  = "list_books"
	actionUpdateBook = "update_book"
	actionDeleteBook = "delete_book"
)

// CreateBook adds a catalog entry. It fails with circulation.ErrDuplicateKey
// when the ISBN is already taken.
func (cs *CirculationStore) CreateBook(ctx context.Context, book circulation.Book) (circulation.Book, error) {
	sqlQuery, _, buildErr := cs.builder().
		Insert(cs.booksTable()).
		Rows(goqu.Record{
			colISBN:      book.ISBN,
			colTitle:     book.Title,
			colAuthor:    book.Author,
			colPublisher: book.Publisher,
			colYear:      book.Year,
			colCategory:  book.Category,
			colLanguage:  book.Language,
			colPages:     book.Pages,
		}).
		ToSQL()
	if buildErr != nil {
		return circulation.Book{}, cs.buildSQLError(ctx, buildErr)
	}

	if _, err := cs.executeExec(ctx, actionCreateBook, sqlQuery); err != nil {
		return circulation.Book{}, cs.classifyCreateError(err)
	}

	cs.logOperation(ctx, actionCreateBook, logAttrBookISBN, book.ISBN)

	return book, nil
}

// GetBook retrieves one catalog entry by ISBN.
func (cs *CirculationStore) GetBook(ctx context.Context, isbn string) (circulation.Book, error) {
	sqlQuery, _, buildErr := cs.selectBooks().
		Where(goqu.Ex{colISBN: isbn}).
		ToSQL()
	if buildErr != nil {
		return circulation.Book{}, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionGetBook, sqlQuery)
	if err != nil {
		return circulation.Book{}, err
	}
	defer cs.closeRows(ctx, rows)

	if !rows.Next() {
		return circulation.Book{}, circulation.ErrNotFound
	}

	return cs.scanBook(ctx, rows)
}

// ListBooks retrieves the whole catalog ordered by ISBN.
func (cs *CirculationStore) ListBooks(ctx context.Context) ([]circulation.Book, error) {
	sqlQuery, _, buildErr := cs.selectBooks().
		Order(goqu.I(colISBN).Asc()).
		ToSQL()
	if buildErr != nil {
		return nil, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionListBooks, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer cs.closeRows(ctx, rows)

	books := make([]circulation.Book, 0)

	for rows.Next() {
		book, scanErr := cs.scanBook(ctx, rows)
		if scanErr != nil {
			return nil, scanErr
		}

		books = append(books, book)
	}

	return books, nil
}

// UpdateBook replaces the descriptive fields of a catalog entry. The ISBN is
// the immutable identity and can not be changed.
func (cs *CirculationStore) UpdateBook(ctx context.Context, book circulation.Book) (circulation.Book, error) {
	sqlQuery, _, buildErr := cs.builder().
		Update(cs.booksTable()).
		Set(goqu.Record{
			colTitle:     book.Title,
			colAuthor:    book.Author,
			colPublisher: book.Publisher,
			colYear:      book.Year,
			colCategory:  book.Category,
			colLanguage:  book.Language,
			colPages:     book.Pages,
		}).
		Where(goqu.Ex{colISBN: book.ISBN}).
		ToSQL()
	if buildErr != nil {
		return circulation.Book{}, cs.buildSQLError(ctx, buildErr)
	}

	rowsAffected, err := cs.executeExec(ctx, actionUpdateBook, sqlQuery)
	if err != nil {
		return circulation.Book{}, cs.storageError(err)
	}

	if rowsAffected == 0 {
		return circulation.Book{}, circulation.ErrNotFound
	}

	cs.logOperation(ctx, actionUpdateBook, logAttrBookISBN, book.ISBN)

	return book, nil
}

// DeleteBook removes a catalog entry. It fails with
// circulation.ErrReferentialConflict while any item references the book.
func (cs *CirculationStore) DeleteBook(ctx context.Context, isbn string) error {
	sqlQuery, _, buildErr := cs.builder().
		Delete(cs.booksTable()).
		Where(goqu.Ex{colISBN: isbn}).
		ToSQL()
	if buildErr != nil {
		return cs.buildSQLError(ctx, buildErr)
	}

	rowsAffected, err := cs.executeExec(ctx, actionDeleteBook, sqlQuery)
	if err != nil {
		return cs.classifyDeleteError(err)
	}

	if rowsAffected == 0 {
		return circulation.ErrNotFound
	}

	cs.logOperation(ctx, actionDeleteBook, logAttrBookISBN, isbn)

	return nil
}

func (cs *CirculationStore) selectBooks() *goqu.SelectDataset {
	return cs.builder().
		From(cs.booksTable()).
		Select(colISBN, colTitle, colAuthor, colPublisher, colYear, colCategory, colLanguage, colPages)
}

func (cs *CirculationStore) scanBook(ctx context.Context, rows adapters.DBRows) (circulation.Book, error) {
	var book circulation.Book

	if err := rows.Scan(
		&book.ISBN,
		&book.Title,
		&book.Author,
		&book.Publisher,
		&book.Year,
		&book.Category,
		&book.Language,
		&book.Pages,
	); err != nil {
		return circulation.Book{}, cs.scanError(ctx, err)
	}

	return book, nil
}
