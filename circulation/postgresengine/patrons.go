package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/circulationkit/library-circulation-go/circulation"
	"github.com/circulationkit/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	actionCreatePatron = "create_patron"
	actionGetPatron    = "get_patron"
	actionListPatrons  = "list_patrons"
	actionUpdatePatron = "update_patron"
	actionDeletePatron = "delete_patron"
)

// CreatePatron registers a borrower. It fails with
// circulation.ErrDuplicateKey when the identifier is taken and with
// circulation.ErrInvalidState for an unknown category.
func (cs *CirculationStore) CreatePatron(ctx context.Context, patron circulation.Patron) (circulation.Patron, error) {
	if !patron.Category.IsValid() {
		return circulation.Patron{}, circulation.ErrInvalidState
	}

	sqlQuery, _, buildErr := cs.builder().
		Insert(cs.patronsTable()).
		Rows(goqu.Record{
			colID:       patron.ID,
			colName:     patron.Name,
			colEmail:    patron.Email,
			colAddress:  patron.Address,
			colPhone:    patron.Phone,
			colCategory: string(patron.Category),
		}).
		ToSQL()
	if buildErr != nil {
		return circulation.Patron{}, cs.buildSQLError(ctx, buildErr)
	}

	if _, err := cs.executeExec(ctx, actionCreatePatron, sqlQuery); err != nil {
		return circulation.Patron{}, cs.classifyCreateError(err)
	}

	cs.logOperation(ctx, actionCreatePatron, logAttrPatronID, patron.ID)

	return patron, nil
}

// GetPatron retrieves one borrower by identifier.
func (cs *CirculationStore) GetPatron(ctx context.Context, patronID string) (circulation.Patron, error) {
	sqlQuery, _, buildErr := cs.selectPatrons().
		Where(goqu.Ex{colID: patronID}).
		ToSQL()
	if buildErr != nil {
		return circulation.Patron{}, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionGetPatron, sqlQuery)
	if err != nil {
		return circulation.Patron{}, err
	}
	defer cs.closeRows(ctx, rows)

	if !rows.Next() {
		return circulation.Patron{}, circulation.ErrNotFound
	}

	return cs.scanPatron(ctx, rows)
}

// ListPatrons retrieves all borrowers ordered by identifier.
func (cs *CirculationStore) ListPatrons(ctx context.Context) ([]circulation.Patron, error) {
	sqlQuery, _, buildErr := cs.selectPatrons().
		Order(goqu.I(colID).Asc()).
		ToSQL()
	if buildErr != nil {
		return nil, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionListPatrons, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer cs.closeRows(ctx, rows)

	patrons := make([]circulation.Patron, 0)

	for rows.Next() {
		patron, scanErr := cs.scanPatron(ctx, rows)
		if scanErr != nil {
			return nil, scanErr
		}

		patrons = append(patrons, patron)
	}

	return patrons, nil
}

// UpdatePatron replaces the mutable fields of a borrower record.
func (cs *CirculationStore) UpdatePatron(ctx context.Context, patron circulation.Patron) (circulation.Patron, error) {
	if !patron.Category.IsValid() {
		return circulation.Patron{}, circulation.ErrInvalidState
	}

	sqlQuery, _, buildErr := cs.builder().
		Update(cs.patronsTable()).
		Set(goqu.Record{
			colName:     patron.Name,
			colEmail:    patron.Email,
			colAddress:  patron.Address,
			colPhone:    patron.Phone,
			colCategory: string(patron.Category),
		}).
		Where(goqu.Ex{colID: patron.ID}).
		ToSQL()
	if buildErr != nil {
		return circulation.Patron{}, cs.buildSQLError(ctx, buildErr)
	}

	rowsAffected, err := cs.executeExec(ctx, actionUpdatePatron, sqlQuery)
	if err != nil {
		return circulation.Patron{}, cs.storageError(err)
	}

	if rowsAffected == 0 {
		return circulation.Patron{}, circulation.ErrNotFound
	}

	cs.logOperation(ctx, actionUpdatePatron, logAttrPatronID, patron.ID)

	return patron, nil
}

// DeletePatron removes a borrower. It fails with
// circulation.ErrReferentialConflict while loan history exists.
func (cs *CirculationStore) DeletePatron(ctx context.Context, patronID string) error {
	sqlQuery, _, buildErr := cs.builder().
		Delete(cs.patronsTable()).
		Where(goqu.Ex{colID: patronID}).
		ToSQL()
	if buildErr != nil {
		return cs.buildSQLError(ctx, buildErr)
	}

	rowsAffected, err := cs.executeExec(ctx, actionDeletePatron, sqlQuery)
	if err != nil {
		return cs.classifyDeleteError(err)
	}

	if rowsAffected == 0 {
		return circulation.ErrNotFound
	}

	cs.logOperation(ctx, actionDeletePatron, logAttrPatronID, patronID)

	return nil
}

func (cs *CirculationStore) selectPatrons() *goqu.SelectDataset {
	return cs.builder().
		From(cs.patronsTable()).
		Select(colID, colName, colEmail, colAddress, colPhone, colCategory)
}

func (cs *CirculationStore) scanPatron(ctx context.Context, rows adapters.DBRows) (circulation.Patron, error) {
	var patron circulation.Patron
	var category string

	if err := rows.Scan(&patron.ID, &patron.Name, &patron.Email, &patron.Address, &patron.Phone, &category); err != nil {
		return circulation.Patron{}, cs.scanError(ctx, err)
	}

	patron.Category = circulation.PatronCategory(category)

	return patron, nil
}
