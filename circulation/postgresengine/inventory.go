package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/circulationkit/library-circulation-go/circulation"
	"github.com/circulationkit/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	actionCreateItem         = "create_item"
	actionGetItem            = "get_item"
	actionListItems          = "list_items"
	actionListAvailableItems = "list_available_items"
	actionUpdateItem         = "update_item"
	actionDeleteItem         = "delete_item"
)

// InventoryRow is an item joined with its book title for display.
type InventoryRow struct {
	circulation.Item
	BookTitle string
}

// CreateItem adds a physical copy under an existing book. The item starts in
// an externally assignable state (an item can not be created on loan). It
// fails with circulation.ErrNotFound when the book is absent and with
// circulation.ErrDuplicateKey when the barcode is taken. A zero item ID is
// replaced with a generated one.
func (cs *CirculationStore) CreateItem(ctx context.Context, item circulation.Item) (circulation.Item, error) {
	if !item.State.ExternallyAssignable() || !item.Condition.IsValid() {
		return circulation.Item{}, circulation.ErrInvalidState
	}

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	sqlQuery, _, buildErr := cs.builder().
		Insert(cs.itemsTable()).
		Rows(goqu.Record{
			colID:        item.ID.String(),
			colBookISBN:  item.BookISBN,
			colBarcode:   item.Barcode,
			colState:     string(item.State),
			colLocation:  item.Location,
			colCondition: string(item.Condition),
		}).
		ToSQL()
	if buildErr != nil {
		return circulation.Item{}, cs.buildSQLError(ctx, buildErr)
	}

	if _, err := cs.executeExec(ctx, actionCreateItem, sqlQuery); err != nil {
		return circulation.Item{}, cs.classifyCreateError(err)
	}

	cs.logOperation(ctx, actionCreateItem, logAttrItemID, item.ID.String(), logAttrBookISBN, item.BookISBN)

	return item, nil
}

// GetItem retrieves one item by its identifier.
func (cs *CirculationStore) GetItem(ctx context.Context, itemID uuid.UUID) (circulation.Item, error) {
	sqlQuery, _, buildErr := cs.selectItems().
		Where(goqu.Ex{colID: itemID.String()}).
		ToSQL()
	if buildErr != nil {
		return circulation.Item{}, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, actionGetItem, sqlQuery)
	if err != nil {
		return circulation.Item{}, err
	}
	defer cs.closeRows(ctx, rows)

	if !rows.Next() {
		return circulation.Item{}, circulation.ErrNotFound
	}

	return cs.scanItem(ctx, rows)
}

// ListItems retrieves the whole physical inventory joined with book titles,
// ordered by barcode.
func (cs *CirculationStore) ListItems(ctx context.Context) ([]InventoryRow, error) {
	return cs.listInventory(ctx, actionListItems, nil)
}

// ListAvailableItems retrieves only the items currently in the available
// state, joined with book titles. This is the candidate list for IssueLoan.
func (cs *CirculationStore) ListAvailableItems(ctx context.Context) ([]InventoryRow, error) {
	return cs.listInventory(ctx, actionListAvailableItems, goqu.Ex{
		cs.itemsCol(colState): string(circulation.ItemStateAvailable),
	})
}

// UpdateItem writes state, location and condition of an item. The on_loan
// state is reserved for IssueLoan/ReturnLoan: writing it here, or editing an
// item that is currently on loan, fails with circulation.ErrInvalidState.
func (cs *CirculationStore) UpdateItem(
	ctx context.Context,
	itemID uuid.UUID,
	state circulation.ItemState,
	location string,
	condition circulation.ItemCondition,
) (circulation.Item, error) {

	if !state.ExternallyAssignable() || !condition.IsValid() {
		return circulation.Item{}, circulation.ErrInvalidState
	}

	sqlQuery, _, buildErr := cs.builder().
		Update(cs.itemsTable()).
		Set(goqu.Record{
			colState:     string(state),
			colLocation:  location,
			colCondition: string(condition),
		}).
		Where(
			goqu.Ex{colID: itemID.String()},
			goqu.C(colState).Neq(string(circulation.ItemStateOnLoan)),
		).
		ToSQL()
	if buildErr != nil {
		return circulation.Item{}, cs.buildSQLError(ctx, buildErr)
	}

	rowsAffected, err := cs.executeExec(ctx, actionUpdateItem, sqlQuery)
	if err != nil {
		return circulation.Item{}, cs.storageError(err)
	}

	if rowsAffected == 0 {
		// was the guard or the existence check that failed?
		if _, getErr := cs.GetItem(ctx, itemID); getErr != nil {
			return circulation.Item{}, getErr
		}

		return circulation.Item{}, circulation.ErrInvalidState
	}

	cs.logOperation(ctx, actionUpdateItem, logAttrItemID, itemID.String())

	return cs.GetItem(ctx, itemID)
}

// DeleteItem removes a physical copy. It fails with
// circulation.ErrReferentialConflict while any loan references the item or
// the item is currently on loan.
func (cs *CirculationStore) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	sqlQuery, _, buildErr := cs.builder().
		Delete(cs.itemsTable()).
		Where(
			goqu.Ex{colID: itemID.String()},
			goqu.C(colState).Neq(string(circulation.ItemStateOnLoan)),
		).
		ToSQL()
	if buildErr != nil {
		return cs.buildSQLError(ctx, buildErr)
	}

	rowsAffected, err := cs.executeExec(ctx, actionDeleteItem, sqlQuery)
	if err != nil {
		return cs.classifyDeleteError(err)
	}

	if rowsAffected == 0 {
		if _, getErr := cs.GetItem(ctx, itemID); getErr != nil {
			return getErr
		}

		return circulation.ErrReferentialConflict
	}

	cs.logOperation(ctx, actionDeleteItem, logAttrItemID, itemID.String())

	return nil
}

func (cs *CirculationStore) listInventory(ctx context.Context, action string, filter goqu.Ex) ([]InventoryRow, error) {
	selectStmt := cs.builder().
		From(cs.itemsTable()).
		Join(
			goqu.T(cs.booksTable()),
			goqu.On(goqu.I(cs.itemsCol(colBookISBN)).Eq(goqu.I(cs.booksCol(colISBN)))),
		).
		Select(
			cs.itemsCol(colID), cs.itemsCol(colBookISBN), cs.itemsCol(colBarcode),
			cs.itemsCol(colState), cs.itemsCol(colLocation), cs.itemsCol(colCondition),
			cs.booksCol(colTitle),
		).
		Order(goqu.I(cs.itemsCol(colBarcode)).Asc())

	if filter != nil {
		selectStmt = selectStmt.Where(filter)
	}

	sqlQuery, _, buildErr := selectStmt.ToSQL()
	if buildErr != nil {
		return nil, cs.buildSQLError(ctx, buildErr)
	}

	rows, err := cs.executeQuery(ctx, action, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer cs.closeRows(ctx, rows)

	inventory := make([]InventoryRow, 0)

	for rows.Next() {
		var row InventoryRow
		var itemID string
		var state, condition string

		if scanErr := rows.Scan(
			&itemID, &row.BookISBN, &row.Barcode,
			&state, &row.Location, &condition,
			&row.BookTitle,
		); scanErr != nil {
			return nil, cs.scanError(ctx, scanErr)
		}

		parsedID, parseErr := uuid.Parse(itemID)
		if parseErr != nil {
			return nil, cs.scanError(ctx, parseErr)
		}

		row.ID = parsedID
		row.State = circulation.ItemState(state)
		row.Condition = circulation.ItemCondition(condition)
		inventory = append(inventory, row)
	}

	return inventory, nil
}

func (cs *CirculationStore) selectItems() *goqu.SelectDataset {
	return cs.builder().
		From(cs.itemsTable()).
		Select(colID, colBookISBN, colBarcode, colState, colLocation, colCondition)
}

func (cs *CirculationStore) scanItem(ctx context.Context, rows adapters.DBRows) (circulation.Item, error) {
	var item circulation.Item
	var itemID, state, condition string

	if err := rows.Scan(&itemID, &item.BookISBN, &item.Barcode, &state, &item.Location, &condition); err != nil {
		return circulation.Item{}, cs.scanError(ctx, err)
	}

	parsedID, parseErr := uuid.Parse(itemID)
	if parseErr != nil {
		return circulation.Item{}, cs.scanError(ctx, parseErr)
	}

	item.ID = parsedID
	item.State = circulation.ItemState(state)
	item.Condition = circulation.ItemCondition(condition)

	return item, nil
}

// itemsCol, booksCol etc. qualify column names for joined queries. The
// prefix configured on the store applies to the table part as well.

func (cs *CirculationStore) itemsCol(col string) string   { return cs.itemsTable() + "." + col }
func (cs *CirculationStore) booksCol(col string) string   { return cs.booksTable() + "." + col }
func (cs *CirculationStore) patronsCol(col string) string { return cs.patronsTable() + "." + col }
func (cs *CirculationStore) loansCol(col string) string   { return cs.loansTable() + "." + col }
func (cs *CirculationStore) finesCol(col string) string   { return cs.finesTable() + "." + col }
