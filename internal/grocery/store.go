// Package grocery provides household grocery lists. Pushing a recipe's
// ingredients onto a list merges quantities with matching open lines
// instead of duplicating them.
package grocery

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var (
	ErrListNotFound = errors.New("grocery list not found")
	ErrListNotOwned = errors.New("grocery list belongs to another household")
	ErrItemNotFound = errors.New("grocery item not found")
)

// DefaultListName is the list auto-created for a household's first push.
const DefaultListName = "Groceries"

// List is a named grocery list.
type List struct {
	ID          uuid.UUID `json:"id"`
	HouseholdID uuid.UUID `json:"household_id"`
	Name        string    `json:"name"`
	Items       []Item    `json:"items,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Item is one line on a grocery list. RecipeID records which recipe
// pushed the line, or is Nil for manually added items.
type Item struct {
	ID           uuid.UUID `json:"id"`
	ListID       uuid.UUID `json:"list_id"`
	IngredientID string    `json:"ingredient_id"`
	Name         string    `json:"name"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
	RecipeID     uuid.UUID `json:"recipe_id,omitempty"`
	Checked      bool      `json:"checked"`
	CreatedAt    time.Time `json:"created_at"`
}

// IngredientLine is the input shape for PushIngredients.
type IngredientLine struct {
	IngredientID string
	Name         string
	Quantity     float64
	Unit         string
}

// MergeStats reports what a push did to the list.
type MergeStats struct {
	ItemsMerged int `json:"items_merged"`
	ItemsAdded  int `json:"items_added"`
}

// Store manages grocery persistence in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a grocery store using the given database path.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS grocery_lists (
			id TEXT PRIMARY KEY,
			household_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS grocery_items (
			id TEXT PRIMARY KEY,
			list_id TEXT NOT NULL REFERENCES grocery_lists(id),
			ingredient_id TEXT NOT NULL,
			name TEXT NOT NULL,
			quantity REAL NOT NULL DEFAULT 0,
			unit TEXT NOT NULL DEFAULT '',
			recipe_id TEXT,
			checked INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_grocery_lists_household ON grocery_lists(household_id);
		CREATE INDEX IF NOT EXISTS idx_grocery_items_list ON grocery_items(list_id);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateList creates a new named list for a household.
func (s *Store) CreateList(householdID uuid.UUID, name string) (*List, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	now := time.Now().UTC()

	_, err = s.db.Exec(`
		INSERT INTO grocery_lists (id, household_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), householdID.String(), name, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}

	return &List{ID: id, HouseholdID: householdID, Name: name, CreatedAt: now}, nil
}

// DefaultList returns the household's oldest list, creating one named
// "Groceries" when the household has none.
func (s *Store) DefaultList(householdID uuid.UUID) (*List, error) {
	row := s.db.QueryRow(`
		SELECT id, household_id, name, created_at FROM grocery_lists
		WHERE household_id = ? ORDER BY created_at LIMIT 1
	`, householdID.String())

	l, err := scanList(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s.CreateList(householdID, DefaultListName)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Lists returns all of a household's lists without items.
func (s *Store) Lists(householdID uuid.UUID) ([]*List, error) {
	rows, err := s.db.Query(`
		SELECT id, household_id, name, created_at FROM grocery_lists
		WHERE household_id = ? ORDER BY created_at
	`, householdID.String())
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	var result []*List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

// GetList returns a list with its items, enforcing ownership.
func (s *Store) GetList(householdID, listID uuid.UUID) (*List, error) {
	l, err := s.ownedList(householdID, listID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT id, list_id, ingredient_id, name, quantity, unit, recipe_id, checked, created_at
		FROM grocery_items WHERE list_id = ? ORDER BY checked, created_at
	`, listID.String())
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		l.Items = append(l.Items, *item)
	}
	return l, rows.Err()
}

// AddItem appends a manually entered item to a list.
func (s *Store) AddItem(householdID, listID uuid.UUID, line IngredientLine) (*Item, error) {
	if _, err := s.ownedList(householdID, listID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	now := time.Now().UTC()

	_, err = s.db.Exec(`
		INSERT INTO grocery_items (id, list_id, ingredient_id, name, quantity, unit, recipe_id, checked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, 0, ?)
	`, id.String(), listID.String(), line.IngredientID, line.Name, line.Quantity, line.Unit,
		now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	return &Item{
		ID: id, ListID: listID,
		IngredientID: line.IngredientID, Name: line.Name,
		Quantity: line.Quantity, Unit: line.Unit,
		CreatedAt: now,
	}, nil
}

// RemoveItem deletes an item, enforcing household ownership via the
// item's list.
func (s *Store) RemoveItem(householdID, itemID uuid.UUID) (*Item, error) {
	row := s.db.QueryRow(`
		SELECT i.id, i.list_id, i.ingredient_id, i.name, i.quantity, i.unit, i.recipe_id, i.checked, i.created_at,
			l.household_id
		FROM grocery_items i JOIN grocery_lists l ON l.id = i.list_id
		WHERE i.id = ?
	`, itemID.String())

	var item Item
	var idStr, listStr, createdStr, hhStr string
	var recipeID sql.NullString
	err := row.Scan(&idStr, &listStr, &item.IngredientID, &item.Name, &item.Quantity,
		&item.Unit, &recipeID, &item.Checked, &createdStr, &hhStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	if hhStr != householdID.String() {
		return nil, ErrListNotOwned
	}

	if item.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse item id: %w", err)
	}
	if item.ListID, err = uuid.Parse(listStr); err != nil {
		return nil, fmt.Errorf("parse list id: %w", err)
	}
	if recipeID.Valid {
		if item.RecipeID, err = uuid.Parse(recipeID.String); err != nil {
			return nil, fmt.Errorf("parse recipe id: %w", err)
		}
	}
	if item.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	if _, err := s.db.Exec(`DELETE FROM grocery_items WHERE id = ?`, itemID.String()); err != nil {
		return nil, fmt.Errorf("delete item: %w", err)
	}
	return &item, nil
}

// SetChecked marks an item bought or unbought.
func (s *Store) SetChecked(householdID, itemID uuid.UUID, checked bool) error {
	res, err := s.db.Exec(`
		UPDATE grocery_items SET checked = ?
		WHERE id = ? AND list_id IN (SELECT id FROM grocery_lists WHERE household_id = ?)
	`, checked, itemID.String(), householdID.String())
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// PushIngredients adds a recipe's ingredient lines to a list in one
// transaction. A line merges into an existing unchecked item only when
// ingredient identity, unit, display name, and source recipe all match
// exactly; quantities are summed. Anything else becomes a new line, so
// "500 g chicken" and "1 lb chicken" stay separate rather than being
// converted.
func (s *Store) PushIngredients(householdID, listID, recipeID uuid.UUID, lines []IngredientLine) (MergeStats, error) {
	var stats MergeStats

	if _, err := s.ownedList(householdID, listID); err != nil {
		return stats, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return stats, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, line := range lines {
		var existingID string
		err := tx.QueryRow(`
			SELECT id FROM grocery_items
			WHERE list_id = ? AND ingredient_id = ? AND unit = ? AND name = ? AND recipe_id = ? AND checked = 0
			LIMIT 1
		`, listID.String(), line.IngredientID, line.Unit, line.Name, recipeID.String()).Scan(&existingID)

		switch {
		case err == nil:
			if _, err := tx.Exec(`UPDATE grocery_items SET quantity = quantity + ? WHERE id = ?`,
				line.Quantity, existingID); err != nil {
				return MergeStats{}, fmt.Errorf("merge item: %w", err)
			}
			stats.ItemsMerged++

		case errors.Is(err, sql.ErrNoRows):
			id, err := uuid.NewV7()
			if err != nil {
				return MergeStats{}, fmt.Errorf("generate id: %w", err)
			}
			if _, err := tx.Exec(`
				INSERT INTO grocery_items (id, list_id, ingredient_id, name, quantity, unit, recipe_id, checked, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
			`, id.String(), listID.String(), line.IngredientID, line.Name, line.Quantity, line.Unit,
				recipeID.String(), now); err != nil {
				return MergeStats{}, fmt.Errorf("insert item: %w", err)
			}
			stats.ItemsAdded++

		default:
			return MergeStats{}, fmt.Errorf("query existing item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return MergeStats{}, fmt.Errorf("commit: %w", err)
	}
	return stats, nil
}

// OpenItemCount returns unchecked items across all households. Used
// for operational stats.
func (s *Store) OpenItemCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM grocery_items WHERE checked = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

func (s *Store) ownedList(householdID, listID uuid.UUID) (*List, error) {
	row := s.db.QueryRow(`
		SELECT id, household_id, name, created_at FROM grocery_lists WHERE id = ?
	`, listID.String())

	l, err := scanList(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListNotFound
	}
	if err != nil {
		return nil, err
	}
	if l.HouseholdID != householdID {
		return nil, ErrListNotOwned
	}
	return l, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanList(sc rowScanner) (*List, error) {
	var l List
	var idStr, hhStr, createdStr string
	if err := sc.Scan(&idStr, &hhStr, &l.Name, &createdStr); err != nil {
		return nil, err
	}
	var err error
	if l.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse list id: %w", err)
	}
	if l.HouseholdID, err = uuid.Parse(hhStr); err != nil {
		return nil, fmt.Errorf("parse household id: %w", err)
	}
	if l.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &l, nil
}

func scanItem(sc rowScanner) (*Item, error) {
	var item Item
	var idStr, listStr, createdStr string
	var recipeID sql.NullString

	err := sc.Scan(&idStr, &listStr, &item.IngredientID, &item.Name,
		&item.Quantity, &item.Unit, &recipeID, &item.Checked, &createdStr)
	if err != nil {
		return nil, err
	}
	if item.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse item id: %w", err)
	}
	if item.ListID, err = uuid.Parse(listStr); err != nil {
		return nil, fmt.Errorf("parse list id: %w", err)
	}
	if recipeID.Valid {
		if item.RecipeID, err = uuid.Parse(recipeID.String); err != nil {
			return nil, fmt.Errorf("parse recipe id: %w", err)
		}
	}
	if item.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &item, nil
}
