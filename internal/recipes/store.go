// Package recipes provides household-scoped recipe storage.
package recipes

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors distinguishing "absent" from "owned by another household".
var (
	ErrNotFound = errors.New("recipe not found")
	ErrNotOwned = errors.New("recipe belongs to another household")
)

const recipeColumns = "id, household_id, title, description, instructions, servings, prep_minutes, cook_minutes, tags, created_at, updated_at"

// Recipe is a household's recipe with its ingredient lines.
type Recipe struct {
	ID           uuid.UUID    `json:"id"`
	HouseholdID  uuid.UUID    `json:"household_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Instructions string       `json:"instructions,omitempty"`
	Servings     int          `json:"servings"`
	PrepMinutes  int          `json:"prep_minutes,omitempty"`
	CookMinutes  int          `json:"cook_minutes,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Ingredients  []Ingredient `json:"ingredients,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Ingredient is one line of a recipe. IngredientID is a normalized
// identity slug (e.g. "rice", "chicken-breast") used for grocery list
// merging; Name is the display form.
type Ingredient struct {
	ID           uuid.UUID `json:"id"`
	IngredientID string    `json:"ingredient_id"`
	Name         string    `json:"name"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
	Position     int       `json:"position"`
}

// Store manages recipe persistence in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a recipe store using the given database path.
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
		CREATE TABLE IF NOT EXISTS recipes (
			id TEXT PRIMARY KEY,
			household_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			instructions TEXT,
			servings INTEGER NOT NULL DEFAULT 2,
			prep_minutes INTEGER NOT NULL DEFAULT 0,
			cook_minutes INTEGER NOT NULL DEFAULT 0,
			tags TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			deleted_at TEXT
		);

		CREATE TABLE IF NOT EXISTS recipe_ingredients (
			id TEXT PRIMARY KEY,
			recipe_id TEXT NOT NULL REFERENCES recipes(id),
			ingredient_id TEXT NOT NULL,
			name TEXT NOT NULL,
			quantity REAL NOT NULL DEFAULT 0,
			unit TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_recipes_household ON recipes(household_id);
		CREATE INDEX IF NOT EXISTS idx_recipes_deleted ON recipes(deleted_at);
		CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_recipe ON recipe_ingredients(recipe_id);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a recipe and its ingredient lines in one transaction.
// A new UUIDv7 is assigned when the recipe has no ID.
func (s *Store) Create(r *Recipe) error {
	now := time.Now().UTC()

	if r.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate id: %w", err)
		}
		r.ID = id
	}
	if r.Servings <= 0 {
		r.Servings = 2
	}
	r.CreatedAt = now
	r.UpdatedAt = now

	tags, err := encodeTags(r.Tags)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO recipes (id, household_id, title, description, instructions, servings, prep_minutes, cook_minutes, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID.String(), r.HouseholdID.String(), r.Title, nullStr(r.Description),
		nullStr(r.Instructions), r.Servings, r.PrepMinutes, r.CookMinutes,
		tags, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert recipe: %w", err)
	}

	if err := insertIngredients(tx, r.ID, r.Ingredients); err != nil {
		return err
	}
	for i := range r.Ingredients {
		r.Ingredients[i].Position = i
	}

	return tx.Commit()
}

// Update rewrites a recipe and replaces its ingredient lines in one
// transaction. Returns ErrNotFound or ErrNotOwned as appropriate.
func (s *Store) Update(r *Recipe) error {
	owner, err := s.ownerOf(r.ID)
	if err != nil {
		return err
	}
	if owner != r.HouseholdID {
		return ErrNotOwned
	}

	now := time.Now().UTC()
	r.UpdatedAt = now

	tags, err := encodeTags(r.Tags)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		UPDATE recipes SET title = ?, description = ?, instructions = ?, servings = ?,
			prep_minutes = ?, cook_minutes = ?, tags = ?, updated_at = ?
		WHERE id = ?
	`, r.Title, nullStr(r.Description), nullStr(r.Instructions), r.Servings,
		r.PrepMinutes, r.CookMinutes, tags, now.Format(time.RFC3339), r.ID.String())
	if err != nil {
		return fmt.Errorf("update recipe: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM recipe_ingredients WHERE recipe_id = ?`, r.ID.String()); err != nil {
		return fmt.Errorf("clear ingredients: %w", err)
	}
	if err := insertIngredients(tx, r.ID, r.Ingredients); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete soft-deletes a recipe owned by the given household.
func (s *Store) Delete(householdID, id uuid.UUID) error {
	owner, err := s.ownerOf(id)
	if err != nil {
		return err
	}
	if owner != householdID {
		return ErrNotOwned
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(`UPDATE recipes SET deleted_at = ? WHERE id = ?`, now, id.String())
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Get retrieves a recipe with its ingredients, enforcing ownership.
func (s *Store) Get(householdID, id uuid.UUID) (*Recipe, error) {
	r, err := s.scanRecipe(s.db.QueryRow(
		`SELECT `+recipeColumns+` FROM recipes WHERE deleted_at IS NULL AND id = ?`,
		id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.HouseholdID != householdID {
		return nil, ErrNotOwned
	}

	r.Ingredients, err = s.ingredientsFor(id)
	if err != nil {
		return nil, fmt.Errorf("load ingredients: %w", err)
	}
	return r, nil
}

// List returns the household's recipes, newest first, without
// ingredient lines. A non-empty search filters title, description,
// and tags with a case-insensitive substring match.
func (s *Store) List(householdID uuid.UUID, search string, limit int) ([]*Recipe, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	query := `SELECT ` + recipeColumns + ` FROM recipes WHERE deleted_at IS NULL AND household_id = ?`
	args := []any{householdID.String()}

	if search != "" {
		query += ` AND (title LIKE ? OR description LIKE ? OR tags LIKE ?)`
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var result []*Recipe
	for rows.Next() {
		r, err := s.scanRecipeRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ownerOf returns the owning household of an active recipe.
func (s *Store) ownerOf(id uuid.UUID) (uuid.UUID, error) {
	var hh string
	err := s.db.QueryRow(
		`SELECT household_id FROM recipes WHERE deleted_at IS NULL AND id = ?`,
		id.String()).Scan(&hh)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("query owner: %w", err)
	}
	return uuid.Parse(hh)
}

func (s *Store) ingredientsFor(recipeID uuid.UUID) ([]Ingredient, error) {
	rows, err := s.db.Query(
		`SELECT id, ingredient_id, name, quantity, unit, position
		 FROM recipe_ingredients WHERE recipe_id = ? ORDER BY position`,
		recipeID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Ingredient
	for rows.Next() {
		var ing Ingredient
		var idStr string
		if err := rows.Scan(&idStr, &ing.IngredientID, &ing.Name, &ing.Quantity, &ing.Unit, &ing.Position); err != nil {
			return nil, err
		}
		ing.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse ingredient id: %w", err)
		}
		result = append(result, ing)
	}
	return result, rows.Err()
}

func insertIngredients(tx *sql.Tx, recipeID uuid.UUID, ingredients []Ingredient) error {
	for i, ing := range ingredients {
		id := ing.ID
		if id == uuid.Nil {
			var err error
			id, err = uuid.NewV7()
			if err != nil {
				return fmt.Errorf("generate ingredient id: %w", err)
			}
		}
		_, err := tx.Exec(`
			INSERT INTO recipe_ingredients (id, recipe_id, ingredient_id, name, quantity, unit, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id.String(), recipeID.String(), ing.IngredientID, ing.Name, ing.Quantity, ing.Unit, i)
		if err != nil {
			return fmt.Errorf("insert ingredient %d: %w", i, err)
		}
	}
	return nil
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRecipe(row *sql.Row) (*Recipe, error)       { return scanRecipeFrom(row) }
func (s *Store) scanRecipeRow(rows *sql.Rows) (*Recipe, error)  { return scanRecipeFrom(rows) }

func scanRecipeFrom(sc rowScanner) (*Recipe, error) {
	var r Recipe
	var idStr, hhStr, createdStr, updatedStr string
	var description, instructions, tags sql.NullString

	err := sc.Scan(&idStr, &hhStr, &r.Title, &description, &instructions,
		&r.Servings, &r.PrepMinutes, &r.CookMinutes, &tags, &createdStr, &updatedStr)
	if err != nil {
		return nil, err
	}

	if r.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse recipe id: %w", err)
	}
	if r.HouseholdID, err = uuid.Parse(hhStr); err != nil {
		return nil, fmt.Errorf("parse household id: %w", err)
	}

	r.Description = description.String
	r.Instructions = instructions.String
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &r.Tags); err != nil {
			return nil, fmt.Errorf("parse tags: %w", err)
		}
	}

	if r.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedStr); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &r, nil
}

// --- SQL helpers ---

func encodeTags(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode tags: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
