// Package planner provides the household meal calendar: recipes (or
// free-text notes) scheduled on dates by meal type.
package planner

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("planned meal not found")
	ErrNotOwned = errors.New("planned meal belongs to another household")
)

// DateFormat is the calendar date layout used across the planner.
const DateFormat = "2006-01-02"

// Meal types in display order.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)

// ValidMealType reports whether s is one of the known meal types.
func ValidMealType(s string) bool {
	switch s {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// Meal is one scheduled entry on the calendar. Either RecipeID points
// at a stored recipe, or Note holds a free-text entry ("leftovers",
// "eating out"); Title caches the recipe title at scheduling time so
// the calendar renders without a join.
type Meal struct {
	ID          uuid.UUID `json:"id"`
	HouseholdID uuid.UUID `json:"household_id"`
	Date        string    `json:"date"` // 2006-01-02
	MealType    string    `json:"meal_type"`
	RecipeID    uuid.UUID `json:"recipe_id,omitempty"`
	Title       string    `json:"title"`
	Note        string    `json:"note,omitempty"`
	Servings    int       `json:"servings,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store manages planner persistence in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a planner store using the given database path.
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
		CREATE TABLE IF NOT EXISTS planner_meals (
			id TEXT PRIMARY KEY,
			household_id TEXT NOT NULL,
			date TEXT NOT NULL,
			meal_type TEXT NOT NULL,
			recipe_id TEXT,
			title TEXT NOT NULL,
			note TEXT,
			servings INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_planner_household_date ON planner_meals(household_id, date);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add schedules a meal. Date must already be validated as 2006-01-02
// and MealType as a known type; multiple meals on the same slot are
// allowed (two dishes for one dinner).
func (s *Store) Add(m *Meal) error {
	if m.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate id: %w", err)
		}
		m.ID = id
	}
	m.CreatedAt = time.Now().UTC()

	var recipeID sql.NullString
	if m.RecipeID != uuid.Nil {
		recipeID = sql.NullString{String: m.RecipeID.String(), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO planner_meals (id, household_id, date, meal_type, recipe_id, title, note, servings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID.String(), m.HouseholdID.String(), m.Date, m.MealType,
		recipeID, m.Title, nullStr(m.Note), m.Servings,
		m.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert meal: %w", err)
	}
	return nil
}

// Remove deletes a scheduled meal owned by the given household.
func (s *Store) Remove(householdID, id uuid.UUID) (*Meal, error) {
	m, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if m.HouseholdID != householdID {
		return nil, ErrNotOwned
	}

	if _, err := s.db.Exec(`DELETE FROM planner_meals WHERE id = ?`, id.String()); err != nil {
		return nil, fmt.Errorf("delete meal: %w", err)
	}
	return m, nil
}

// Week returns all meals in the seven days starting at start,
// ordered by date then meal type order then creation time.
func (s *Store) Week(householdID uuid.UUID, start time.Time) ([]*Meal, error) {
	from := start.Format(DateFormat)
	to := start.AddDate(0, 0, 7).Format(DateFormat)

	rows, err := s.db.Query(`
		SELECT id, household_id, date, meal_type, recipe_id, title, note, servings, created_at
		FROM planner_meals
		WHERE household_id = ? AND date >= ? AND date < ?
		ORDER BY date,
			CASE meal_type
				WHEN 'breakfast' THEN 0
				WHEN 'lunch' THEN 1
				WHEN 'dinner' THEN 2
				ELSE 3
			END,
			created_at
	`, householdID.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("query week: %w", err)
	}
	defer rows.Close()

	var result []*Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// CountOnDate returns how many meals a household has planned on a date.
func (s *Store) CountOnDate(householdID uuid.UUID, date string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM planner_meals WHERE household_id = ? AND date = ?`,
		householdID.String(), date).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count meals: %w", err)
	}
	return n, nil
}

// CountAllOnDate returns how many meals are planned on a date across
// all households. Used for operational stats.
func (s *Store) CountAllOnDate(date string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM planner_meals WHERE date = ?`, date).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count meals: %w", err)
	}
	return n, nil
}

func (s *Store) get(id uuid.UUID) (*Meal, error) {
	row := s.db.QueryRow(`
		SELECT id, household_id, date, meal_type, recipe_id, title, note, servings, created_at
		FROM planner_meals WHERE id = ?
	`, id.String())

	m, err := scanMeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeal(sc rowScanner) (*Meal, error) {
	var m Meal
	var idStr, hhStr, createdStr string
	var recipeID, note sql.NullString

	err := sc.Scan(&idStr, &hhStr, &m.Date, &m.MealType, &recipeID, &m.Title, &note, &m.Servings, &createdStr)
	if err != nil {
		return nil, err
	}

	if m.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse meal id: %w", err)
	}
	if m.HouseholdID, err = uuid.Parse(hhStr); err != nil {
		return nil, fmt.Errorf("parse household id: %w", err)
	}
	if recipeID.Valid {
		if m.RecipeID, err = uuid.Parse(recipeID.String); err != nil {
			return nil, fmt.Errorf("parse recipe id: %w", err)
		}
	}
	m.Note = note.String
	if m.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &m, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
