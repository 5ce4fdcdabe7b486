// Package prefs stores per-household cooking preferences that shape
// the sous chef's suggestions.
package prefs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Preferences holds a household's dietary profile. A household that
// has never saved preferences gets the zero-config defaults from
// Default.
type Preferences struct {
	HouseholdID     uuid.UUID `json:"household_id"`
	Dietary         []string  `json:"dietary"`
	Dislikes        []string  `json:"dislikes"`
	HouseholdSize   int       `json:"household_size"`
	DefaultServings int       `json:"default_servings"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// Default returns the preferences used before a household saves any.
func Default(householdID uuid.UUID) *Preferences {
	return &Preferences{
		HouseholdID:     householdID,
		Dietary:         []string{},
		Dislikes:        []string{},
		HouseholdSize:   2,
		DefaultServings: 2,
	}
}

// Store manages preference persistence in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a preferences store using the given database path.
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
		CREATE TABLE IF NOT EXISTS preferences (
			household_id TEXT PRIMARY KEY,
			dietary TEXT NOT NULL DEFAULT '[]',
			dislikes TEXT NOT NULL DEFAULT '[]',
			household_size INTEGER NOT NULL DEFAULT 2,
			default_servings INTEGER NOT NULL DEFAULT 2,
			updated_at TEXT NOT NULL
		);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns a household's preferences, or defaults when the
// household has never saved any. Never returns a not-found error.
func (s *Store) Get(householdID uuid.UUID) (*Preferences, error) {
	var p Preferences
	var dietary, dislikes, updatedStr string

	err := s.db.QueryRow(`
		SELECT dietary, dislikes, household_size, default_servings, updated_at
		FROM preferences WHERE household_id = ?
	`, householdID.String()).Scan(&dietary, &dislikes, &p.HouseholdSize, &p.DefaultServings, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Default(householdID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}

	p.HouseholdID = householdID
	if err := json.Unmarshal([]byte(dietary), &p.Dietary); err != nil {
		return nil, fmt.Errorf("parse dietary: %w", err)
	}
	if err := json.Unmarshal([]byte(dislikes), &p.Dislikes); err != nil {
		return nil, fmt.Errorf("parse dislikes: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedStr); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &p, nil
}

// Save upserts a household's preferences.
func (s *Store) Save(p *Preferences) error {
	if p.Dietary == nil {
		p.Dietary = []string{}
	}
	if p.Dislikes == nil {
		p.Dislikes = []string{}
	}

	dietary, err := json.Marshal(p.Dietary)
	if err != nil {
		return fmt.Errorf("encode dietary: %w", err)
	}
	dislikes, err := json.Marshal(p.Dislikes)
	if err != nil {
		return fmt.Errorf("encode dislikes: %w", err)
	}

	p.UpdatedAt = time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO preferences (household_id, dietary, dislikes, household_size, default_servings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(household_id) DO UPDATE SET
			dietary = excluded.dietary,
			dislikes = excluded.dislikes,
			household_size = excluded.household_size,
			default_servings = excluded.default_servings,
			updated_at = excluded.updated_at
	`, p.HouseholdID.String(), string(dietary), string(dislikes),
		p.HouseholdSize, p.DefaultServings, p.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
