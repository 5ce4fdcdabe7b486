// Package household manages households and the invite codes members
// use to bring others in.
package household

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("household not found")
	ErrInviteInvalid = errors.New("invite code is invalid or expired")
)

// DefaultInviteTTL is how long an invite code stays redeemable.
const DefaultInviteTTL = 7 * 24 * time.Hour

// inviteAlphabet avoids characters that read ambiguously when typed
// from a phone screen (0/O, 1/I/L).
const inviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const inviteCodeLen = 8

// Household is the tenancy unit: recipes, plans, lists, and
// preferences all belong to a household.
type Household struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Invite is a redeemable join code.
type Invite struct {
	Code        string    `json:"code"`
	HouseholdID uuid.UUID `json:"household_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Store manages household persistence in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a household store using the given database path.
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
		CREATE TABLE IF NOT EXISTS households (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS household_invites (
			code TEXT PRIMARY KEY,
			household_id TEXT NOT NULL REFERENCES households(id),
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_invites_household ON household_invites(household_id);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create makes a new household.
func (s *Store) Create(name string) (*Household, error) {
	if name == "" {
		name = "Home"
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	now := time.Now().UTC()

	_, err = s.db.Exec(`
		INSERT INTO households (id, name, created_at) VALUES (?, ?, ?)
	`, id.String(), name, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}

	return &Household{ID: id, Name: name, CreatedAt: now}, nil
}

// Get fetches a household by id.
func (s *Store) Get(id uuid.UUID) (*Household, error) {
	var h Household
	var idStr, createdStr string
	err := s.db.QueryRow(`SELECT id, name, created_at FROM households WHERE id = ?`, id.String()).
		Scan(&idStr, &h.Name, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query household: %w", err)
	}

	if h.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse household id: %w", err)
	}
	if h.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &h, nil
}

// CreateInvite issues a join code for a household. Codes stay valid
// until expiry and can be redeemed by multiple people, so one fridge
// printout can onboard the whole family.
func (s *Store) CreateInvite(householdID uuid.UUID, ttl time.Duration) (*Invite, error) {
	if _, err := s.Get(householdID); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expires := now.Add(ttl)
	_, err = s.db.Exec(`
		INSERT INTO household_invites (code, household_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, code, householdID.String(), expires.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}

	return &Invite{Code: code, HouseholdID: householdID, ExpiresAt: expires}, nil
}

// Redeem resolves an invite code to its household.
func (s *Store) Redeem(code string) (*Household, error) {
	var householdID, expiresStr string
	err := s.db.QueryRow(`
		SELECT household_id, expires_at FROM household_invites WHERE code = ?
	`, code).Scan(&householdID, &expiresStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInviteInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("query invite: %w", err)
	}

	expires, err := time.Parse(time.RFC3339, expiresStr)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if time.Now().UTC().After(expires) {
		return nil, ErrInviteInvalid
	}

	id, err := uuid.Parse(householdID)
	if err != nil {
		return nil, fmt.Errorf("parse household id: %w", err)
	}
	return s.Get(id)
}

func generateCode() (string, error) {
	raw := make([]byte, inviteCodeLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	code := make([]byte, inviteCodeLen)
	for i, b := range raw {
		code[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(code), nil
}
