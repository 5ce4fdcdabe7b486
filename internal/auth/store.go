// Package auth provides user accounts and cookie sessions. Passwords
// are stored as bcrypt hashes; session tokens are random and opaque.
package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrSessionNotFound    = errors.New("session not found or expired")
	ErrUserNotFound       = errors.New("user not found")
)

// DefaultSessionTTL is how long a login stays valid.
const DefaultSessionTTL = 30 * 24 * time.Hour

// User is an account. HouseholdID is Nil until the user creates or
// joins a household.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	HouseholdID uuid.UUID `json:"household_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is an active login.
type Session struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store manages users and sessions in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates an auth store using the given database path.
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
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			household_id TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_household ON users(household_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser registers a new account.
func (s *Store) CreateUser(email, password, name string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	now := time.Now().UTC()

	_, err = s.db.Exec(`
		INSERT INTO users (id, email, password_hash, name, household_id, created_at)
		VALUES (?, ?, ?, ?, NULL, ?)
	`, id.String(), email, string(hash), name, now.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &User{ID: id, Email: email, Name: name, CreatedAt: now}, nil
}

// Authenticate checks email and password, returning the user on
// success. Always returns ErrInvalidCredentials on failure so callers
// cannot distinguish a wrong password from an unknown email.
func (s *Store) Authenticate(email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var u User
	var idStr, hash, createdStr string
	var householdID sql.NullString
	err := s.db.QueryRow(`
		SELECT id, password_hash, name, household_id, created_at FROM users WHERE email = ?
	`, email).Scan(&idStr, &hash, &u.Name, &householdID, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	u.Email = email
	if u.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	if householdID.Valid {
		if u.HouseholdID, err = uuid.Parse(householdID.String); err != nil {
			return nil, fmt.Errorf("parse household id: %w", err)
		}
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &u, nil
}

// CreateSession issues a new opaque session token for a user.
func (s *Store) CreateSession(userID uuid.UUID, ttl time.Duration) (*Session, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(raw)

	now := time.Now().UTC()
	expires := now.Add(ttl)
	_, err := s.db.Exec(`
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, token, userID.String(), expires.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return &Session{Token: token, UserID: userID, ExpiresAt: expires}, nil
}

// GetSession resolves a session token to its user, rejecting expired
// sessions.
func (s *Store) GetSession(token string) (*User, error) {
	var userID, expiresStr string
	err := s.db.QueryRow(`SELECT user_id, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&userID, &expiresStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	expires, err := time.Parse(time.RFC3339, expiresStr)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if time.Now().UTC().After(expires) {
		_, _ = s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
		return nil, ErrSessionNotFound
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	return s.GetUser(id)
}

// DeleteSession logs a session out. Unknown tokens are a no-op.
func (s *Store) DeleteSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(id uuid.UUID) (*User, error) {
	row := s.db.QueryRow(`
		SELECT id, email, name, household_id, created_at FROM users WHERE id = ?
	`, id.String())
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// SetHousehold attaches a user to a household.
func (s *Store) SetHousehold(userID, householdID uuid.UUID) error {
	res, err := s.db.Exec(`UPDATE users SET household_id = ? WHERE id = ?`,
		householdID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Members lists the users in a household.
func (s *Store) Members(householdID uuid.UUID) ([]*User, error) {
	rows, err := s.db.Query(`
		SELECT id, email, name, household_id, created_at FROM users
		WHERE household_id = ? ORDER BY created_at
	`, householdID.String())
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var result []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// ActiveHouseholdCount counts households with at least one member.
// Used for operational stats.
func (s *Store) ActiveHouseholdCount() (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT household_id) FROM users WHERE household_id IS NOT NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count households: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(sc rowScanner) (*User, error) {
	var u User
	var idStr, createdStr string
	var householdID sql.NullString

	err := sc.Scan(&idStr, &u.Email, &u.Name, &householdID, &createdStr)
	if err != nil {
		return nil, err
	}
	if u.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	if householdID.Valid {
		if u.HouseholdID, err = uuid.Parse(householdID.String); err != nil {
			return nil, fmt.Errorf("parse household id: %w", err)
		}
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &u, nil
}
