package auth

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewStore(dbPath, logger)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateUserAndAuthenticate(t *testing.T) {
	store := newTestStore(t)

	u, err := store.CreateUser("Sam@Example.com", "correct horse", "Sam")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.Email != "sam@example.com" {
		t.Errorf("email = %q, want lowercased", u.Email)
	}

	got, err := store.Authenticate("sam@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID = %v, want %v", got.ID, u.ID)
	}

	if _, err := store.Authenticate("sam@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := store.Authenticate("nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.CreateUser("sam@example.com", "correct horse", "Sam"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if _, err := store.CreateUser("sam@example.com", "other password", "Other"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate error = %v, want ErrEmailTaken", err)
	}
}

func TestCreateUserShortPassword(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateUser("sam@example.com", "short", "Sam"); err == nil {
		t.Error("expected error for short password")
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t)

	u, err := store.CreateUser("sam@example.com", "correct horse", "Sam")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	sess, err := store.CreateSession(u.ID, 0)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if sess.Token == "" {
		t.Fatal("empty session token")
	}

	got, err := store.GetSession(sess.Token)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("session user = %v, want %v", got.ID, u.ID)
	}

	if err := store.DeleteSession(sess.Token); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := store.GetSession(sess.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetSession() after logout error = %v, want ErrSessionNotFound", err)
	}
}

func TestExpiredSessionRejected(t *testing.T) {
	store := newTestStore(t)

	u, err := store.CreateUser("sam@example.com", "correct horse", "Sam")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	sess, err := store.CreateSession(u.ID, time.Nanosecond)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := store.GetSession(sess.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expired session error = %v, want ErrSessionNotFound", err)
	}
}

func TestSetHouseholdAndMembers(t *testing.T) {
	store := newTestStore(t)

	a, err := store.CreateUser("a@example.com", "correct horse", "A")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	b, err := store.CreateUser("b@example.com", "correct horse", "B")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	hh := uuid.New()
	if err := store.SetHousehold(a.ID, hh); err != nil {
		t.Fatalf("SetHousehold() error = %v", err)
	}
	if err := store.SetHousehold(b.ID, hh); err != nil {
		t.Fatalf("SetHousehold() error = %v", err)
	}

	members, err := store.Members(hh)
	if err != nil {
		t.Fatalf("Members() error = %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}

	n, err := store.ActiveHouseholdCount()
	if err != nil {
		t.Fatalf("ActiveHouseholdCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ActiveHouseholdCount() = %d, want 1", n)
	}
}
