package prefs

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

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

func TestGetReturnsDefaults(t *testing.T) {
	store := newTestStore(t)

	p, err := store.Get(uuid.New())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.HouseholdSize != 2 || p.DefaultServings != 2 {
		t.Errorf("defaults = %+v", p)
	}
	if p.Dietary == nil || p.Dislikes == nil {
		t.Error("default slices must be non-nil for JSON encoding")
	}
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	hh := uuid.New()

	p := &Preferences{
		HouseholdID:     hh,
		Dietary:         []string{"vegetarian"},
		Dislikes:        []string{"cilantro", "olives"},
		HouseholdSize:   4,
		DefaultServings: 4,
	}
	if err := store.Save(p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(hh)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Dietary) != 1 || got.Dietary[0] != "vegetarian" {
		t.Errorf("Dietary = %v", got.Dietary)
	}
	if len(got.Dislikes) != 2 {
		t.Errorf("Dislikes = %v", got.Dislikes)
	}
	if got.HouseholdSize != 4 {
		t.Errorf("HouseholdSize = %d", got.HouseholdSize)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	hh := uuid.New()

	if err := store.Save(&Preferences{HouseholdID: hh, Dietary: []string{"vegan"}, HouseholdSize: 3, DefaultServings: 3}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(&Preferences{HouseholdID: hh, Dietary: nil, HouseholdSize: 5, DefaultServings: 6}); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := store.Get(hh)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Dietary) != 0 {
		t.Errorf("Dietary = %v, want cleared", got.Dietary)
	}
	if got.HouseholdSize != 5 || got.DefaultServings != 6 {
		t.Errorf("got = %+v", got)
	}
}

func TestHouseholdsIsolated(t *testing.T) {
	store := newTestStore(t)
	a := uuid.New()
	b := uuid.New()

	if err := store.Save(&Preferences{HouseholdID: a, Dietary: []string{"keto"}, HouseholdSize: 1, DefaultServings: 1}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(b)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Dietary) != 0 || got.HouseholdSize != 2 {
		t.Errorf("household b got a's prefs: %+v", got)
	}
}
