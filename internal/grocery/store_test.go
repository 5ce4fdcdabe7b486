package grocery

import (
	"errors"
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

func TestDefaultListCreatedOnce(t *testing.T) {
	store := newTestStore(t)
	hh := uuid.New()

	first, err := store.DefaultList(hh)
	if err != nil {
		t.Fatalf("DefaultList() error = %v", err)
	}
	if first.Name != DefaultListName {
		t.Errorf("Name = %q, want %q", first.Name, DefaultListName)
	}

	second, err := store.DefaultList(hh)
	if err != nil {
		t.Fatalf("second DefaultList() error = %v", err)
	}
	if second.ID != first.ID {
		t.Error("DefaultList() created a second list")
	}
}

func TestPushMergesExactMatches(t *testing.T) {
	store := newTestStore(t)
	hh := uuid.New()
	recipe := uuid.New()

	list, err := store.CreateList(hh, "Week 3")
	if err != nil {
		t.Fatalf("CreateList() error = %v", err)
	}

	lines := []IngredientLine{
		{IngredientID: "rice", Name: "rice", Quantity: 1, Unit: "cup"},
	}
	if _, err := store.PushIngredients(hh, list.ID, recipe, lines); err != nil {
		t.Fatalf("first PushIngredients() error = %v", err)
	}

	stats, err := store.PushIngredients(hh, list.ID, recipe, lines)
	if err != nil {
		t.Fatalf("second PushIngredients() error = %v", err)
	}
	if stats.ItemsMerged != 1 || stats.ItemsAdded != 0 {
		t.Errorf("stats = %+v, want 1 merged / 0 added", stats)
	}

	got, err := store.GetList(hh, list.ID)
	if err != nil {
		t.Fatalf("GetList() error = %v", err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(got.Items))
	}
	if got.Items[0].Quantity != 2 {
		t.Errorf("quantity = %v, want 2", got.Items[0].Quantity)
	}
}

func TestPushDifferentUnitAddsLine(t *testing.T) {
	store := newTestStore(t)
	hh := uuid.New()
	recipe := uuid.New()

	list, err := store.CreateList(hh, "Week 3")
	if err != nil {
		t.Fatalf("CreateList() error = %v", err)
	}

	if _, err := store.PushIngredients(hh, list.ID, recipe, []IngredientLine{
		{IngredientID: "chicken-breast", Name: "chicken breast", Quantity: 500, Unit: "g"},
	}); err != nil {
		t.Fatalf("PushIngredients() error = %v", err)
	}

	stats, err := store.PushIngredients(hh, list.ID, recipe, []IngredientLine{
		{IngredientID: "chicken-breast", Name: "chicken breast", Quantity: 1, Unit: "lb"},
	})
	if err != nil {
		t.Fatalf("PushIngredients() error = %v", err)
	}
	if stats.ItemsMerged != 0 || stats.ItemsAdded != 1 {
		t.Errorf("stats = %+v, want 0 merged / 1 added", stats)
	}

	got, err := store.GetList(hh, list.ID)
	if err != nil {
		t.Fatalf("GetList() error = %v", err)
	}
	if len(got.Items) != 2 {
		t.Errorf("items = %d, want 2 separate lines for g vs lb", len(got.Items))
	}
}

func TestPushDifferentRecipeAddsLine(t *testing.T) {
	store := newTestStore(t)
	hh := uuid.New()

	list, err := store.CreateList(hh, "Week 3")
	if err != nil {
		t.Fatalf("CreateList() error = %v", err)
	}

	line := []IngredientLine{{IngredientID: "rice", Name: "rice", Quantity: 1, Unit: "cup"}}
	if _, err := store.PushIngredients(hh, list.ID, uuid.New(), line); err != nil {
		t.Fatalf("PushIngredients() error = %v", err)
	}
	stats, err := store.PushIngredients(hh, list.ID, uuid.New(), line)
	if err != nil {
		t.Fatalf("PushIngredients() error = %v", err)
	}
	if stats.ItemsAdded != 1 {
		t.Errorf("stats = %+v, want a new line for a different source recipe", stats)
	}
}

func TestPushSkipsCheckedItems(t *testing.T) {
	store := newTestStore(t)
	hh := uuid.New()
	recipe := uuid.New()

	list, err := store.CreateList(hh, "Week 3")
	if err != nil {
		t.Fatalf("CreateList() error = %v", err)
	}

	line := []IngredientLine{{IngredientID: "rice", Name: "rice", Quantity: 1, Unit: "cup"}}
	if _, err := store.PushIngredients(hh, list.ID, recipe, line); err != nil {
		t.Fatalf("PushIngredients() error = %v", err)
	}

	got, err := store.GetList(hh, list.ID)
	if err != nil {
		t.Fatalf("GetList() error = %v", err)
	}
	if err := store.SetChecked(hh, got.Items[0].ID, true); err != nil {
		t.Fatalf("SetChecked() error = %v", err)
	}

	stats, err := store.PushIngredients(hh, list.ID, recipe, line)
	if err != nil {
		t.Fatalf("PushIngredients() error = %v", err)
	}
	if stats.ItemsAdded != 1 || stats.ItemsMerged != 0 {
		t.Errorf("stats = %+v, want a fresh line instead of merging into a bought one", stats)
	}
}

func TestAddAndRemoveItem(t *testing.T) {
	store := newTestStore(t)
	hh := uuid.New()

	list, err := store.CreateList(hh, "Week 3")
	if err != nil {
		t.Fatalf("CreateList() error = %v", err)
	}

	item, err := store.AddItem(hh, list.ID, IngredientLine{IngredientID: "milk", Name: "milk", Quantity: 1, Unit: "l"})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if item.RecipeID != uuid.Nil {
		t.Errorf("manual item has recipe_id = %v", item.RecipeID)
	}

	removed, err := store.RemoveItem(hh, item.ID)
	if err != nil {
		t.Fatalf("RemoveItem() error = %v", err)
	}
	if removed.Name != "milk" {
		t.Errorf("removed = %+v", removed)
	}

	if _, err := store.RemoveItem(hh, item.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("second RemoveItem() error = %v, want ErrItemNotFound", err)
	}
}

func TestListOwnershipEnforced(t *testing.T) {
	store := newTestStore(t)
	owner := uuid.New()

	list, err := store.CreateList(owner, "Week 3")
	if err != nil {
		t.Fatalf("CreateList() error = %v", err)
	}

	if _, err := store.GetList(uuid.New(), list.ID); !errors.Is(err, ErrListNotOwned) {
		t.Errorf("GetList() error = %v, want ErrListNotOwned", err)
	}
	if _, err := store.PushIngredients(uuid.New(), list.ID, uuid.New(), nil); !errors.Is(err, ErrListNotOwned) {
		t.Errorf("PushIngredients() error = %v, want ErrListNotOwned", err)
	}
	if _, err := store.GetList(owner, uuid.New()); !errors.Is(err, ErrListNotFound) {
		t.Errorf("GetList() error = %v, want ErrListNotFound", err)
	}
}
