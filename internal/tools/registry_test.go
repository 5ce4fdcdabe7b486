package tools

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry(testLogger())
	def := &Definition{
		Name:    "dup",
		Handler: func(context.Context, Identity, map[string]any) Result { return OK(nil) },
	}
	r.Register(def)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	r.Register(def)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(testLogger())
	res := r.Execute(context.Background(), Identity{}, "nope", nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error.Type != ErrorTypeValidation {
		t.Errorf("error type = %q, want %q", res.Error.Type, ErrorTypeValidation)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(&Definition{
		Name: "boom",
		Handler: func(context.Context, Identity, map[string]any) Result {
			panic("handler bug")
		},
	})

	res := r.Execute(context.Background(), Identity{}, "boom", nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error.Type != ErrorTypeInternal {
		t.Errorf("error type = %q, want %q", res.Error.Type, ErrorTypeInternal)
	}
}

func TestMutatesFailsClosed(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(&Definition{
		Name:    "read_thing",
		Mutates: false,
		Handler: func(context.Context, Identity, map[string]any) Result { return OK(nil) },
	})

	if r.Mutates("read_thing") {
		t.Error("read_thing should not mutate")
	}
	if !r.Mutates("unregistered_tool") {
		t.Error("unknown tools must report Mutates = true")
	}
}

func TestDeclarationsPreserveOrder(t *testing.T) {
	r := NewRegistry(testLogger())
	for _, name := range []string{"c_tool", "a_tool", "b_tool"} {
		r.Register(&Definition{
			Name:    name,
			Handler: func(context.Context, Identity, map[string]any) Result { return OK(nil) },
		})
	}

	decls := r.Declarations()
	if len(decls) != 3 {
		t.Fatalf("declarations = %d, want 3", len(decls))
	}
	want := []string{"c_tool", "a_tool", "b_tool"}
	for i, d := range decls {
		if d.Name != want[i] {
			t.Errorf("declaration %d = %q, want %q", i, d.Name, want[i])
		}
	}
}

func TestSousChefRegistryShape(t *testing.T) {
	r := newTestRegistry(t)

	wantMutating := map[string]bool{
		"recipe_list":         false,
		"recipe_get":          false,
		"recipe_create":       true,
		"recipe_update":       true,
		"recipe_delete":       true,
		"planner_get_week":    false,
		"planner_add_meal":    true,
		"planner_remove_meal": true,
		"grocery_get_list":    false,
		"grocery_add_item":    true,
		"grocery_remove_item": true,
		"grocery_push_recipe": true,
		"preferences_get":     false,
		"preferences_update":  true,
	}

	names := r.Names()
	if len(names) != len(wantMutating) {
		t.Fatalf("registered tools = %d, want %d: %v", len(names), len(wantMutating), names)
	}
	for name, mutates := range wantMutating {
		def, ok := r.Lookup(name)
		if !ok {
			t.Errorf("tool %q not registered", name)
			continue
		}
		if def.Mutates != mutates {
			t.Errorf("tool %q Mutates = %v, want %v", name, def.Mutates, mutates)
		}
		if def.InputSchema == nil || def.InputSchema["type"] != "object" {
			t.Errorf("tool %q schema = %v, want object schema", name, def.InputSchema)
		}
		if def.Description == "" {
			t.Errorf("tool %q has no description", name)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Chicken Breast", "chicken-breast"},
		{"rice", "rice"},
		{"olive oil (extra virgin)", "olive-oil-extra-virgin"},
		{"  soy   sauce  ", "soy-sauce"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
