package tools

import (
	"log/slog"

	"github.com/ladle-app/ladle/internal/grocery"
	"github.com/ladle-app/ladle/internal/planner"
	"github.com/ladle-app/ladle/internal/prefs"
	"github.com/ladle-app/ladle/internal/recipes"
)

// Deps are the stores the sous chef tools operate on.
type Deps struct {
	Recipes *recipes.Store
	Planner *planner.Store
	Grocery *grocery.Store
	Prefs   *prefs.Store
	Logger  *slog.Logger
}

// NewSousChefRegistry builds the full tool set exposed to the model:
// read tools for recipes, the planner, grocery lists, and preferences,
// plus the mutating tools gated behind approval.
func NewSousChefRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := NewRegistry(deps.Logger)

	registerRecipeTools(r, deps)
	registerPlannerTools(r, deps)
	registerGroceryTools(r, deps)
	registerPrefsTools(r, deps)

	return r
}

// objectSchema is shorthand for a JSON schema object declaration.
func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
