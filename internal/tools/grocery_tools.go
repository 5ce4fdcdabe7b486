package tools

import (
	"context"

	"github.com/google/uuid"

	"github.com/ladle-app/ladle/internal/grocery"
)

func registerGroceryTools(r *Registry, deps Deps) {
	r.Register(&Definition{
		Name:        "grocery_get_list",
		Description: "Get a grocery list with its items. Omit list_id for the household's default list.",
		InputSchema: objectSchema(map[string]any{
			"list_id": map[string]any{"type": "string"},
		}),
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				ListID string `json:"list_id" validate:"omitempty,uuid"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}

			listID, res, ok := resolveListID(deps, ident, in.ListID)
			if !ok {
				return res
			}

			list, err := deps.Grocery.GetList(ident.HouseholdID, listID)
			if err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{"list": list})
		},
	})

	r.Register(&Definition{
		Name:        "grocery_add_item",
		Description: "Add a single item to a grocery list. Omit list_id for the default list.",
		InputSchema: objectSchema(map[string]any{
			"list_id":  map[string]any{"type": "string"},
			"name":     map[string]any{"type": "string"},
			"quantity": map[string]any{"type": "number"},
			"unit":     map[string]any{"type": "string"},
		}, "name"),
		Mutates: true,
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				ListID   string  `json:"list_id" validate:"omitempty,uuid"`
				Name     string  `json:"name" validate:"required,max=200"`
				Quantity float64 `json:"quantity" validate:"min=0"`
				Unit     string  `json:"unit" validate:"max=30"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}

			listID, res, ok := resolveListID(deps, ident, in.ListID)
			if !ok {
				return res
			}

			item, err := deps.Grocery.AddItem(ident.HouseholdID, listID, grocery.IngredientLine{
				IngredientID: slugify(in.Name),
				Name:         in.Name,
				Quantity:     in.Quantity,
				Unit:         in.Unit,
			})
			if err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{"item": item})
		},
	})

	r.Register(&Definition{
		Name:        "grocery_remove_item",
		Description: "Remove an item from a grocery list.",
		InputSchema: objectSchema(map[string]any{
			"item_id": map[string]any{"type": "string"},
		}, "item_id"),
		Mutates: true,
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				ItemID string `json:"item_id" validate:"required,uuid"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}

			item, err := deps.Grocery.RemoveItem(ident.HouseholdID, uuid.MustParse(in.ItemID))
			if err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{"removed": true, "item": item})
		},
	})

	r.Register(&Definition{
		Name:        "grocery_push_recipe",
		Description: "Add all of a recipe's ingredients to a grocery list, merging quantities with matching open items. Omit list_id for the default list.",
		InputSchema: objectSchema(map[string]any{
			"recipe_id": map[string]any{"type": "string"},
			"list_id":   map[string]any{"type": "string"},
		}, "recipe_id"),
		Mutates: true,
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				RecipeID string `json:"recipe_id" validate:"required,uuid"`
				ListID   string `json:"list_id" validate:"omitempty,uuid"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}

			recipe, err := deps.Recipes.Get(ident.HouseholdID, uuid.MustParse(in.RecipeID))
			if err != nil {
				return storeFail(err)
			}

			listID, res, ok := resolveListID(deps, ident, in.ListID)
			if !ok {
				return res
			}

			lines := make([]grocery.IngredientLine, 0, len(recipe.Ingredients))
			for _, ing := range recipe.Ingredients {
				lines = append(lines, grocery.IngredientLine{
					IngredientID: ing.IngredientID,
					Name:         ing.Name,
					Quantity:     ing.Quantity,
					Unit:         ing.Unit,
				})
			}

			stats, err := deps.Grocery.PushIngredients(ident.HouseholdID, listID, recipe.ID, lines)
			if err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{
				"list_id":      listID.String(),
				"recipe_id":    recipe.ID.String(),
				"items_merged": stats.ItemsMerged,
				"items_added":  stats.ItemsAdded,
			})
		},
	})
}

// resolveListID turns an optional list_id input into a concrete list,
// falling back to the household's default list.
func resolveListID(deps Deps, ident Identity, raw string) (uuid.UUID, Result, bool) {
	if raw != "" {
		return uuid.MustParse(raw), Result{}, true
	}
	list, err := deps.Grocery.DefaultList(ident.HouseholdID)
	if err != nil {
		return uuid.Nil, storeFail(err), false
	}
	return list.ID, Result{}, true
}
