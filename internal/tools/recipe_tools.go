package tools

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/ladle-app/ladle/internal/recipes"
)

type ingredientInput struct {
	IngredientID string  `json:"ingredient_id"`
	Name         string  `json:"name" validate:"required"`
	Quantity     float64 `json:"quantity" validate:"min=0"`
	Unit         string  `json:"unit"`
}

var ingredientSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ingredient_id": map[string]any{"type": "string", "description": "Normalized ingredient slug, e.g. 'chicken-breast'. Derived from name when omitted."},
			"name":          map[string]any{"type": "string", "description": "Display name, e.g. 'chicken breast'"},
			"quantity":      map[string]any{"type": "number"},
			"unit":          map[string]any{"type": "string", "description": "Free-text unit, e.g. 'g', 'cup', 'can'"},
		},
		"required": []string{"name"},
	},
}

func registerRecipeTools(r *Registry, deps Deps) {
	r.Register(&Definition{
		Name:        "recipe_list",
		Description: "List the household's recipes, optionally filtered by a search term matched against title, description, and tags.",
		InputSchema: objectSchema(map[string]any{
			"search": map[string]any{"type": "string", "description": "Optional substring filter"},
			"limit":  map[string]any{"type": "integer", "description": "Max results, default 25"},
		}),
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				Search string `json:"search"`
				Limit  int    `json:"limit" validate:"min=0,max=100"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}

			list, err := deps.Recipes.List(ident.HouseholdID, in.Search, in.Limit)
			if err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{"recipes": list, "count": len(list)})
		},
	})

	r.Register(&Definition{
		Name:        "recipe_get",
		Description: "Get one recipe with its full ingredient list and instructions.",
		InputSchema: objectSchema(map[string]any{
			"recipe_id": map[string]any{"type": "string"},
		}, "recipe_id"),
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				RecipeID string `json:"recipe_id" validate:"required,uuid"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}

			recipe, err := deps.Recipes.Get(ident.HouseholdID, uuid.MustParse(in.RecipeID))
			if err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{"recipe": recipe})
		},
	})

	r.Register(&Definition{
		Name:        "recipe_create",
		Description: "Create a new recipe for the household.",
		InputSchema: objectSchema(map[string]any{
			"title":        map[string]any{"type": "string"},
			"description":  map[string]any{"type": "string"},
			"instructions": map[string]any{"type": "string"},
			"servings":     map[string]any{"type": "integer"},
			"prep_minutes": map[string]any{"type": "integer"},
			"cook_minutes": map[string]any{"type": "integer"},
			"tags":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"ingredients":  ingredientSchema,
		}, "title"),
		Mutates: true,
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				Title        string            `json:"title" validate:"required,max=200"`
				Description  string            `json:"description"`
				Instructions string            `json:"instructions"`
				Servings     int               `json:"servings" validate:"min=0,max=50"`
				PrepMinutes  int               `json:"prep_minutes" validate:"min=0"`
				CookMinutes  int               `json:"cook_minutes" validate:"min=0"`
				Tags         []string          `json:"tags"`
				Ingredients  []ingredientInput `json:"ingredients" validate:"dive"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}

			recipe := &recipes.Recipe{
				HouseholdID:  ident.HouseholdID,
				Title:        in.Title,
				Description:  in.Description,
				Instructions: in.Instructions,
				Servings:     in.Servings,
				PrepMinutes:  in.PrepMinutes,
				CookMinutes:  in.CookMinutes,
				Tags:         in.Tags,
				Ingredients:  toStoreIngredients(in.Ingredients),
			}
			if err := deps.Recipes.Create(recipe); err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{"recipe": recipe})
		},
	})

	r.Register(&Definition{
		Name:        "recipe_update",
		Description: "Replace a recipe's fields and ingredient list. Send the complete desired state, not a diff.",
		InputSchema: objectSchema(map[string]any{
			"recipe_id":    map[string]any{"type": "string"},
			"title":        map[string]any{"type": "string"},
			"description":  map[string]any{"type": "string"},
			"instructions": map[string]any{"type": "string"},
			"servings":     map[string]any{"type": "integer"},
			"prep_minutes": map[string]any{"type": "integer"},
			"cook_minutes": map[string]any{"type": "integer"},
			"tags":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"ingredients":  ingredientSchema,
		}, "recipe_id", "title"),
		Mutates: true,
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				RecipeID     string            `json:"recipe_id" validate:"required,uuid"`
				Title        string            `json:"title" validate:"required,max=200"`
				Description  string            `json:"description"`
				Instructions string            `json:"instructions"`
				Servings     int               `json:"servings" validate:"min=0,max=50"`
				PrepMinutes  int               `json:"prep_minutes" validate:"min=0"`
				CookMinutes  int               `json:"cook_minutes" validate:"min=0"`
				Tags         []string          `json:"tags"`
				Ingredients  []ingredientInput `json:"ingredients" validate:"dive"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}

			recipe := &recipes.Recipe{
				ID:           uuid.MustParse(in.RecipeID),
				HouseholdID:  ident.HouseholdID,
				Title:        in.Title,
				Description:  in.Description,
				Instructions: in.Instructions,
				Servings:     in.Servings,
				PrepMinutes:  in.PrepMinutes,
				CookMinutes:  in.CookMinutes,
				Tags:         in.Tags,
				Ingredients:  toStoreIngredients(in.Ingredients),
			}
			if err := deps.Recipes.Update(recipe); err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{"recipe": recipe})
		},
	})

	r.Register(&Definition{
		Name:        "recipe_delete",
		Description: "Delete a recipe. Planned meals that reference it keep their cached title.",
		InputSchema: objectSchema(map[string]any{
			"recipe_id": map[string]any{"type": "string"},
		}, "recipe_id"),
		Mutates: true,
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				RecipeID string `json:"recipe_id" validate:"required,uuid"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}

			if err := deps.Recipes.Delete(ident.HouseholdID, uuid.MustParse(in.RecipeID)); err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{"deleted": true, "recipe_id": in.RecipeID})
		},
	})
}

func toStoreIngredients(in []ingredientInput) []recipes.Ingredient {
	out := make([]recipes.Ingredient, 0, len(in))
	for _, ing := range in {
		slug := ing.IngredientID
		if slug == "" {
			slug = slugify(ing.Name)
		}
		out = append(out, recipes.Ingredient{
			IngredientID: slug,
			Name:         ing.Name,
			Quantity:     ing.Quantity,
			Unit:         ing.Unit,
		})
	}
	return out
}

// slugify normalizes a display name into an ingredient identity slug:
// lowercase, runs of non-alphanumerics collapsed to single hyphens.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
