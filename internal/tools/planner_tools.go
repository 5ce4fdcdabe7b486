package tools

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ladle-app/ladle/internal/planner"
)

func registerPlannerTools(r *Registry, deps Deps) {
	r.Register(&Definition{
		Name:        "planner_get_week",
		Description: "Get the planned meals for the seven days starting at start_date.",
		InputSchema: objectSchema(map[string]any{
			"start_date": map[string]any{"type": "string", "description": "YYYY-MM-DD"},
		}, "start_date"),
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}

			start, _ := time.Parse(planner.DateFormat, in.StartDate)
			meals, err := deps.Planner.Week(ident.HouseholdID, start)
			if err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{
				"start_date": in.StartDate,
				"meals":      meals,
				"count":      len(meals),
			})
		},
	})

	r.Register(&Definition{
		Name:        "planner_add_meal",
		Description: "Schedule a meal on the calendar. Reference a stored recipe via recipe_id, or use note for a free-text entry like 'leftovers'.",
		InputSchema: objectSchema(map[string]any{
			"date":      map[string]any{"type": "string", "description": "YYYY-MM-DD"},
			"meal_type": map[string]any{"type": "string", "enum": []string{"breakfast", "lunch", "dinner", "snack"}},
			"recipe_id": map[string]any{"type": "string"},
			"note":      map[string]any{"type": "string", "description": "Free-text entry when no recipe_id is given"},
			"servings":  map[string]any{"type": "integer"},
		}, "date", "meal_type"),
		Mutates: true,
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				Date     string `json:"date" validate:"required,datetime=2006-01-02"`
				MealType string `json:"meal_type" validate:"required,oneof=breakfast lunch dinner snack"`
				RecipeID string `json:"recipe_id" validate:"omitempty,uuid"`
				Note     string `json:"note" validate:"max=200"`
				Servings int    `json:"servings" validate:"min=0,max=50"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}
			if in.RecipeID == "" && in.Note == "" {
				return Fail(ErrorTypeValidation, "recipe_id", "either recipe_id or note is required")
			}

			meal := &planner.Meal{
				HouseholdID: ident.HouseholdID,
				Date:        in.Date,
				MealType:    in.MealType,
				Note:        in.Note,
				Title:       in.Note,
				Servings:    in.Servings,
			}

			if in.RecipeID != "" {
				recipe, err := deps.Recipes.Get(ident.HouseholdID, uuid.MustParse(in.RecipeID))
				if err != nil {
					return storeFail(err)
				}
				meal.RecipeID = recipe.ID
				meal.Title = recipe.Title
				if meal.Servings == 0 {
					meal.Servings = recipe.Servings
				}
			}

			if err := deps.Planner.Add(meal); err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{"meal": meal})
		},
	})

	r.Register(&Definition{
		Name:        "planner_remove_meal",
		Description: "Remove a planned meal from the calendar.",
		InputSchema: objectSchema(map[string]any{
			"meal_id": map[string]any{"type": "string"},
		}, "meal_id"),
		Mutates: true,
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				MealID string `json:"meal_id" validate:"required,uuid"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}

			meal, err := deps.Planner.Remove(ident.HouseholdID, uuid.MustParse(in.MealID))
			if err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{"removed": true, "meal": meal})
		},
	})
}
