package tools

import "context"

func registerPrefsTools(r *Registry, deps Deps) {
	r.Register(&Definition{
		Name:        "preferences_get",
		Description: "Get the household's dietary preferences, dislikes, and serving defaults.",
		InputSchema: objectSchema(map[string]any{}),
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			p, err := deps.Prefs.Get(ident.HouseholdID)
			if err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{"preferences": p})
		},
	})

	r.Register(&Definition{
		Name:        "preferences_update",
		Description: "Update the household's preferences. Omitted fields keep their current value; send an empty array to clear a list.",
		InputSchema: objectSchema(map[string]any{
			"dietary":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Dietary restrictions, e.g. 'vegetarian', 'gluten-free'"},
			"dislikes":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Ingredients to avoid suggesting"},
			"household_size":   map[string]any{"type": "integer"},
			"default_servings": map[string]any{"type": "integer"},
		}),
		Mutates: true,
		Handler: func(ctx context.Context, ident Identity, input map[string]any) Result {
			var in struct {
				Dietary         *[]string `json:"dietary"`
				Dislikes        *[]string `json:"dislikes"`
				HouseholdSize   *int      `json:"household_size" validate:"omitempty,min=1,max=50"`
				DefaultServings *int      `json:"default_servings" validate:"omitempty,min=1,max=50"`
			}
			if res, ok := decodeInput(input, &in); !ok {
				return res
			}

			current, err := deps.Prefs.Get(ident.HouseholdID)
			if err != nil {
				return storeFail(err)
			}

			if in.Dietary != nil {
				current.Dietary = *in.Dietary
			}
			if in.Dislikes != nil {
				current.Dislikes = *in.Dislikes
			}
			if in.HouseholdSize != nil {
				current.HouseholdSize = *in.HouseholdSize
			}
			if in.DefaultServings != nil {
				current.DefaultServings = *in.DefaultServings
			}

			if err := deps.Prefs.Save(current); err != nil {
				return storeFail(err)
			}
			return OK(map[string]any{"preferences": current})
		},
	})
}
