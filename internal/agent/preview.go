package agent

import "fmt"

// Preview renders a short human-readable description of a mutating
// tool call for the approval prompt. It works from the tool input
// alone so previews never touch the database.
func Preview(toolName string, input map[string]any) string {
	switch toolName {
	case "recipe_create":
		if title := str(input, "title"); title != "" {
			return fmt.Sprintf("Create recipe %q", title)
		}
		return "Create a recipe"

	case "recipe_update":
		if title := str(input, "title"); title != "" {
			return fmt.Sprintf("Update recipe %q", title)
		}
		return "Update a recipe"

	case "recipe_delete":
		return "Delete a recipe"

	case "planner_add_meal":
		return fmt.Sprintf("Add to %s on %s", str(input, "meal_type"), str(input, "date"))

	case "planner_remove_meal":
		return "Remove a meal from the planner"

	case "grocery_add_item":
		if name := str(input, "name"); name != "" {
			return fmt.Sprintf("Add %s to the grocery list", name)
		}
		return "Add an item to the grocery list"

	case "grocery_remove_item":
		return "Remove an item from the grocery list"

	case "grocery_push_recipe":
		return "Add a recipe's ingredients to the grocery list"

	case "preferences_update":
		return "Update household preferences"

	default:
		return fmt.Sprintf("Run %s", toolName)
	}
}

func str(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}
