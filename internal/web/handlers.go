package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ladle-app/ladle/internal/email"
	"github.com/ladle-app/ladle/internal/events"
	"github.com/ladle-app/ladle/internal/grocery"
	"github.com/ladle-app/ladle/internal/planner"
	"github.com/ladle-app/ladle/internal/prefs"
	"github.com/ladle-app/ladle/internal/recipes"
)

// pathUUID parses the {id} path segment, replying 400 on garbage.
func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, segment string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(segment))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// storeError maps store sentinel errors to HTTP statuses.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recipes.ErrNotFound),
		errors.Is(err, planner.ErrNotFound),
		errors.Is(err, grocery.ErrListNotFound),
		errors.Is(err, grocery.ErrItemNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, recipes.ErrNotOwned),
		errors.Is(err, planner.ErrNotOwned),
		errors.Is(err, grocery.ErrListNotOwned):
		s.writeError(w, http.StatusForbidden, err.Error())
	default:
		s.logger.Error("store operation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "database error")
	}
}

func (s *Server) publishChange(r *http.Request, source, entity, action, id string) {
	s.bus.Publish(events.Event{
		Household: currentUser(r).HouseholdID,
		Source:    source,
		Kind:      events.KindEntityChanged,
		Data:      map[string]any{"entity": entity, "action": action, "id": id},
	})
}

// --- Recipes ---

func (s *Server) handleRecipeList(w http.ResponseWriter, r *http.Request) {
	list, err := s.stores.Recipes.List(identityFrom(r).HouseholdID, r.URL.Query().Get("search"), 0)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"recipes": list})
}

func (s *Server) handleRecipeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	recipe, err := s.stores.Recipes.Get(identityFrom(r).HouseholdID, id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"recipe": recipe})
}

func (s *Server) handleRecipeCreate(w http.ResponseWriter, r *http.Request) {
	var recipe recipes.Recipe
	if !s.decodeBody(w, r, &recipe) {
		return
	}
	if recipe.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	recipe.ID = uuid.Nil
	recipe.HouseholdID = identityFrom(r).HouseholdID
	if err := s.stores.Recipes.Create(&recipe); err != nil {
		s.storeError(w, err)
		return
	}
	s.publishChange(r, events.SourceRecipes, "recipe", "created", recipe.ID.String())
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, map[string]any{"recipe": recipe})
}

func (s *Server) handleRecipeUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var recipe recipes.Recipe
	if !s.decodeBody(w, r, &recipe) {
		return
	}
	if recipe.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	recipe.ID = id
	recipe.HouseholdID = identityFrom(r).HouseholdID
	if err := s.stores.Recipes.Update(&recipe); err != nil {
		s.storeError(w, err)
		return
	}
	s.publishChange(r, events.SourceRecipes, "recipe", "updated", id.String())
	s.writeJSON(w, map[string]any{"recipe": recipe})
}

func (s *Server) handleRecipeDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.stores.Recipes.Delete(identityFrom(r).HouseholdID, id); err != nil {
		s.storeError(w, err)
		return
	}
	s.publishChange(r, events.SourceRecipes, "recipe", "deleted", id.String())
	s.writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) handleRecipeImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	draft, err := s.importer.Import(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, map[string]any{"draft": draft})
}

// --- Planner ---

func (s *Server) handlePlannerWeek(w http.ResponseWriter, r *http.Request) {
	startParam := r.URL.Query().Get("start")
	if startParam == "" {
		startParam = time.Now().Format(planner.DateFormat)
	}
	start, err := time.Parse(planner.DateFormat, startParam)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "start must be a date in YYYY-MM-DD form")
		return
	}

	meals, err := s.stores.Planner.Week(identityFrom(r).HouseholdID, start)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"start_date": start.Format(planner.DateFormat), "meals": meals})
}

func (s *Server) handlePlannerAdd(w http.ResponseWriter, r *http.Request) {
	var meal planner.Meal
	if !s.decodeBody(w, r, &meal) {
		return
	}
	if _, err := time.Parse(planner.DateFormat, meal.Date); err != nil {
		s.writeError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD form")
		return
	}
	if !planner.ValidMealType(meal.MealType) {
		s.writeError(w, http.StatusBadRequest, "meal_type must be breakfast, lunch, dinner, or snack")
		return
	}

	ident := identityFrom(r)
	meal.ID = uuid.Nil
	meal.HouseholdID = ident.HouseholdID

	if meal.RecipeID != uuid.Nil {
		recipe, err := s.stores.Recipes.Get(ident.HouseholdID, meal.RecipeID)
		if err != nil {
			s.storeError(w, err)
			return
		}
		meal.Title = recipe.Title
		if meal.Servings == 0 {
			meal.Servings = recipe.Servings
		}
	} else if meal.Title == "" {
		meal.Title = meal.Note
	}
	if meal.Title == "" {
		s.writeError(w, http.StatusBadRequest, "either recipe_id or note is required")
		return
	}

	if err := s.stores.Planner.Add(&meal); err != nil {
		s.storeError(w, err)
		return
	}
	s.publishChange(r, events.SourcePlanner, "meal", "created", meal.ID.String())
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, map[string]any{"meal": meal})
}

func (s *Server) handlePlannerRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	meal, err := s.stores.Planner.Remove(identityFrom(r).HouseholdID, id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.publishChange(r, events.SourcePlanner, "meal", "deleted", id.String())
	s.writeJSON(w, map[string]any{"removed": meal})
}

// --- Grocery ---

func (s *Server) handleGroceryLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.stores.Grocery.Lists(identityFrom(r).HouseholdID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"lists": lists})
}

func (s *Server) handleGroceryListCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	list, err := s.stores.Grocery.CreateList(identityFrom(r).HouseholdID, req.Name)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.publishChange(r, events.SourceGrocery, "list", "created", list.ID.String())
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, map[string]any{"list": list})
}

func (s *Server) handleGroceryListGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	list, err := s.stores.Grocery.GetList(identityFrom(r).HouseholdID, id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"list": list})
}

func (s *Server) handleGroceryItemAdd(w http.ResponseWriter, r *http.Request) {
	listID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name     string  `json:"name"`
		Quantity float64 `json:"quantity"`
		Unit     string  `json:"unit"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	item, err := s.stores.Grocery.AddItem(identityFrom(r).HouseholdID, listID, grocery.IngredientLine{
		IngredientID: req.Name,
		Name:         req.Name,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.publishChange(r, events.SourceGrocery, "item", "created", item.ID.String())
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, map[string]any{"item": item})
}

func (s *Server) handleGroceryItemRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	item, err := s.stores.Grocery.RemoveItem(identityFrom(r).HouseholdID, id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.publishChange(r, events.SourceGrocery, "item", "deleted", id.String())
	s.writeJSON(w, map[string]any{"removed": item})
}

func (s *Server) handleGroceryItemCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Checked bool `json:"checked"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.stores.Grocery.SetChecked(identityFrom(r).HouseholdID, id, req.Checked); err != nil {
		s.storeError(w, err)
		return
	}
	s.publishChange(r, events.SourceGrocery, "item", "updated", id.String())
	s.writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) handleGroceryPush(w http.ResponseWriter, r *http.Request) {
	listID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		RecipeID string `json:"recipe_id"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	recipeID, err := uuid.Parse(req.RecipeID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid recipe_id")
		return
	}

	ident := identityFrom(r)
	recipe, err := s.stores.Recipes.Get(ident.HouseholdID, recipeID)
	if err != nil {
		s.storeError(w, err)
		return
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

	stats, err := s.stores.Grocery.PushIngredients(ident.HouseholdID, listID, recipe.ID, lines)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.publishChange(r, events.SourceGrocery, "list", "updated", listID.String())
	s.writeJSON(w, map[string]any{
		"items_merged": stats.ItemsMerged,
		"items_added":  stats.ItemsAdded,
	})
}

func (s *Server) handleGroceryEmail(w http.ResponseWriter, r *http.Request) {
	listID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		To []string `json:"to"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.To) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one recipient is required")
		return
	}
	if !s.sender.Enabled() {
		s.writeError(w, http.StatusServiceUnavailable, "email delivery is not configured")
		return
	}

	list, err := s.stores.Grocery.GetList(identityFrom(r).HouseholdID, listID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	msg, err := email.ComposeMessage(email.ComposeOptions{
		From:    s.cfg.Email.From,
		To:      req.To,
		Subject: "Grocery list: " + list.Name,
		Body:    email.GroceryListBody(list),
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to compose email")
		return
	}
	if err := s.sender.Send(req.To, msg); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, map[string]any{"sent": true, "recipients": len(req.To)})
}

// --- Preferences ---

func (s *Server) handlePrefsGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.stores.Prefs.Get(identityFrom(r).HouseholdID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"preferences": p})
}

func (s *Server) handlePrefsPut(w http.ResponseWriter, r *http.Request) {
	var p prefs.Preferences
	if !s.decodeBody(w, r, &p) {
		return
	}
	if p.HouseholdSize <= 0 || p.DefaultServings <= 0 {
		s.writeError(w, http.StatusBadRequest, "household_size and default_servings must be positive")
		return
	}

	p.HouseholdID = identityFrom(r).HouseholdID
	if err := s.stores.Prefs.Save(&p); err != nil {
		s.storeError(w, err)
		return
	}
	s.publishChange(r, events.SourcePrefs, "preferences", "updated", p.HouseholdID.String())
	s.writeJSON(w, map[string]any{"preferences": p})
}
