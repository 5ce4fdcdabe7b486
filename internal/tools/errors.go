package tools

import (
	"errors"

	"github.com/ladle-app/ladle/internal/grocery"
	"github.com/ladle-app/ladle/internal/planner"
	"github.com/ladle-app/ladle/internal/recipes"
)

// Error types returned to the model inside tool results. The model
// reads these to decide how to recover (retry with fixed input, tell
// the user the thing doesn't exist, and so on).
const (
	// ErrorTypeValidation means the input failed schema or semantic
	// validation. Field names the offending input field when known.
	ErrorTypeValidation = "VALIDATION_ERROR"
	// ErrorTypeNotFound means the referenced entity does not exist.
	ErrorTypeNotFound = "NOT_FOUND"
	// ErrorTypeAuthorization means the entity exists but belongs to
	// another household.
	ErrorTypeAuthorization = "AUTHORIZATION_ERROR"
	// ErrorTypePermission means the operation is not allowed for this
	// caller regardless of input.
	ErrorTypePermission = "PERMISSION_DENIED"
	// ErrorTypeDatabase means persistence failed.
	ErrorTypeDatabase = "DATABASE_ERROR"
	// ErrorTypeInternal means the handler itself failed (recovered
	// panic). Never triggered by bad input.
	ErrorTypeInternal = "INTERNAL_ERROR"
)

// Error is the structured failure payload inside a tool result.
type Error struct {
	Type    string `json:"type"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result is the uniform envelope every tool returns. Exactly one of
// Data or Error is set.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   *Error         `json:"error,omitempty"`
}

// OK builds a success result.
func OK(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failure result.
func Fail(errType, field, message string) Result {
	return Result{Success: false, Error: &Error{Type: errType, Field: field, Message: message}}
}

// storeFail maps store-layer errors onto the tool error taxonomy.
func storeFail(err error) Result {
	switch {
	case errors.Is(err, recipes.ErrNotFound),
		errors.Is(err, planner.ErrNotFound),
		errors.Is(err, grocery.ErrListNotFound),
		errors.Is(err, grocery.ErrItemNotFound):
		return Fail(ErrorTypeNotFound, "", err.Error())

	case errors.Is(err, recipes.ErrNotOwned),
		errors.Is(err, planner.ErrNotOwned),
		errors.Is(err, grocery.ErrListNotOwned):
		return Fail(ErrorTypeAuthorization, "", err.Error())

	default:
		return Fail(ErrorTypeDatabase, "", err.Error())
	}
}
