// Package tools defines the sous chef's tool surface: a registry of
// named tools the model can call, each declaring a JSON schema, a
// handler, and whether it mutates household data. Mutating tools are
// never executed directly by the agent loop; they are surfaced as
// pending actions and run only after user approval.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/ladle-app/ladle/internal/llm"
)

// Identity is the authenticated caller. It comes exclusively from the
// session; tool input can never supply or override it.
type Identity struct {
	UserID      uuid.UUID
	HouseholdID uuid.UUID
}

// Handler executes a tool against the caller's household. Input is the
// raw decoded JSON object from the model's tool call.
type Handler func(ctx context.Context, ident Identity, input map[string]any) Result

// Definition describes one tool. Mutates marks tools whose handlers
// write household data and therefore require user approval.
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]any
	Mutates     bool
	Handler     Handler
}

// Registry holds the tool set exposed to the model. Iteration order is
// registration order so tool declarations are stable across requests.
type Registry struct {
	defs   map[string]*Definition
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		defs:   make(map[string]*Definition),
		logger: logger,
	}
}

// Register adds a tool definition. Panics on duplicate names or a nil
// handler; both are programming errors caught at startup.
func (r *Registry) Register(def *Definition) {
	if def.Name == "" || def.Handler == nil {
		panic(fmt.Sprintf("tools: invalid definition %+v", def))
	}
	if _, exists := r.defs[def.Name]; exists {
		panic(fmt.Sprintf("tools: duplicate tool %q", def.Name))
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
}

// Lookup returns a tool definition by name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Mutates reports whether a tool writes household data. Unknown tools
// report true so the approval gate fails closed.
func (r *Registry) Mutates(name string) bool {
	def, ok := r.defs[name]
	if !ok {
		return true
	}
	return def.Mutates
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Declarations returns the tool set in the shape the model API wants.
func (r *Registry) Declarations() []llm.Tool {
	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		out = append(out, llm.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return out
}

// Execute runs a tool by name. A handler panic is recovered and
// returned as a structured failure so one bad tool call cannot take
// down the request.
func (r *Registry) Execute(ctx context.Context, ident Identity, name string, input map[string]any) (result Result) {
	def, ok := r.defs[name]
	if !ok {
		return Fail(ErrorTypeValidation, "", fmt.Sprintf("unknown tool %q", name))
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panicked",
				"tool", name,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			result = Fail(ErrorTypeInternal, "", "internal error executing tool")
		}
	}()

	if input == nil {
		input = map[string]any{}
	}
	return def.Handler(ctx, ident, input)
}

// decodeInput unmarshals a tool-call input object into a typed struct
// and validates it. Returns a VALIDATION_ERROR result on failure.
func decodeInput(input map[string]any, dest any) (Result, bool) {
	raw, err := json.Marshal(input)
	if err != nil {
		return Fail(ErrorTypeValidation, "", "invalid tool input"), false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return Fail(ErrorTypeValidation, "", fmt.Sprintf("invalid tool input: %v", err)), false
	}
	if res, ok := validateStruct(dest); !ok {
		return res, false
	}
	return Result{}, true
}
