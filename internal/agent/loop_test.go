package agent

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ladle-app/ladle/internal/grocery"
	"github.com/ladle-app/ladle/internal/llm"
	"github.com/ladle-app/ladle/internal/planner"
	"github.com/ladle-app/ladle/internal/prefs"
	"github.com/ladle-app/ladle/internal/recipes"
	"github.com/ladle-app/ladle/internal/tools"
)

// fakeClient replays scripted responses and records every request.
type fakeClient struct {
	responses []*llm.ChatResponse
	calls     [][]llm.Message
}

func (f *fakeClient) Chat(ctx context.Context, messages []llm.Message, _ []llm.Tool) (*llm.ChatResponse, error) {
	snapshot := make([]llm.Message, len(messages))
	copy(snapshot, messages)
	f.calls = append(f.calls, snapshot)

	i := len(f.calls) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func textResponse(text string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message:    llm.Message{Role: "assistant", Content: text},
		StopReason: "end_turn",
	}
}

func toolResponse(text string, calls ...llm.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message:    llm.Message{Role: "assistant", Content: text, ToolCalls: calls},
		StopReason: "tool_use",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newCountingRegistry registers one read and one write tool that count
// their executions.
func newCountingRegistry(readCount, writeCount *atomic.Int64) *tools.Registry {
	r := tools.NewRegistry(testLogger())
	r.Register(&tools.Definition{
		Name: "read_thing",
		Handler: func(ctx context.Context, ident tools.Identity, input map[string]any) tools.Result {
			readCount.Add(1)
			return tools.OK(map[string]any{"value": input["key"]})
		},
	})
	r.Register(&tools.Definition{
		Name:    "write_thing",
		Mutates: true,
		Handler: func(ctx context.Context, ident tools.Identity, input map[string]any) tools.Result {
			writeCount.Add(1)
			return tools.OK(map[string]any{"written": true})
		},
	})
	return r
}

func TestRunPlainTextResponse(t *testing.T) {
	var reads, writes atomic.Int64
	client := &fakeClient{responses: []*llm.ChatResponse{textResponse("Hello!")}}
	loop := New(client, newCountingRegistry(&reads, &writes), testLogger(), nil)

	res, err := loop.Run(context.Background(), tools.Identity{}, []llm.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Message != "Hello!" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.ApprovalRequired || len(res.Actions) != 0 {
		t.Errorf("unexpected approval: %+v", res)
	}
	if res.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", res.Iterations)
	}
}

func TestRunReportsTokenUsage(t *testing.T) {
	var reads, writes atomic.Int64
	first := toolResponse("Looking...",
		llm.ToolCall{ID: "toolu_a", Name: "read_thing", Input: map[string]any{"key": "a"}},
	)
	first.InputTokens, first.OutputTokens = 100, 20
	second := textResponse("Found it.")
	second.InputTokens, second.OutputTokens = 140, 30

	client := &fakeClient{responses: []*llm.ChatResponse{first, second}}
	loop := New(client, newCountingRegistry(&reads, &writes), testLogger(), nil)

	res, err := loop.Run(context.Background(), tools.Identity{}, []llm.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Usage.InputTokens != 240 || res.Usage.OutputTokens != 50 {
		t.Errorf("Usage = %+v, want tokens summed across calls", res.Usage)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	usage, ok := wire["usage"].(map[string]any)
	if !ok {
		t.Fatalf("serialized result has no usage object: %s", data)
	}
	if usage["input_tokens"] != float64(240) || usage["output_tokens"] != float64(50) {
		t.Errorf("serialized usage = %v", usage)
	}
}

func TestRunExecutesReadsWithoutApproval(t *testing.T) {
	var reads, writes atomic.Int64
	client := &fakeClient{responses: []*llm.ChatResponse{
		toolResponse("Looking...",
			llm.ToolCall{ID: "toolu_a", Name: "read_thing", Input: map[string]any{"key": "a"}},
			llm.ToolCall{ID: "toolu_b", Name: "read_thing", Input: map[string]any{"key": "b"}},
		),
		textResponse("Found it."),
	}}
	loop := New(client, newCountingRegistry(&reads, &writes), testLogger(), nil)

	res, err := loop.Run(context.Background(), tools.Identity{}, []llm.Message{{Role: "user", Content: "look"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ApprovalRequired {
		t.Fatal("read tools must not require approval")
	}
	if got := reads.Load(); got != 2 {
		t.Errorf("read executions = %d, want exactly 2", got)
	}
	if res.Message != "Found it." {
		t.Errorf("Message = %q", res.Message)
	}

	// Each result is attributed to its own tool-call id on the second
	// model request.
	second := client.calls[1]
	var gotIDs []string
	for _, m := range second {
		if m.Role == "tool" {
			gotIDs = append(gotIDs, m.ToolCallID)
		}
	}
	if len(gotIDs) != 2 || gotIDs[0] != "toolu_a" || gotIDs[1] != "toolu_b" {
		t.Errorf("tool result ids = %v", gotIDs)
	}
}

func TestRunGatesWriteTool(t *testing.T) {
	var reads, writes atomic.Int64
	client := &fakeClient{responses: []*llm.ChatResponse{
		toolResponse("I'd like to save that.",
			llm.ToolCall{ID: "toolu_w", Name: "write_thing", Input: map[string]any{"v": "x"}},
		),
	}}
	loop := New(client, newCountingRegistry(&reads, &writes), testLogger(), nil)

	res, err := loop.Run(context.Background(), tools.Identity{}, []llm.Message{{Role: "user", Content: "save"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.ApprovalRequired {
		t.Fatal("write tool must require approval")
	}
	if len(res.Actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(res.Actions))
	}
	if res.Actions[0].ID != "toolu_w" || res.Actions[0].ToolName != "write_thing" {
		t.Errorf("action = %+v", res.Actions[0])
	}
	if got := writes.Load(); got != 0 {
		t.Errorf("write executed %d times before approval, want 0", got)
	}
	if len(client.calls) != 1 {
		t.Errorf("model calls = %d, want 1 (turn ends at the gate)", len(client.calls))
	}
}

func TestResolveApprovedExecutesWrite(t *testing.T) {
	var reads, writes atomic.Int64
	gate := &fakeClient{responses: []*llm.ChatResponse{
		toolResponse("Saving.",
			llm.ToolCall{ID: "toolu_w", Name: "write_thing", Input: map[string]any{}},
		),
	}}
	registry := newCountingRegistry(&reads, &writes)
	loop := New(gate, registry, testLogger(), nil)

	gated, err := loop.Run(context.Background(), tools.Identity{}, []llm.Message{{Role: "user", Content: "save"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Resolution continues with a fresh scripted confirmation.
	confirm := &fakeClient{responses: []*llm.ChatResponse{textResponse("Done, saved.")}}
	loop = New(confirm, registry, testLogger(), nil)

	res, err := loop.Resolve(context.Background(), tools.Identity{}, gated.Messages,
		map[string]bool{"toolu_w": true})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := writes.Load(); got != 1 {
		t.Errorf("write executions = %d, want 1", got)
	}
	if res.Message != "Done, saved." {
		t.Errorf("Message = %q", res.Message)
	}

	// The model saw a successful tool result.
	var toolMsg *llm.Message
	for i := range confirm.calls[0] {
		if confirm.calls[0][i].Role == "tool" {
			toolMsg = &confirm.calls[0][i]
		}
	}
	if toolMsg == nil {
		t.Fatal("no tool result sent to the model")
	}
	var tr tools.Result
	if err := json.Unmarshal([]byte(toolMsg.Content), &tr); err != nil {
		t.Fatalf("decode tool result: %v", err)
	}
	if !tr.Success {
		t.Errorf("tool result = %+v, want success", tr)
	}
}

func TestResolveDeclinedSkipsWrite(t *testing.T) {
	var reads, writes atomic.Int64
	registry := newCountingRegistry(&reads, &writes)

	gated := []llm.Message{
		{Role: "user", Content: "save"},
		{Role: "assistant", Content: "Saving.", ToolCalls: []llm.ToolCall{
			{ID: "toolu_w", Name: "write_thing", Input: map[string]any{}},
		}},
	}

	confirm := &fakeClient{responses: []*llm.ChatResponse{textResponse("Okay, I won't.")}}
	loop := New(confirm, registry, testLogger(), nil)

	res, err := loop.Resolve(context.Background(), tools.Identity{}, gated, map[string]bool{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := writes.Load(); got != 0 {
		t.Errorf("write executions = %d, want 0 after decline", got)
	}
	if res.Message != "Okay, I won't." {
		t.Errorf("Message = %q", res.Message)
	}

	// The model was told the user declined.
	var tr tools.Result
	for _, m := range confirm.calls[0] {
		if m.Role == "tool" {
			if err := json.Unmarshal([]byte(m.Content), &tr); err != nil {
				t.Fatalf("decode tool result: %v", err)
			}
		}
	}
	if tr.Success || tr.Error == nil || tr.Error.Type != tools.ErrorTypePermission {
		t.Errorf("tool result = %+v, want PERMISSION_DENIED", tr)
	}
}

// Approval resolution is stateless by design: the server never records
// issued actions, so replaying the same approval replays the mutation.
func TestResolveReplayDuplicatesMutation(t *testing.T) {
	var reads, writes atomic.Int64
	registry := newCountingRegistry(&reads, &writes)

	gated := []llm.Message{
		{Role: "user", Content: "save"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{
			{ID: "toolu_w", Name: "write_thing", Input: map[string]any{}},
		}},
	}
	decisions := map[string]bool{"toolu_w": true}

	for i := 0; i < 2; i++ {
		confirm := &fakeClient{responses: []*llm.ChatResponse{textResponse("Done.")}}
		loop := New(confirm, registry, testLogger(), nil)
		if _, err := loop.Resolve(context.Background(), tools.Identity{}, gated, decisions); err != nil {
			t.Fatalf("Resolve() #%d error = %v", i+1, err)
		}
	}

	if got := writes.Load(); got != 2 {
		t.Errorf("write executions = %d, want 2 (replay is not deduplicated)", got)
	}
}

func TestResolveMixedBatchRunsDeferredReads(t *testing.T) {
	var reads, writes atomic.Int64
	registry := newCountingRegistry(&reads, &writes)

	gate := &fakeClient{responses: []*llm.ChatResponse{
		toolResponse("Checking and saving.",
			llm.ToolCall{ID: "toolu_r", Name: "read_thing", Input: map[string]any{"key": "a"}},
			llm.ToolCall{ID: "toolu_w", Name: "write_thing", Input: map[string]any{}},
		),
	}}
	loop := New(gate, registry, testLogger(), nil)

	gated, err := loop.Run(context.Background(), tools.Identity{}, []llm.Message{{Role: "user", Content: "go"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(gated.Actions) != 1 || gated.Actions[0].ID != "toolu_w" {
		t.Fatalf("actions = %+v, want only the write", gated.Actions)
	}
	if reads.Load() != 0 {
		t.Errorf("reads executed at the gate = %d, want 0 (deferred)", reads.Load())
	}

	confirm := &fakeClient{responses: []*llm.ChatResponse{textResponse("All done.")}}
	loop = New(confirm, registry, testLogger(), nil)
	if _, err := loop.Resolve(context.Background(), tools.Identity{}, gated.Messages,
		map[string]bool{"toolu_w": true}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if reads.Load() != 1 {
		t.Errorf("deferred read executions = %d, want 1", reads.Load())
	}
	if writes.Load() != 1 {
		t.Errorf("write executions = %d, want 1", writes.Load())
	}
}

func TestRunIterationLimit(t *testing.T) {
	var reads, writes atomic.Int64
	// The model loops on read tools forever.
	client := &fakeClient{responses: []*llm.ChatResponse{
		toolResponse("again",
			llm.ToolCall{ID: "toolu_r", Name: "read_thing", Input: map[string]any{"key": "x"}},
		),
	}}
	loop := New(client, newCountingRegistry(&reads, &writes), testLogger(), nil)

	res, err := loop.Run(context.Background(), tools.Identity{}, []llm.Message{{Role: "user", Content: "loop"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.LimitExceeded {
		t.Fatal("expected LimitExceeded")
	}
	if len(client.calls) != DefaultMaxIterations {
		t.Errorf("model calls = %d, want exactly %d", len(client.calls), DefaultMaxIterations)
	}
	if !strings.Contains(res.Message, "sorry") {
		t.Errorf("fallback message = %q", res.Message)
	}
}

func TestPreviewStrings(t *testing.T) {
	tests := []struct {
		tool  string
		input map[string]any
		want  string
	}{
		{"planner_add_meal", map[string]any{"meal_type": "dinner", "date": "2026-01-12"}, "Add to dinner on 2026-01-12"},
		{"recipe_create", map[string]any{"title": "Chicken Curry"}, `Create recipe "Chicken Curry"`},
		{"recipe_delete", map[string]any{"recipe_id": "abc"}, "Delete a recipe"},
		{"grocery_add_item", map[string]any{"name": "milk"}, "Add milk to the grocery list"},
		{"grocery_push_recipe", map[string]any{}, "Add a recipe's ingredients to the grocery list"},
		{"something_else", map[string]any{}, "Run something_else"},
	}
	for _, tt := range tests {
		if got := Preview(tt.tool, tt.input); got != tt.want {
			t.Errorf("Preview(%q) = %q, want %q", tt.tool, got, tt.want)
		}
	}
}

// End-to-end over real stores: the model plans a dinner, the user
// approves, and the meal lands on the calendar.
func TestChatTurnPlansDinner(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := testLogger()

	recipeStore, err := recipes.NewStore(dbPath, logger)
	if err != nil {
		t.Fatalf("recipes.NewStore() error = %v", err)
	}
	plannerStore, err := planner.NewStore(dbPath, logger)
	if err != nil {
		t.Fatalf("planner.NewStore() error = %v", err)
	}
	groceryStore, err := grocery.NewStore(dbPath, logger)
	if err != nil {
		t.Fatalf("grocery.NewStore() error = %v", err)
	}
	prefsStore, err := prefs.NewStore(dbPath, logger)
	if err != nil {
		t.Fatalf("prefs.NewStore() error = %v", err)
	}
	t.Cleanup(func() {
		recipeStore.Close()
		plannerStore.Close()
		groceryStore.Close()
		prefsStore.Close()
	})

	ident := tools.Identity{UserID: uuid.New(), HouseholdID: uuid.New()}
	curry := &recipes.Recipe{HouseholdID: ident.HouseholdID, Title: "Chicken Curry", Servings: 4}
	if err := recipeStore.Create(curry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	registry := tools.NewSousChefRegistry(tools.Deps{
		Recipes: recipeStore, Planner: plannerStore,
		Grocery: groceryStore, Prefs: prefsStore, Logger: logger,
	})

	// Turn 1: the model searches for the recipe, then proposes adding
	// it to Monday dinner.
	client := &fakeClient{responses: []*llm.ChatResponse{
		toolResponse("Let me find that recipe.",
			llm.ToolCall{ID: "toolu_list", Name: "recipe_list", Input: map[string]any{"search": "curry"}},
		),
		toolResponse("Chicken Curry it is — shall I add it to Monday?",
			llm.ToolCall{ID: "toolu_add", Name: "planner_add_meal", Input: map[string]any{
				"date":      "2026-01-12",
				"meal_type": "dinner",
				"recipe_id": curry.ID.String(),
			}},
		),
	}}
	loop := New(client, registry, logger, nil)

	res, err := loop.Run(context.Background(), ident, []llm.Message{
		{Role: "system", Content: "You are a helpful sous chef."},
		{Role: "user", Content: "Put chicken curry on the dinner plan for Monday the 12th"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.ApprovalRequired || len(res.Actions) != 1 {
		t.Fatalf("result = %+v, want one pending action", res)
	}
	if res.Actions[0].Preview != "Add to dinner on 2026-01-12" {
		t.Errorf("preview = %q", res.Actions[0].Preview)
	}

	// Nothing on the calendar until approval.
	if n, _ := plannerStore.CountOnDate(ident.HouseholdID, "2026-01-12"); n != 0 {
		t.Fatalf("meals before approval = %d, want 0", n)
	}

	// Turn 2: approval executes the write and the model confirms.
	confirm := &fakeClient{responses: []*llm.ChatResponse{
		textResponse("Chicken Curry is on the plan for Monday dinner."),
	}}
	loop = New(confirm, registry, logger, nil)
	final, err := loop.Resolve(context.Background(), ident, res.Messages,
		map[string]bool{res.Actions[0].ID: true})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if final.ApprovalRequired {
		t.Error("confirmation turn should not require approval")
	}

	if n, _ := plannerStore.CountOnDate(ident.HouseholdID, "2026-01-12"); n != 1 {
		t.Errorf("meals after approval = %d, want 1", n)
	}
}
