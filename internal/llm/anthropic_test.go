package llm

import (
	"testing"
)

func TestToWireExtractsSystem(t *testing.T) {
	msgs := []Message{
		{Role: "system", Content: "You are a sous chef."},
		{Role: "system", Content: "Today is Monday."},
		{Role: "user", Content: "hi"},
	}

	wire, system := toWire(msgs)
	if len(wire) != 1 {
		t.Fatalf("wire messages = %d, want 1", len(wire))
	}
	if wire[0].Role != "user" {
		t.Errorf("role = %q, want user", wire[0].Role)
	}
	want := "You are a sous chef.\n\nToday is Monday."
	if system != want {
		t.Errorf("system = %q, want %q", system, want)
	}
}

func TestToWireAssistantToolCalls(t *testing.T) {
	msgs := []Message{
		{
			Role:    "assistant",
			Content: "Let me look that up.",
			ToolCalls: []ToolCall{
				{ID: "toolu_1", Name: "recipe_list", Input: map[string]any{"search": "curry"}},
			},
		},
		{Role: "tool", ToolCallID: "toolu_1", Content: `{"success":true}`},
	}

	wire, _ := toWire(msgs)
	if len(wire) != 2 {
		t.Fatalf("wire messages = %d, want 2", len(wire))
	}

	blocks, ok := wire[0].Content.([]anthropicContent)
	if !ok {
		t.Fatalf("assistant content is %T, want content blocks", wire[0].Content)
	}
	if len(blocks) != 2 {
		t.Fatalf("assistant blocks = %d, want text + tool_use", len(blocks))
	}
	if blocks[0].Type != "text" || blocks[1].Type != "tool_use" {
		t.Errorf("block types = %q, %q", blocks[0].Type, blocks[1].Type)
	}
	if blocks[1].ID != "toolu_1" || blocks[1].Name != "recipe_list" {
		t.Errorf("tool_use block = %+v", blocks[1])
	}

	// Tool result becomes a user-role tool_result block.
	if wire[1].Role != "user" {
		t.Errorf("tool result role = %q, want user", wire[1].Role)
	}
	resBlocks, ok := wire[1].Content.([]anthropicContent)
	if !ok || len(resBlocks) != 1 {
		t.Fatalf("tool result content = %+v", wire[1].Content)
	}
	if resBlocks[0].Type != "tool_result" || resBlocks[0].ToolUseID != "toolu_1" {
		t.Errorf("tool_result block = %+v", resBlocks[0])
	}
}

func TestToWireGeneratesToolCallID(t *testing.T) {
	msgs := []Message{
		{
			Role:      "assistant",
			ToolCalls: []ToolCall{{Name: "recipe_get", Input: map[string]any{}}},
		},
	}
	wire, _ := toWire(msgs)
	blocks := wire[0].Content.([]anthropicContent)
	if blocks[0].ID == "" {
		t.Error("expected a generated tool_use id for empty ToolCall.ID")
	}
}

func TestFromWireCollectsToolCalls(t *testing.T) {
	resp := &anthropicResponse{
		Model:      "claude-sonnet-4-20250514",
		StopReason: "tool_use",
		Content: []anthropicContent{
			{Type: "text", Text: "Checking the planner."},
			{Type: "tool_use", ID: "toolu_9", Name: "planner_get_week", Input: map[string]any{"start_date": "2026-01-12"}},
		},
		Usage: anthropicUsage{InputTokens: 10, OutputTokens: 5},
	}

	got := fromWire(resp)
	if got.Message.Content != "Checking the planner." {
		t.Errorf("content = %q", got.Message.Content)
	}
	if len(got.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(got.Message.ToolCalls))
	}
	tc := got.Message.ToolCalls[0]
	if tc.ID != "toolu_9" || tc.Name != "planner_get_week" {
		t.Errorf("tool call = %+v", tc)
	}
	if got.InputTokens != 10 || got.OutputTokens != 5 {
		t.Errorf("usage = %d/%d", got.InputTokens, got.OutputTokens)
	}
}

func TestToWireToolsDefaultSchema(t *testing.T) {
	wire := toWireTools([]Tool{{Name: "noop", Description: "does nothing"}})
	if len(wire) != 1 {
		t.Fatalf("tools = %d, want 1", len(wire))
	}
	schema, ok := wire[0].InputSchema.(map[string]any)
	if !ok {
		t.Fatalf("schema is %T", wire[0].InputSchema)
	}
	if schema["type"] != "object" {
		t.Errorf("default schema type = %v, want object", schema["type"])
	}
}
