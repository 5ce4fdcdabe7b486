// Package agent runs the sous chef conversation loop: it feeds the
// conversation to the model, auto-executes read tools, and gates every
// mutating tool behind explicit user approval.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ladle-app/ladle/internal/config"
	"github.com/ladle-app/ladle/internal/events"
	"github.com/ladle-app/ladle/internal/llm"
	"github.com/ladle-app/ladle/internal/tools"
)

// DefaultMaxIterations bounds model calls within one chat turn.
const DefaultMaxIterations = 10

// limitExceededMessage is returned when a turn burns through its
// iteration budget without the model settling on an answer.
const limitExceededMessage = "I'm sorry — I wasn't able to finish working through that request. Could you try rephrasing it, or break it into smaller steps?"

// state tracks where a chat turn is in its lifecycle. The loop is a
// small state machine rather than implicit control flow so every
// transition is visible in trace logs.
type state string

const (
	stateAwaitingModel     state = "awaiting_model"
	stateRespondedText     state = "model_responded_text"
	stateRespondedTools    state = "model_responded_tools"
	stateExecutingReads    state = "executing_read_tools"
	stateAwaitingApproval  state = "awaiting_approval"
	stateIterLimitExceeded state = "iteration_limit_exceeded"
)

// PendingAction is one mutating tool call awaiting user approval. ID is
// the model's tool-call id, so an approval can be matched back to the
// tool_use block in the echoed conversation.
type PendingAction struct {
	ID       string         `json:"id"`
	ToolName string         `json:"tool_name"`
	Input    map[string]any `json:"tool_input"`
	Preview  string         `json:"preview"`
}

// Usage aggregates model token consumption across a turn's calls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Result is the outcome of one chat turn.
type Result struct {
	// Message is the assistant's text for the user.
	Message string `json:"message"`
	// Actions holds mutating tool calls awaiting approval. Non-empty
	// iff ApprovalRequired.
	ApprovalRequired bool            `json:"approval_required"`
	Actions          []PendingAction `json:"actions,omitempty"`
	// Messages is the full conversation including this turn's tool
	// activity. Clients echo it back on the next request; the server
	// keeps no turn state.
	Messages []llm.Message `json:"messages"`

	LimitExceeded bool  `json:"limit_exceeded,omitempty"`
	Usage         Usage `json:"usage"`
	Iterations    int   `json:"-"`
}

// Loop drives the tool-calling conversation.
type Loop struct {
	llm           llm.Client
	registry      *tools.Registry
	logger        *slog.Logger
	bus           *events.Bus
	maxIterations int
}

// New creates a loop with the default iteration budget.
func New(client llm.Client, registry *tools.Registry, logger *slog.Logger, bus *events.Bus) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		llm:           client,
		registry:      registry,
		logger:        logger,
		bus:           bus,
		maxIterations: DefaultMaxIterations,
	}
}

// Run executes one chat turn. messages is the full conversation
// including the new user message; the caller prepends the system
// prompt. The turn ends when the model responds with plain text, asks
// for a mutating tool (approval gate), or exhausts the iteration
// budget.
func (l *Loop) Run(ctx context.Context, ident tools.Identity, messages []llm.Message) (*Result, error) {
	start := time.Now()
	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)

	result := &Result{}
	st := stateAwaitingModel

	l.bus.Publish(events.Event{
		Household: ident.HouseholdID,
		Source:    events.SourceAgent,
		Kind:      events.KindRequestStart,
		Data:      map[string]any{"user_id": ident.UserID.String(), "messages": len(msgs)},
	})

	for iter := 1; ; iter++ {
		if iter > l.maxIterations {
			st = stateIterLimitExceeded
			l.logger.Warn("iteration limit exceeded", "iterations", l.maxIterations)
			result.Message = limitExceededMessage
			result.LimitExceeded = true
			break
		}
		result.Iterations = iter

		l.logger.Log(ctx, config.LevelTrace, "loop state", "state", string(st), "iter", iter)
		l.bus.Publish(events.Event{
			Household: ident.HouseholdID,
			Source:    events.SourceAgent,
			Kind:      events.KindLLMCall,
			Data:      map[string]any{"iter": iter},
		})

		resp, err := l.llm.Chat(ctx, msgs, l.registry.Declarations())
		if err != nil {
			return nil, fmt.Errorf("model call failed (iteration %d): %w", iter, err)
		}
		result.Usage.InputTokens += resp.InputTokens
		result.Usage.OutputTokens += resp.OutputTokens
		msgs = append(msgs, resp.Message)

		l.bus.Publish(events.Event{
			Household: ident.HouseholdID,
			Source:    events.SourceAgent,
			Kind:      events.KindLLMResponse,
			Data: map[string]any{
				"iter":       iter,
				"tokens_in":  resp.InputTokens,
				"tokens_out": resp.OutputTokens,
				"tool_calls": len(resp.Message.ToolCalls),
			},
		})

		if len(resp.Message.ToolCalls) == 0 {
			st = stateRespondedText
			result.Message = resp.Message.Content
			break
		}
		st = stateRespondedTools

		// Any mutating call gates the whole batch behind approval;
		// reads in the batch run later, during resolution.
		if actions := l.pendingActions(resp.Message.ToolCalls); len(actions) > 0 {
			st = stateAwaitingApproval
			result.Message = resp.Message.Content
			result.ApprovalRequired = true
			result.Actions = actions

			l.bus.Publish(events.Event{
				Household: ident.HouseholdID,
				Source:    events.SourceAgent,
				Kind:      events.KindApprovalIssued,
				Data:      map[string]any{"actions": len(actions)},
			})
			break
		}

		st = stateExecutingReads
		msgs = append(msgs, l.executeReads(ctx, ident, resp.Message.ToolCalls)...)
		st = stateAwaitingModel
	}

	result.Messages = msgs
	l.bus.Publish(events.Event{
		Household: ident.HouseholdID,
		Source:    events.SourceAgent,
		Kind:      events.KindRequestComplete,
		Data: map[string]any{
			"iterations": result.Iterations,
			"tokens_in":  result.Usage.InputTokens,
			"tokens_out": result.Usage.OutputTokens,
			"elapsed_ms": time.Since(start).Milliseconds(),
			"state":      string(st),
		},
	})
	return result, nil
}

// Resolve handles the user's approval decisions for a gated turn.
// messages is the echoed conversation whose last assistant message
// holds the gated tool calls; decisions maps action ids to the user's
// choice (missing ids count as declined). Approved writes execute with
// the caller's identity, declined writes return a refusal to the
// model, and reads deferred by the gate execute now. The loop then
// continues so the model can confirm what happened.
//
// Resolution is deliberately stateless: the server never remembers
// issued actions, so replaying an approval replays the mutation.
func (l *Loop) Resolve(ctx context.Context, ident tools.Identity, messages []llm.Message, decisions map[string]bool) (*Result, error) {
	calls := gatedToolCalls(messages)
	if len(calls) == 0 {
		return nil, fmt.Errorf("conversation has no pending tool calls to resolve")
	}

	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)

	for _, tc := range calls {
		var res tools.Result
		switch {
		case !l.registry.Mutates(tc.Name):
			res = l.executeOne(ctx, ident, tc)

		case decisions[tc.ID]:
			res = l.executeOne(ctx, ident, tc)
			l.bus.Publish(events.Event{
				Household: ident.HouseholdID,
				Source:    events.SourceAgent,
				Kind:      events.KindApprovalResolved,
				Data:      map[string]any{"tool": tc.Name, "approved": true, "ok": res.Success},
			})

		default:
			res = tools.Fail(tools.ErrorTypePermission, "", "the user declined this action")
			l.bus.Publish(events.Event{
				Household: ident.HouseholdID,
				Source:    events.SourceAgent,
				Kind:      events.KindApprovalResolved,
				Data:      map[string]any{"tool": tc.Name, "approved": false},
			})
		}
		msgs = append(msgs, toolResultMessage(tc.ID, res))
	}

	return l.Run(ctx, ident, msgs)
}

// pendingActions returns approval actions when the batch contains any
// mutating call, or nil for an all-read batch.
func (l *Loop) pendingActions(calls []llm.ToolCall) []PendingAction {
	hasWrite := false
	for _, tc := range calls {
		if l.registry.Mutates(tc.Name) {
			hasWrite = true
			break
		}
	}
	if !hasWrite {
		return nil
	}

	actions := make([]PendingAction, 0, len(calls))
	for _, tc := range calls {
		if !l.registry.Mutates(tc.Name) {
			continue
		}
		actions = append(actions, PendingAction{
			ID:       tc.ID,
			ToolName: tc.Name,
			Input:    tc.Input,
			Preview:  Preview(tc.Name, tc.Input),
		})
	}
	return actions
}

// executeReads runs an all-read batch concurrently, preserving the
// call order in the returned result messages so each tool_result lines
// up with its tool_use id.
func (l *Loop) executeReads(ctx context.Context, ident tools.Identity, calls []llm.ToolCall) []llm.Message {
	results := make([]tools.Result, len(calls))

	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Add(1)
		go func(i int, tc llm.ToolCall) {
			defer wg.Done()
			results[i] = l.executeOne(ctx, ident, tc)
		}(i, tc)
	}
	wg.Wait()

	out := make([]llm.Message, 0, len(calls))
	for i, tc := range calls {
		out = append(out, toolResultMessage(tc.ID, results[i]))
	}
	return out
}

func (l *Loop) executeOne(ctx context.Context, ident tools.Identity, tc llm.ToolCall) tools.Result {
	start := time.Now()
	l.bus.Publish(events.Event{
		Household: ident.HouseholdID,
		Source:    events.SourceAgent,
		Kind:      events.KindToolCall,
		Data:      map[string]any{"tool": tc.Name},
	})

	res := l.registry.Execute(ctx, ident, tc.Name, tc.Input)

	l.logger.Debug("tool executed",
		"tool", tc.Name,
		"ok", res.Success,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	l.bus.Publish(events.Event{
		Household: ident.HouseholdID,
		Source:    events.SourceAgent,
		Kind:      events.KindToolDone,
		Data:      map[string]any{"tool": tc.Name, "ok": res.Success, "duration_ms": time.Since(start).Milliseconds()},
	})
	return res
}

// gatedToolCalls finds the tool calls of the conversation's last
// assistant message, provided they are still unresolved (no tool
// results follow them).
func gatedToolCalls(messages []llm.Message) []llm.ToolCall {
	for i := len(messages) - 1; i >= 0; i-- {
		switch messages[i].Role {
		case "tool":
			return nil
		case "assistant":
			return messages[i].ToolCalls
		}
	}
	return nil
}

func toolResultMessage(toolCallID string, res tools.Result) llm.Message {
	payload, err := json.Marshal(res)
	if err != nil {
		payload = []byte(`{"success":false,"error":{"type":"INTERNAL_ERROR","message":"failed to encode tool result"}}`)
	}
	return llm.Message{
		Role:       "tool",
		ToolCallID: toolCallID,
		Content:    string(payload),
	}
}
