// Package events provides a publish/subscribe event bus for operational
// observability and live household updates. Events flow from components
// (agent loop, domain stores, approval path) to subscribers (WebSocket
// handler, MQTT publisher). The bus is nil-safe: calling Publish on a
// nil *Bus is a no-op, so components do not need guard checks.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Source constants identify which component published an event.
const (
	// SourceAgent identifies events from the sous-chef agent loop.
	SourceAgent = "agent"
	// SourceRecipes identifies recipe store changes.
	SourceRecipes = "recipes"
	// SourcePlanner identifies meal planner changes.
	SourcePlanner = "planner"
	// SourceGrocery identifies grocery list changes.
	SourceGrocery = "grocery"
	// SourcePrefs identifies household preference changes.
	SourcePrefs = "prefs"
)

// Kind constants describe the type of event within a source.
const (
	// KindRequestStart signals the beginning of a chat turn.
	// Data: user_id, messages.
	KindRequestStart = "request_start"
	// KindLLMCall signals the start of a model API call.
	// Data: iter.
	KindLLMCall = "llm_call"
	// KindLLMResponse signals completion of a model API call.
	// Data: iter, tokens_in, tokens_out, tool_calls.
	KindLLMResponse = "llm_response"
	// KindToolCall signals the start of a tool execution.
	// Data: tool.
	KindToolCall = "tool_call"
	// KindToolDone signals completion of a tool execution.
	// Data: tool, ok, duration_ms.
	KindToolDone = "tool_done"
	// KindApprovalIssued signals a chat turn returned pending approvals.
	// Data: actions.
	KindApprovalIssued = "approval_issued"
	// KindApprovalResolved signals an approval was executed or rejected.
	// Data: tool, approved, ok.
	KindApprovalResolved = "approval_resolved"
	// KindRequestComplete signals the end of a chat turn.
	// Data: iterations, tokens_in, tokens_out, elapsed_ms.
	KindRequestComplete = "request_complete"

	// KindEntityChanged signals a domain row was created, updated, or
	// deleted outside the chat path. Data: entity, action, id.
	KindEntityChanged = "entity_changed"
)

// Event represents a single event published by a component. Household
// is the tenancy boundary; subscribers serving a specific household
// must filter on it.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Household uuid.UUID      `json:"household_id"`
	Source    string         `json:"source"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs, so Unsubscribe
	// can accept the caller's <-chan view.
	recvToSend map[<-chan Event]chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full; drop rather than block.
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
