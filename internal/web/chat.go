package web

import (
	"net/http"
	"time"

	"github.com/ladle-app/ladle/internal/llm"
	"github.com/ladle-app/ladle/internal/prompts"
)

// chatRequest is one sous chef turn. Messages carries the prior
// conversation as returned by the previous response; the server keeps
// no conversation state of its own.
type chatRequest struct {
	Message  string        `json:"message"`
	Messages []llm.Message `json:"messages,omitempty"`
}

// approveRequest resolves a gated turn. Decisions maps pending action
// ids to the user's choice; actions left out are declined.
type approveRequest struct {
	Messages  []llm.Message   `json:"messages"`
	Decisions map[string]bool `json:"decisions"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ident := identityFrom(r)

	p, err := s.stores.Prefs.Get(ident.HouseholdID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}

	// The system prompt is rebuilt every turn so date and preference
	// changes take effect immediately; any stale system message from
	// the echoed history is dropped.
	msgs := []llm.Message{{Role: "system", Content: prompts.System(p, time.Now())}}
	for _, m := range req.Messages {
		if m.Role == "system" {
			continue
		}
		msgs = append(msgs, m)
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: req.Message})

	result, err := s.loop.Run(r.Context(), ident, msgs)
	if err != nil {
		s.logger.Error("chat turn failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "the sous chef is unavailable right now")
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleChatApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	result, err := s.loop.Resolve(r.Context(), identityFrom(r), req.Messages, req.Decisions)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, result)
}
