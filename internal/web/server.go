// Package web implements Ladle's HTTP API: session auth, the sous chef
// chat endpoints, REST handlers for recipes, the planner, grocery
// lists, and preferences, plus a WebSocket feed of household events.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ladle-app/ladle/internal/agent"
	"github.com/ladle-app/ladle/internal/auth"
	"github.com/ladle-app/ladle/internal/buildinfo"
	"github.com/ladle-app/ladle/internal/config"
	"github.com/ladle-app/ladle/internal/email"
	"github.com/ladle-app/ladle/internal/events"
	"github.com/ladle-app/ladle/internal/grocery"
	"github.com/ladle-app/ladle/internal/household"
	"github.com/ladle-app/ladle/internal/planner"
	"github.com/ladle-app/ladle/internal/prefs"
	"github.com/ladle-app/ladle/internal/recipes"
	"github.com/ladle-app/ladle/internal/tools"
)

// sessionCookie names the login cookie.
const sessionCookie = "ladle_session"

// Stores bundles the persistence layers the server serves from.
type Stores struct {
	Auth       *auth.Store
	Households *household.Store
	Recipes    *recipes.Store
	Planner    *planner.Store
	Grocery    *grocery.Store
	Prefs      *prefs.Store
}

// Server is the HTTP API server.
type Server struct {
	cfg      *config.Config
	stores   Stores
	loop     *agent.Loop
	importer *recipes.Importer
	sender   *email.Sender
	bus      *events.Bus
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, stores Stores, loop *agent.Loop, importer *recipes.Importer, sender *email.Sender, bus *events.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		stores:   stores,
		loop:     loop,
		importer: importer,
		sender:   sender,
		bus:      bus,
		logger:   logger,
	}
}

// Handler builds the full route table. Exposed separately from Start
// so tests can serve it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)

	// Session-only endpoints (user may not have a household yet).
	mux.Handle("POST /auth/logout", s.requireUser(s.handleLogout))
	mux.Handle("GET /auth/me", s.requireUser(s.handleMe))
	mux.Handle("POST /household", s.requireUser(s.handleHouseholdCreate))
	mux.Handle("POST /household/join", s.requireUser(s.handleHouseholdJoin))

	// Household endpoints.
	mux.Handle("GET /household", s.requireHousehold(s.handleHouseholdGet))
	mux.Handle("POST /household/invites", s.requireHousehold(s.handleInviteCreate))
	mux.Handle("GET /household/invites/{code}/qr.png", s.requireHousehold(s.handleInviteQR))

	mux.Handle("POST /chat", s.requireHousehold(s.handleChat))
	mux.Handle("POST /chat/approve", s.requireHousehold(s.handleChatApprove))

	mux.Handle("GET /recipes", s.requireHousehold(s.handleRecipeList))
	mux.Handle("POST /recipes", s.requireHousehold(s.handleRecipeCreate))
	mux.Handle("POST /recipes/import", s.requireHousehold(s.handleRecipeImport))
	mux.Handle("GET /recipes/{id}", s.requireHousehold(s.handleRecipeGet))
	mux.Handle("PUT /recipes/{id}", s.requireHousehold(s.handleRecipeUpdate))
	mux.Handle("DELETE /recipes/{id}", s.requireHousehold(s.handleRecipeDelete))

	mux.Handle("GET /planner/meals", s.requireHousehold(s.handlePlannerWeek))
	mux.Handle("POST /planner/meals", s.requireHousehold(s.handlePlannerAdd))
	mux.Handle("DELETE /planner/meals/{id}", s.requireHousehold(s.handlePlannerRemove))

	mux.Handle("GET /grocery/lists", s.requireHousehold(s.handleGroceryLists))
	mux.Handle("POST /grocery/lists", s.requireHousehold(s.handleGroceryListCreate))
	mux.Handle("GET /grocery/lists/{id}", s.requireHousehold(s.handleGroceryListGet))
	mux.Handle("POST /grocery/lists/{id}/items", s.requireHousehold(s.handleGroceryItemAdd))
	mux.Handle("POST /grocery/lists/{id}/push", s.requireHousehold(s.handleGroceryPush))
	mux.Handle("POST /grocery/lists/{id}/email", s.requireHousehold(s.handleGroceryEmail))
	mux.Handle("DELETE /grocery/items/{id}", s.requireHousehold(s.handleGroceryItemRemove))
	mux.Handle("POST /grocery/items/{id}/check", s.requireHousehold(s.handleGroceryItemCheck))

	mux.Handle("GET /preferences", s.requireHousehold(s.handlePrefsGet))
	mux.Handle("PUT /preferences", s.requireHousehold(s.handlePrefsPut))

	mux.Handle("GET /events/ws", s.requireHousehold(s.handleEventsWS))

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. It blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Listen.Address, s.cfg.Listen.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // chat turns can run many model calls
	}

	addr := s.cfg.Listen.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.cfg.Listen.Port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// --- Session middleware ---

type contextKey string

const userKey contextKey = "user"

// requireUser resolves the session cookie to a user and rejects
// unauthenticated requests.
func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		user, err := s.stores.Auth.GetSession(cookie.Value)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// requireHousehold additionally requires the user to belong to a
// household, since every domain entity is household-scoped.
func (s *Server) requireHousehold(next http.HandlerFunc) http.Handler {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user.HouseholdID == uuid.Nil {
			s.writeError(w, http.StatusBadRequest, "join or create a household first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) *auth.User {
	user, _ := r.Context().Value(userKey).(*auth.User)
	return user
}

func identityFrom(r *http.Request) tools.Identity {
	user := currentUser(r)
	return tools.Identity{UserID: user.ID, HouseholdID: user.HouseholdID}
}

// --- Response helpers ---

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	s.writeJSON(w, map[string]any{"error": message})
}

// decodeBody decodes a JSON request body, replying 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// --- Basic endpoints ---

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.writeJSON(w, map[string]string{
		"name":    "Ladle",
		"version": buildinfo.Version,
		"status":  "ok",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, buildinfo.Info())
}
