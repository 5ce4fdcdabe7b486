package web

import (
	"errors"
	"net/http"

	"github.com/ladle-app/ladle/internal/auth"
	"github.com/ladle-app/ladle/internal/household"
)

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	user, err := s.stores.Auth.CreateUser(req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.stores.Auth.CreateSession(user.ID, 0)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	s.setSessionCookie(w, sess)
	s.writeJSON(w, map[string]any{"user": user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	user, err := s.stores.Auth.Authenticate(req.Email, req.Password)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	sess, err := s.stores.Auth.CreateSession(user.ID, 0)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	s.setSessionCookie(w, sess)
	s.writeJSON(w, map[string]any{"user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if err := s.stores.Auth.DeleteSession(cookie.Value); err != nil {
			s.logger.Warn("failed to delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	s.writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{"user": currentUser(r)})
}

// --- Households ---

func (s *Server) handleHouseholdCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	hh, err := s.stores.Households.Create(req.Name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}
	if err := s.stores.Auth.SetHousehold(currentUser(r).ID, hh.ID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to join new household")
		return
	}
	s.writeJSON(w, map[string]any{"household": hh})
}

func (s *Server) handleHouseholdGet(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	hh, err := s.stores.Households.Get(user.HouseholdID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "household not found")
		return
	}
	members, err := s.stores.Auth.Members(user.HouseholdID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load members")
		return
	}
	s.writeJSON(w, map[string]any{"household": hh, "members": members})
}

func (s *Server) handleHouseholdJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	hh, err := s.stores.Households.Redeem(req.Code)
	if err != nil {
		if errors.Is(err, household.ErrInviteInvalid) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to redeem invite")
		return
	}
	if err := s.stores.Auth.SetHousehold(currentUser(r).ID, hh.ID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to join household")
		return
	}
	s.writeJSON(w, map[string]any{"household": hh})
}

func (s *Server) handleInviteCreate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	inv, err := s.stores.Households.CreateInvite(user.HouseholdID, 0)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to create invite")
		return
	}
	s.writeJSON(w, map[string]any{
		"invite":   inv,
		"join_url": household.JoinURL(s.cfg.BaseURL, inv.Code),
		"qr_url":   "/household/invites/" + inv.Code + "/qr.png",
	})
}

func (s *Server) handleInviteQR(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	png, err := household.InviteQR(s.cfg.BaseURL, code)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to render QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		s.logger.Debug("failed to write QR response", "error", err)
	}
}
