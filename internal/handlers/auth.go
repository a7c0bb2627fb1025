package handlers

import (
	"context"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/auth"
	"github.com/ukydev/cabtrips/internal/middleware"
	"github.com/ukydev/cabtrips/internal/models"
	"github.com/ukydev/cabtrips/internal/session"
)

// Sessions opens, resolves and ends view API sessions.
type Sessions interface {
	Open(ctx context.Context, token string, user models.User) (*session.Session, error)
	Lookup(ctx context.Context, id string) (*session.Session, error)
	Invalidate(ctx context.Context, id string) error
}

// AuthBackend is the part of the backend that signs users in.
type AuthBackend interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error)
}

// SessionResponse is returned on login and registration. Token is the
// session id clients send as their bearer token.
type SessionResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// MeResponse describes the signed-in user.
type MeResponse struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
}

// AuthHandler signs users in through the backend and keeps their sessions.
type AuthHandler struct {
	backend  AuthBackend
	sessions Sessions
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(backend AuthBackend, sessions Sessions) *AuthHandler {
	return &AuthHandler{backend: backend, sessions: sessions}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := auth.ValidateLogin(req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.backend.Login(r.Context(), req)
	if err != nil {
		log.WithError(err).WithField("username", req.Username).Warn("Login failed")
		writeError(w, r, err)
		return
	}
	h.open(w, r, resp, http.StatusOK)
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := auth.ValidateRegistration(req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.backend.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.open(w, r, resp, http.StatusCreated)
}

func (h *AuthHandler) open(w http.ResponseWriter, r *http.Request, resp *models.LoginResponse, status int) {
	s, err := h.sessions.Open(r.Context(), resp.Token, resp.User)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.WithFields(log.Fields{
		"user_id": s.UserID,
		"role":    s.Role,
	}).Info("Session opened")
	writeJSON(w, status, SessionResponse{Token: s.ID, User: resp.User})
}

// Logout ends the caller's session and closes its views.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "Session not found", http.StatusUnauthorized)
		return
	}
	if err := h.sessions.Invalidate(r.Context(), s.ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me describes the caller.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	s, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "Session not found", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{
		UserID:   s.UserID,
		Username: s.Username,
		Name:     s.Name,
		Role:     s.Role,
	})
}
