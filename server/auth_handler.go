package server

import (
	"errors"
	"net/http"
	"strings"

	"MelodyMind/core/apperr"
	"MelodyMind/core/auth"
	"MelodyMind/logger"
	"MelodyMind/model"
)

// SignupRequest represents the registration request body
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	User    *model.User `json:"user"`
}

// SignupHandler registers a user and returns a token.
func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := model.NewUser(email, strings.TrimSpace(req.Name), hash)
	if err := h.Users.Create(r.Context(), user); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.Tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("[Auth] user registered", logger.String("userId", user.ID))
	writeJSON(w, http.StatusCreated, authResponse{Success: true, Token: token, User: user})
}

// LoginHandler handles user login requests
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.Users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, apperr.ErrNotFound) {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		logger.Warn("[Auth] wrong password", logger.String("userId", user.ID))
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.Tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Success: true, Token: token, User: user})
}

// MeHandler returns the authenticated user.
func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}
