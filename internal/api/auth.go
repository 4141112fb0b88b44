package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"campusagent/internal/auth"
	"campusagent/internal/store"
)

// authHandler serves admin signup and login.
type authHandler struct {
	admins   AdminStore
	secret   string
	tokenTTL time.Duration
	validate *validator.Validate
	logger   *slog.Logger
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type adminSummary struct {
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// signup registers a new admin account.
func (h *authHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body", h.logger)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.validate.Var(email, "required,email"); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid email address", h.logger)
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "validation", "password must be at least 8 characters", h.logger)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hashing password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	admin, err := h.admins.CreateAdmin(r.Context(), email, hash, strings.TrimSpace(req.Name))
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusBadRequest, "conflict", "email already registered", h.logger)
			return
		}
		h.logger.Error("creating admin", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	h.logger.Info("admin registered", "email", admin.Email)
	writeJSON(w, http.StatusOK, adminSummary{
		Email:       admin.Email,
		DisplayName: admin.DisplayName,
		Verified:    admin.Verified,
		CreatedAt:   admin.CreatedAt,
	}, h.logger)
}

// login exchanges form credentials (username=email, password) for a bearer
// token. Unknown accounts and wrong passwords are indistinguishable to the
// caller.
func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid form body", h.logger)
		return
	}

	email := strings.ToLower(strings.TrimSpace(r.PostFormValue("username")))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		writeError(w, http.StatusBadRequest, "validation", "username and password are required", h.logger)
		return
	}

	admin, err := h.admins.AdminByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials", h.logger)
			return
		}
		h.logger.Error("looking up admin", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	if err := auth.ComparePassword(admin.PasswordHash, password); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials", h.logger)
		return
	}

	token, err := auth.NewAccessToken(h.secret, admin.Email, h.tokenTTL)
	if err != nil {
		h.logger.Error("minting access token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	h.logger.Info("admin logged in", "email", admin.Email)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"}, h.logger)
}
