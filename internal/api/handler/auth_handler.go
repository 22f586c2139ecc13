package handler

import (
	"log/slog"
	"net/http"
	"tle_zone_contest/internal/app/service"
	"tle_zone_contest/internal/common"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req service.SignupRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}

	resp, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}
