package handler

import (
	"log/slog"
	"net/http"
	"tle_zone_contest/internal/api/middleware"
	"tle_zone_contest/internal/app/service"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type RatingHandler struct {
	ratings *service.RatingService
	logger  *slog.Logger
}

func NewRatingHandler(ratings *service.RatingService, logger *slog.Logger) *RatingHandler {
	return &RatingHandler{ratings: ratings, logger: logger}
}

func (h *RatingHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.Authenticator).Get("/me/ratings", h.myHistory)
	r.Get("/{userID}/ratings", h.history) // GET /api/v1/users/{id}/ratings
	r.Get("/{userID}/rating", h.profile)  // GET /api/v1/users/{id}/rating
}

type ratingHistoryResponse struct {
	UserID        string                     `json:"user_id"`
	CurrentRating int                        `json:"current_rating"`
	History       []model.RatingHistoryEntry `json:"history"`
}

func (h *RatingHandler) myHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	h.writeHistory(w, r, userID)
}

func (h *RatingHandler) history(w http.ResponseWriter, r *http.Request) {
	h.writeHistory(w, r, chi.URLParam(r, "userID"))
}

func (h *RatingHandler) writeHistory(w http.ResponseWriter, r *http.Request, userID string) {
	history, err := h.ratings.GetHistory(r.Context(), userID)
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	current, err := h.ratings.GetCurrentRating(r.Context(), userID)
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ratingHistoryResponse{
		UserID:        userID,
		CurrentRating: current,
		History:       history,
	})
}

func (h *RatingHandler) profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.ratings.GetProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, profile)
}
