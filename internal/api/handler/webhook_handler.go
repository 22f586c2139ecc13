package handler

import (
	"log/slog"
	"net/http"
	"tle_zone_contest/internal/api/middleware"
	"tle_zone_contest/internal/app/service"
	"tle_zone_contest/internal/common"

	"github.com/go-chi/chi/v5"
)

type WebhookHandler struct {
	webhookService *service.WebhookService
	secret         string
	logger         *slog.Logger
}

func NewWebhookHandler(ws *service.WebhookService, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{webhookService: ws, secret: secret, logger: logger}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.WebhookSecret(h.secret)).Post("/results", h.handleJudgeResults)
}

func (h *WebhookHandler) handleJudgeResults(w http.ResponseWriter, r *http.Request) {
	var payload service.JudgeResultsPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.logger.Warn("invalid judge webhook payload", "error", err)
		common.RespondWithDomainError(w, err)
		return
	}

	stored, err := h.webhookService.HandleJudgeResults(r.Context(), payload)
	if err != nil {
		h.logger.Warn("judge webhook rejected", "contest_id", payload.ContestID, "user_id", payload.UserID, "error", err)
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]int{"stored": stored})
}
