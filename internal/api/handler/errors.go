package handler

import (
	"log/slog"
	"net/http"
	"tle_zone_contest/internal/common"

	"github.com/go-chi/chi/v5/middleware"
)

// respondErr logs server-side failures before writing the error response.
func respondErr(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	if common.HTTPStatusFromError(err) >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	common.RespondWithDomainError(w, err)
}
