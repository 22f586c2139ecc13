package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"tle_zone_contest/internal/api/middleware"
	"tle_zone_contest/internal/app/service"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/contest"

	"github.com/go-chi/chi/v5"
)

type ContestHandler struct {
	contests      *service.ContestService
	registrations *service.RegistrationService
	reports       *service.ReportService
	finalization  *service.FinalizationService
	logger        *slog.Logger
}

func NewContestHandler(
	contests *service.ContestService,
	registrations *service.RegistrationService,
	reports *service.ReportService,
	finalization *service.FinalizationService,
	logger *slog.Logger,
) *ContestHandler {
	return &ContestHandler{
		contests:      contests,
		registrations: registrations,
		reports:       reports,
		finalization:  finalization,
		logger:        logger,
	}
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(public chi.Router) {
		public.Use(middleware.OptionalAuth)
		public.Get("/", h.listContests)                      // GET /api/v1/contests?view=upcoming
		public.Get("/{contestID}", h.getContest)             // GET /api/v1/contests/{id or slug}
		public.Get("/{contestID}/status", h.getStatus)       // GET /api/v1/contests/{id}/status?view=past
		public.Get("/{contestID}/standings", h.getStandings) // GET /api/v1/contests/{id}/standings
	})

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Authenticator)
		authed.Post("/{contestID}/register", h.register)
		authed.Post("/{contestID}/enter", h.enter)
		authed.Get("/{contestID}/report", h.getReport)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.Authenticator)
		admin.Use(middleware.AdminOnly)
		admin.Post("/", h.createContest)
		admin.Post("/{contestID}/finalize", h.finalize)
		admin.Post("/{contestID}/invite", h.invite)
	})
}

func (h *ContestHandler) createContest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	var req service.CreateContestRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}

	c, err := h.contests.CreateContest(r.Context(), userID, req)
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, c)
}

func (h *ContestHandler) listContests(w http.ResponseWriter, r *http.Request) {
	view, err := contest.ParseViewContext(r.URL.Query().Get("view"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	userRole, _ := middleware.GetUserRoleFromContext(r.Context())
	if view == contest.ViewMy && userID == "" {
		common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	contests, err := h.contests.ListContests(r.Context(), view, userID, userRole, page, pageSize)
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}

	type contestListResponse struct {
		View     contest.ViewContext   `json:"view"`
		Contests []service.ContestView `json:"contests"`
		Page     int                   `json:"page"`
		PageSize int                   `json:"page_size"`
	}
	common.RespondWithJSON(w, http.StatusOK, contestListResponse{
		View:     view,
		Contests: contests,
		Page:     page,
		PageSize: pageSize,
	})
}

func (h *ContestHandler) getContest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	userRole, _ := middleware.GetUserRoleFromContext(r.Context())

	c, err := h.contests.GetContest(r.Context(), chi.URLParam(r, "contestID"), userID, userRole)
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, c)
}

func (h *ContestHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	view, err := contest.ParseViewContext(r.URL.Query().Get("view"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	userRole, _ := middleware.GetUserRoleFromContext(r.Context())

	status, err := h.contests.Status(r.Context(), chi.URLParam(r, "contestID"), userID, userRole, view)
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, status)
}

func (h *ContestHandler) register(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	userRole, _ := middleware.GetUserRoleFromContext(r.Context())

	if _, err := h.registrations.Register(r.Context(), userID, userRole, chi.URLParam(r, "contestID")); err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]bool{"registered": true})
}

func (h *ContestHandler) enter(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	userRole, _ := middleware.GetUserRoleFromContext(r.Context())

	res, err := h.contests.EnterContest(r.Context(), userID, userRole, chi.URLParam(r, "contestID"))
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}

func (h *ContestHandler) getReport(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	report, err := h.reports.Report(r.Context(), chi.URLParam(r, "contestID"), userID)
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, report)
}

func (h *ContestHandler) getStandings(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	userRole, _ := middleware.GetUserRoleFromContext(r.Context())

	standings, err := h.reports.Standings(r.Context(), chi.URLParam(r, "contestID"), userID, userRole)
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, standings)
}

func (h *ContestHandler) finalize(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	job, err := h.finalization.EnqueueFinalization(r.Context(), chi.URLParam(r, "contestID"), userID)
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, job)
}

func (h *ContestHandler) invite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}

	created, err := h.registrations.Invite(r.Context(), chi.URLParam(r, "contestID"), req.UserID)
	if err != nil {
		respondErr(h.logger, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"user_id": req.UserID, "registered": true, "created": created})
}
