package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
	"tle_zone_contest/internal/api/handler"
	"tle_zone_contest/internal/app/service"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

// Dependencies is everything the HTTP layer needs from main.
type Dependencies struct {
	TokenAuth     *jwtauth.JWTAuth
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	WebhookSecret string
	// HealthCheck reports backing store health; nil means always healthy.
	HealthCheck func(ctx context.Context) error

	Auth          *service.AuthService
	Contests      *service.ContestService
	Registrations *service.RegistrationService
	Ratings       *service.RatingService
	Reports       *service.ReportService
	Finalization  *service.FinalizationService
	Webhook       *service.WebhookService
}

func NewRouter(d Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifier only parses "Authorization: Bearer T"; routes decide whether
	// a token is required.
	r.Use(jwtauth.Verifier(d.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.HealthCheck != nil {
			if err := d.HealthCheck(r.Context()); err != nil {
				d.Logger.Error("health check failed", "error", err)
				common.RespondWithError(w, http.StatusServiceUnavailable, "unhealthy")
				return
			}
		}
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", d.Metrics.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		authHandler := handler.NewAuthHandler(d.Auth, d.Logger)
		v1.Group(func(publicAuth chi.Router) {
			authHandler.RegisterRoutes(publicAuth)
		})

		contestHandler := handler.NewContestHandler(d.Contests, d.Registrations, d.Reports, d.Finalization, d.Logger)
		v1.Route("/contests", contestHandler.RegisterRoutes)

		ratingHandler := handler.NewRatingHandler(d.Ratings, d.Logger)
		v1.Route("/users", ratingHandler.RegisterRoutes)

		// Judge callbacks, guarded by the shared secret header.
		webhookHandler := handler.NewWebhookHandler(d.Webhook, d.WebhookSecret, d.Logger)
		v1.Route("/webhook", webhookHandler.RegisterRoutes)
	})

	return r
}
