package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/V4T54L/csv-indexer/internal/adapter/api/handler"
	"github.com/V4T54L/csv-indexer/internal/adapter/api/middleware"
	"github.com/V4T54L/csv-indexer/internal/pkg/config"
	"github.com/V4T54L/csv-indexer/internal/usecase"
)

// NewRouter creates and configures the HTTP router for the webhook service.
// adminUseCase may be nil when no dead-letter stream is configured, broker when
// no live throughput stream is wanted.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	notificationUseCase handler.NotificationUseCase,
	adminUseCase *usecase.AdminStreamUseCase,
	broker *handler.SSEBroker,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger))

	var progress handler.ProgressReporter
	if broker != nil {
		progress = broker
	}
	notificationHandler := handler.NewNotificationHandler(notificationUseCase, logger, cfg.MaxNotificationSize, progress)
	auth := middleware.BearerAuth(cfg.WebhookToken, logger)

	r.Get("/health", handler.HealthCheck(logger))

	r.With(auth).Method(http.MethodPost, "/notifications", notificationHandler)
	if broker != nil {
		r.With(auth).Method(http.MethodGet, "/events", broker)
	}

	if adminUseCase != nil {
		adminHandler := handler.NewAdminHandler(adminUseCase, logger)
		r.Route("/admin/deadletters", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", adminHandler.GetStats)
			r.Get("/pending", adminHandler.GetPending)
			r.Post("/trim", adminHandler.TrimStream)
		})
	}

	return r
}
