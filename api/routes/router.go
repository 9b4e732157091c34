package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/eventix-edge/api/controllers"
	"github.com/angelmondragon/eventix-edge/api/middleware"
	"github.com/angelmondragon/eventix-edge/pkg/config"
	"github.com/angelmondragon/eventix-edge/pkg/logger"
	"github.com/angelmondragon/eventix-edge/pkg/validation"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient controllers.Pinger,
	gatherer prometheus.Gatherer,
	provider controllers.NotificationProvider,
	tokens controllers.TokenSetter,
	validator *validation.Validator,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, redisClient, provider))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Post("/validate/{schema}", controllers.PublicValidate(validator, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session())

		r.Post("/navigation", controllers.Navigate(provider, tokens, logg))
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationsSnapshot(provider, logg))
			r.Get("/stream", controllers.NotificationsStream(provider, logg))
			r.Get("/history", controllers.NotificationsHistory(provider, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(provider, logg))
			r.Delete("/history", controllers.ClearNotificationHistory(provider, logg))
			r.Delete("/toasts/{toastId}", controllers.DismissToast(provider, logg))
		})
	})

	return r
}
