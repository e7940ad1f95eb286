package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/rentsync/api/controllers"
	"github.com/angelmondragon/rentsync/api/middleware"
	"github.com/angelmondragon/rentsync/internal/chatsync"
	"github.com/angelmondragon/rentsync/pkg/config"
	"github.com/angelmondragon/rentsync/pkg/logger"
)

// NewRouter wires the local ops surface: health, metrics, and the inbox
// read/mutate endpoints the UI polls.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	sync chatsync.Synchronizer,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))

	r.Get("/healthz", controllers.Healthz(cfg))
	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	inbox := controllers.NewInboxController(sync, logg)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/inbox", inbox.GetInbox)
		r.Get("/inbox/conversations", inbox.GetConversations)
		r.Post("/inbox/read", inbox.MarkRead)
		r.Post("/inbox/read-all", inbox.MarkAllRead)
		r.Post("/chat/send", inbox.Send)
	})

	return r
}
