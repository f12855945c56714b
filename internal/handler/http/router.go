package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MiSArch/shoppingcart/internal/config"
	"github.com/MiSArch/shoppingcart/internal/service"
	"github.com/MiSArch/shoppingcart/pkg/health"
	"github.com/MiSArch/shoppingcart/pkg/middleware"
)

// NewRouter creates a chi router with all shopping cart routes registered.
func NewRouter(
	cartService *service.CartService,
	healthHandler *health.Handler,
	cfg *config.Config,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Recovery sits outermost so nothing below can crash the process.
	// RequestLogger is mounted after RequestLogging and Tracing because it
	// reads the correlation ID and span they put into the context.
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("shoppingcart"))
	r.Use(middleware.Tracing("shoppingcart"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))

	// Probes. The bare /health alias serves orchestrators that only take
	// one URL; it reports readiness, the stricter of the two.
	r.Get("/health", healthHandler.ReadinessHandler())
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	cartHandler := NewCartHandler(cartService, logger)

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)
		r.Use(UserIDFromHeader)

		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)

		r.Get("/items", cartHandler.ListItems)
		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{itemID}", cartHandler.UpdateItemQuantity)
		r.Delete("/items/{itemID}", cartHandler.RemoveItem)
	})

	return r
}
