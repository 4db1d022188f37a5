package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fieldserve/dispatch-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/fieldserve/dispatch-ai-platform/internal/http/middleware"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Process        *handlers.ProcessHandler
	VendorWebhook  *handlers.VendorWebhookHandler
	Orders         *handlers.OrdersHandler
	Rules          *handlers.RulesHandler
	Conversations  *handlers.ConversationsHandler
	MetricsHandler http.Handler

	AdminAuthSecret    string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitPerSecond > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}

	// Public endpoints
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Tenant-scoped API
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(requireAccountID)

		if cfg.Process != nil {
			v1.Post("/conversations/process", cfg.Process.Process)
		}
		if cfg.Conversations != nil {
			v1.Route("/conversations/{conversationID}", func(r chi.Router) {
				r.Get("/summary", cfg.Conversations.GetSummary)
				r.Get("/activations", cfg.Conversations.ListActivations)
			})
		}

		// Webhook requests carry their own HMAC signature on top of the
		// account header.
		if cfg.VendorWebhook != nil {
			v1.Post("/webhooks/vendor-response", cfg.VendorWebhook.VendorResponse)
		}

		if cfg.Orders != nil {
			v1.Route("/orders/{orderID}", func(r chi.Router) {
				r.Get("/", cfg.Orders.Get)
				r.Post("/status", cfg.Orders.UpdateStatus)
				r.Post("/artifacts", cfg.Orders.UploadArtifact)
				if cfg.AdminAuthSecret != "" {
					r.With(httpmiddleware.AdminJWT(cfg.AdminAuthSecret)).Post("/cancel", cfg.Orders.Cancel)
				} else {
					r.Post("/cancel", cfg.Orders.Cancel)
				}
			})
		}

		if cfg.Rules != nil {
			v1.Route("/trigger-rules", func(r chi.Router) {
				if cfg.AdminAuthSecret != "" {
					r.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
				}
				r.Get("/", cfg.Rules.List)
				r.Post("/", cfg.Rules.Create)
				r.Route("/{ruleID}", func(r chi.Router) {
					r.Get("/", cfg.Rules.Get)
					r.Put("/", cfg.Rules.Update)
					r.Delete("/", cfg.Rules.Delete)
				})
			})
		}
	})

	return r
}
