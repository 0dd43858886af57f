package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/discount-engine/internal/audit"
	"github.com/noah-isme/discount-engine/internal/auth"
	"github.com/noah-isme/discount-engine/internal/checkout"
	"github.com/noah-isme/discount-engine/internal/config"
	"github.com/noah-isme/discount-engine/internal/definition"
	"github.com/noah-isme/discount-engine/internal/health"
	"github.com/noah-isme/discount-engine/internal/obs"
	"github.com/noah-isme/discount-engine/internal/ratelimit"
	"github.com/noah-isme/discount-engine/internal/security"
)

// routerDeps is everything the HTTP surface needs once stores are connected.
type routerDeps struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Gatherer    prometheus.Gatherer
	HTTPMetrics *obs.HTTPMetrics
	Metrics     *obs.DiscountMetrics
	Health      *health.Handler
	Limiter     ratelimit.Allower
	Verifier    *auth.Verifier
	Checkout    *checkout.Handler
	Definitions *definition.Handler
	Audit       audit.HTTPRecorder
	AuditTrail  audit.Handler
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.Config
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{Enable: cfg.HTTP.SecurityHeadersEnabled}.Middleware)

	if cfg.Obs.EnablePrometheus && d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.HTTP.BodyLimitBytes}.Middleware)

		limited := ratelimit.Handler{
			Limiter: d.Limiter,
			Key:     ratelimit.ClientKey(cfg.TrustProxyHeaders),
			OnError: func(err error) {
				d.Logger.Warn().Err(err).Msg("rate limiter unavailable")
			},
			OnLimited: func(*http.Request) {
				d.Metrics.ObserveRateLimited("/api/v1/discounts/run")
			},
		}
		v.With(limited.Middleware).Post("/discounts/run", d.Checkout.Run)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(auth.Middleware{Verifier: d.Verifier}.RequireAdmin)
			admin.Get("/audit", d.AuditTrail.List)
			admin.Route("/discounts", func(defs chi.Router) {
				defs.Use(d.Audit.Middleware(audit.HTTPConfig{
					ResourceType:    "discount_definition",
					ResourceIDParam: "id",
					MutationsOnly:   true,
				}))
				d.Definitions.Routes(defs)
			})
		})
	})

	if !cfg.Obs.EnableTracing {
		return r
	}
	return otelhttp.NewHandler(r, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
