// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/stigerapp/go-rental-backend/internal/config"
	"github.com/stigerapp/go-rental-backend/internal/http/handlers"
	"github.com/stigerapp/go-rental-backend/internal/http/middleware"
	"github.com/stigerapp/go-rental-backend/internal/repo"
	"github.com/stigerapp/go-rental-backend/internal/services"
)

// Gateways bundles the external-system clients the HTTP layer injects into
// services. All three are interfaces so tests can substitute fakes.
type Gateways struct {
	Payments services.PaymentGateway
	Hardware services.HardwareGateway
	Notifier services.Notifier
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, inbound
// webhooks, and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Structured logging
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//     (webhooks mount here: external callers carry no idempotency keys and
//     must not compete with storefront clients for rate-limit tokens)
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS, gzip, and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, gw Gateways, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging. Signature and credential headers never reach
	// the logs.
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Dependency injection: services ← repo/db/gateways
	rentalSvc := &services.RentalService{
		DB:             db,
		Payments:       gw.Payments,
		Hardware:       gw.Hardware,
		Notifier:       gw.Notifier,
		PublicID:       cfg.CloudPayments.PublicID,
		AppURL:         cfg.AppURL,
		Currency:       cfg.Currency,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}
	cardSvc := &services.CardService{DB: db, Payments: gw.Payments}
	authSvc := &services.AuthService{DB: db, Notifier: gw.Notifier}
	locSvc := &services.LocationService{DB: db, Hardware: gw.Hardware}
	h := handlers.New(rentalSvc, cardSvc, authSvc, locSvc, gw.Hardware, handlers.WebhookSecrets{
		CloudPayments: cfg.CloudPayments.Secret,
		Bajie:         cfg.Bajie.WebhookSecret,
	})

	// Inbound webhooks, registered before idempotency and rate limiting.
	wh := r.Group("/webhooks")
	{
		wh.POST("/cloudpayments", h.CloudPaymentsWebhook)
		wh.GET("/cloudpayments", h.CloudPaymentsWebhook)
		wh.HEAD("/cloudpayments", h.CloudPaymentsWebhook)
		wh.POST("/bajie", h.BajieWebhook)
		wh.POST("/telegram", h.TelegramWebhook)
	}

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					hd := c.Writer.Header()
					hd.Set("Access-Control-Allow-Origin", origin)
					hd.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Response compression for the storefront endpoints
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health. The order-status breakdown doubles as the operator's
	// reconciliation snapshot; it is best-effort and never fails the probe.
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if counts, err := repo.CountOrdersByStatus(c.Request.Context(), db); err == nil {
			body["orders"] = counts
		}
		c.JSON(http.StatusOK, body)
	})

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Rentals
		api.POST("/rentals", h.CreateRental)
		api.GET("/rentals", h.ListRentals)
		api.GET("/rentals/:id", h.GetRental)
		api.POST("/rentals/:id/confirm", h.ConfirmRental)
		api.GET("/tariffs", h.ListTariffs)

		// Map and cabinets
		api.GET("/locations", h.ListLocations)
		api.GET("/devices", h.GetDevice)

		// Saved cards
		api.POST("/cards/list", h.ListCards)
		api.POST("/cards/unbind", h.UnbindCard)

		// Telegram sign-in
		api.POST("/auth/telegram/send-code", h.SendCode)
		api.POST("/auth/telegram/verify-code", h.VerifyCode)
		api.POST("/auth/telegram/welcome", h.Welcome)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
