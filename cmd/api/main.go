package main

import (
	"context"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jcq/jcq-api/internal/config"
	"github.com/jcq/jcq-api/internal/domain/admin"
	"github.com/jcq/jcq-api/internal/domain/catalog"
	"github.com/jcq/jcq-api/internal/domain/entitlement"
	"github.com/jcq/jcq-api/internal/domain/notify"
	"github.com/jcq/jcq-api/internal/domain/payment"
	"github.com/jcq/jcq-api/internal/domain/purchase"
	"github.com/jcq/jcq-api/internal/domain/redeem"
	"github.com/jcq/jcq-api/internal/domain/settings"
	"github.com/jcq/jcq-api/internal/middleware"
	"github.com/jcq/jcq-api/internal/pkg/database"
	"github.com/jcq/jcq-api/internal/pkg/eventcache"
	"github.com/jcq/jcq-api/internal/pkg/jwt"
	"github.com/jcq/jcq-api/internal/pkg/logger"
	"github.com/jcq/jcq-api/internal/pkg/paygate"
	"github.com/jcq/jcq-api/internal/pkg/ratelimit"
	"github.com/jcq/jcq-api/internal/pkg/redeemcode"
	pkgresponse "github.com/jcq/jcq-api/internal/pkg/response"
	"github.com/jcq/jcq-api/internal/pkg/secretbox"
	"github.com/jcq/jcq-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting JCQ API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	box, err := secretbox.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize secret box")
	}

	generator, err := redeemcode.NewGenerator(cfg.CodePrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid redeem code prefix")
	}

	limiter, err := newLimiter(cfg, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize rate limiter")
	}

	events, err := newEventCache(cfg, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize webhook event cache")
	}

	var archive storage.Storage
	if cfg.WebhookArchiveEnabled {
		archive, err = storage.New(storage.Config{
			Backend:     cfg.StorageBackend,
			LocalPath:   cfg.StorageLocalPath,
			S3Endpoint:  cfg.S3Endpoint,
			S3Region:    cfg.S3Region,
			S3Bucket:    cfg.S3Bucket,
			S3AccessKey: cfg.S3AccessKey,
			S3SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize webhook archive storage")
		}
		log.Info().Str("backend", cfg.StorageBackend).Msg("Webhook archive enabled")
	}

	gateway := paygate.NewClient(paygate.Config{
		BaseURL: cfg.GatewayBaseURL,
		Timeout: cfg.GatewayTimeout,
	})

	hub := notify.NewHub(redisClient)
	go hub.Run()

	// Repositories
	adminRepo := admin.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	purchaseRepo := purchase.NewRepository(db)
	redeemRepo := redeem.NewRepository(db)
	paymentRepo := payment.NewRepository(db)
	settingsRepo := settings.NewRepository(db)

	// Services
	adminService := admin.NewService(adminRepo)
	adminJWTService := admin.NewJWTService(cfg.AdminJWTSecret, cfg.AdminJWTTTL)
	jwtService := jwt.NewService(cfg.JWTSecret, time.Hour)

	settingsService := settings.NewService(settingsRepo, box, settings.PaymentSettings{
		GatewayAPIKey: cfg.GatewayAPIKey,
		WebhookSecret: cfg.GatewayWebhookSecret,
		SuccessURL:    cfg.CheckoutSuccessURL,
		CancelURL:     cfg.CheckoutCancelURL,
	}, adminService)
	purchaseService := purchase.NewService(purchaseRepo, catalogRepo, hub, adminService)
	entitlementService := entitlement.NewService(catalogRepo, purchaseService)
	redeemService := redeem.NewService(redeem.Deps{
		Repo:      redeemRepo,
		Catalog:   catalogRepo,
		Purchases: purchaseService,
		Generator: generator,
		Limiter:   limiter,
		Notifier:  hub,
		Auditor:   adminService,
	})
	paymentService := payment.NewService(payment.Deps{
		Repo:        paymentRepo,
		Catalog:     catalogRepo,
		Purchases:   purchaseService,
		Gateway:     gateway,
		Credentials: settingsService,
		Events:      events,
		Archive:     archive,
		Notifier:    hub,
	})

	handlers := routeHandlers{
		auth:        middleware.Auth(jwtService),
		admin:       admin.NewHandler(adminService, adminJWTService),
		redeem:      redeem.NewHandler(redeemService),
		entitlement: entitlement.NewHandler(entitlementService),
		purchase:    purchase.NewHandler(purchaseService),
		payment:     payment.NewHandler(paymentService, cfg.WebhookTimeout),
		settings:    settings.NewHandler(settingsService),
		notify:      notify.NewHandler(hub, cfg.AllowedOrigins),
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, handlers),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Shutdown()
	paymentService.Drain()

	log.Info().Msg("Server exited properly")
}

type routeHandlers struct {
	auth        func(http.Handler) http.Handler
	admin       *admin.Handler
	redeem      *redeem.Handler
	entitlement *entitlement.Handler
	purchase    *purchase.Handler
	payment     *payment.Handler
	settings    *settings.Handler
	notify      *notify.Handler
}

func newRouter(cfg *config.Config, h routeHandlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{"status": "ok"})
	})
	if cfg.IsDevelopment() {
		r.Handle("/debug/vars", expvar.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/redeem", h.redeem.Routes(h.auth))
		r.Mount("/games", h.entitlement.Routes(h.auth))
		r.Mount("/purchases", h.purchase.Routes(h.auth))
		r.Mount("/payments", h.payment.Routes(h.auth))
		r.Mount("/ws", h.notify.Routes(h.auth))
	})

	r.Mount("/webhooks", h.payment.WebhookRoutes())

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		adminAuth := h.admin.Middleware()

		r.Mount("/", h.admin.Routes())
		r.Mount("/codes", h.redeem.AdminRoutes(adminAuth))
		r.Mount("/games", h.redeem.GameRoutes(adminAuth))
		r.Mount("/purchases", h.purchase.AdminRoutes(adminAuth))
		r.Mount("/settings", h.settings.AdminRoutes(adminAuth))
	})

	return r
}

// Redis key namespaces. Both stores append ":" and their own key.
const (
	redeemAttemptsPrefix = "jcq:redeem_attempts"
	webhookEventPrefix   = "jcq:webhook_event"
)

// newLimiter shares redeem attempt counters across instances when Redis is
// configured.
func newLimiter(cfg *config.Config, client *redis.Client) (ratelimit.Limiter, error) {
	policy := ratelimit.Policy{Limit: cfg.RedeemRateLimit, Window: cfg.RedeemRateWindow}
	if client != nil {
		return ratelimit.NewRedisLimiter(client, redeemAttemptsPrefix, policy)
	}
	log.Warn().Msg("REDIS_URL not set, redeem rate limit is per instance")
	return ratelimit.NewMemoryLimiter(policy)
}

func newEventCache(cfg *config.Config, client *redis.Client) (eventcache.Cache, error) {
	if client != nil {
		return eventcache.NewRedisCache(client, webhookEventPrefix, cfg.WebhookEventTTL)
	}
	return eventcache.NewMemoryCache(cfg.WebhookEventCacheSize), nil
}
