package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jcq/jcq-api/internal/config"
	"github.com/jcq/jcq-api/internal/domain/admin"
	"github.com/jcq/jcq-api/internal/domain/catalog/catalogtest"
	"github.com/jcq/jcq-api/internal/domain/entitlement"
	"github.com/jcq/jcq-api/internal/domain/notify"
	"github.com/jcq/jcq-api/internal/domain/payment"
	"github.com/jcq/jcq-api/internal/domain/purchase"
	"github.com/jcq/jcq-api/internal/domain/purchase/purchasetest"
	"github.com/jcq/jcq-api/internal/domain/redeem"
	"github.com/jcq/jcq-api/internal/domain/settings"
	"github.com/jcq/jcq-api/internal/middleware"
	"github.com/jcq/jcq-api/internal/pkg/jwt"
)

func testRouter(t *testing.T) (http.Handler, *jwt.Service) {
	t.Helper()
	jwtService := jwt.NewService("test-secret", time.Hour)
	catalogRepo := catalogtest.NewRepository()
	purchaseService := purchase.NewService(purchasetest.NewRepository(), catalogRepo, nil, nil)

	hub := notify.NewHub(nil)
	t.Cleanup(hub.Shutdown)

	h := routeHandlers{
		auth:        middleware.Auth(jwtService),
		admin:       admin.NewHandler(nil, admin.NewJWTService("admin-secret", time.Hour)),
		redeem:      redeem.NewHandler(nil),
		entitlement: entitlement.NewHandler(entitlement.NewService(catalogRepo, purchaseService)),
		purchase:    purchase.NewHandler(purchaseService),
		payment:     payment.NewHandler(nil, time.Second),
		settings:    settings.NewHandler(nil),
		notify:      notify.NewHandler(hub, nil),
	}
	return newRouter(&config.Config{Env: "test"}, h), jwtService
}

func TestHealth(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := testRouter(t)
	gameID := uuid.NewString()

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/redeem"},
		{http.MethodGet, "/api/v1/games/" + gameID + "/entitlement"},
		{http.MethodGet, "/api/v1/purchases"},
		{http.MethodPost, "/api/v1/payments/checkout"},
		{http.MethodGet, "/api/v1/payments/transactions/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/ws"},
		{http.MethodGet, "/api/admin/auth/me"},
		{http.MethodGet, "/api/admin/audit/logs"},
		{http.MethodPost, "/api/admin/codes"},
		{http.MethodPost, "/api/admin/codes/batch"},
		{http.MethodGet, "/api/admin/games/" + gameID + "/codes"},
		{http.MethodGet, "/api/admin/purchases?actor_id=" + uuid.NewString()},
		{http.MethodPost, "/api/admin/purchases/grant"},
		{http.MethodPost, "/api/admin/purchases/" + uuid.NewString() + "/refund"},
		{http.MethodGet, "/api/admin/settings/payment"},
		{http.MethodPatch, "/api/admin/settings/payment"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestPlayerTokenReachesHandler(t *testing.T) {
	router, jwtService := testRouter(t)
	token, err := jwtService.GenerateAccessToken(uuid.New(), "tenant-1")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/"+uuid.NewString()+"/entitlement", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown game, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRedisKeyNamespaces(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cfg := &config.Config{RedeemRateLimit: 10, RedeemRateWindow: time.Minute, WebhookEventTTL: time.Hour}
	ctx := context.Background()

	limiter, err := newLimiter(cfg, client)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	if _, err := limiter.Allow(ctx, "redeem:actor-1"); err != nil {
		t.Fatalf("allow: %v", err)
	}

	events, err := newEventCache(cfg, client)
	if err != nil {
		t.Fatalf("event cache: %v", err)
	}
	if _, err := events.MarkIfAbsent(ctx, "evt_1"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	for _, key := range []string{"jcq:redeem_attempts:redeem:actor-1", "jcq:webhook_event:evt_1"} {
		if !m.Exists(key) {
			t.Errorf("expected key %q, have %v", key, m.Keys())
		}
	}
}
