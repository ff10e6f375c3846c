package redeem

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/middleware"
)

func asActor(actorID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.ActorIDKey, actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestRedeemHandlerCountsMalformedAttempts(t *testing.T) {
	env := newTestEnv(t)
	code := env.createCode(t, CreateCodeRequest{})
	router := NewHandler(env.svc).Routes(asActor(uuid.New()))

	bodies := []string{`{}`, `{"code":""}`, fmt.Sprintf(`{"code":%q}`, strings.Repeat("A", 80))}
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(bodies[i%len(bodies)])))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d: expected 400, got %d: %s", i+1, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	body := fmt.Sprintf(`{"code":%q}`, code.Code)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after ten malformed attempts, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}
