package settings

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/pkg/apperror"
	"github.com/jcq/jcq-api/internal/pkg/secretbox"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type memoryRepo struct {
	mu   sync.Mutex
	rows map[string]Setting
}

func (m *memoryRepo) GetMany(_ context.Context, keys []string) (map[string]Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]Setting{}
	for _, k := range keys {
		if s, ok := m.rows[k]; ok {
			out[k] = s
		}
	}
	return out, nil
}

func (m *memoryRepo) Upsert(_ context.Context, settings []Setting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range settings {
		if s.Value == "" {
			delete(m.rows, s.Key)
			continue
		}
		m.rows[s.Key] = s
	}
	return nil
}

func newTestService(t *testing.T, defaults PaymentSettings) (*Service, *memoryRepo) {
	t.Helper()
	box, err := secretbox.New(testKey)
	if err != nil {
		t.Fatalf("secretbox: %v", err)
	}
	repo := &memoryRepo{rows: map[string]Setting{}}
	return NewService(repo, box, defaults, nil), repo
}

func str(s string) *string { return &s }

func TestPaymentSettingsFallBackToEnvironment(t *testing.T) {
	svc, _ := newTestService(t, PaymentSettings{GatewayAPIKey: "env-key", SuccessURL: "https://env/success"})

	got, err := svc.PaymentSettings(context.Background())
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if got.GatewayAPIKey != "env-key" || got.SuccessURL != "https://env/success" || got.WebhookSecret != "" {
		t.Fatalf("unexpected settings %+v", got)
	}
}

func TestUpdatePaymentEncryptsSecrets(t *testing.T) {
	svc, repo := newTestService(t, PaymentSettings{GatewayAPIKey: "env-key"})
	ctx := context.Background()

	view, err := svc.UpdatePayment(ctx, uuid.New(), &UpdatePaymentRequest{
		GatewayAPIKey: str("sk_live_abcdefgh1234"),
		WebhookSecret: str("whsec_zyxwvut9876"),
		CancelURL:     str("https://jcq.test/cancel"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	stored := repo.rows[KeyGatewayAPIKey]
	if !stored.IsSecret || strings.Contains(stored.Value, "sk_live") || len(strings.Split(stored.Value, ":")) != 3 {
		t.Fatalf("expected encrypted secret at rest, got %q", stored.Value)
	}
	if repo.rows[KeyCancelURL].Value != "https://jcq.test/cancel" || repo.rows[KeyCancelURL].IsSecret {
		t.Fatalf("plain settings are stored as-is")
	}

	if view.GatewayAPIKey.Value != "****1234" || view.GatewayAPIKey.Source != "database" || !view.GatewayAPIKey.Configured {
		t.Fatalf("expected masked secret, got %+v", view.GatewayAPIKey)
	}
	if view.WebhookSecret.Value != "****9876" {
		t.Fatalf("expected masked webhook secret, got %+v", view.WebhookSecret)
	}
	if view.CancelURL.Value != "https://jcq.test/cancel" {
		t.Fatalf("plain values are shown, got %+v", view.CancelURL)
	}
	if view.SuccessURL.Configured {
		t.Fatalf("success url was never set")
	}

	got, err := svc.PaymentSettings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if got.GatewayAPIKey != "sk_live_abcdefgh1234" || got.WebhookSecret != "whsec_zyxwvut9876" {
		t.Fatalf("expected decrypted secrets, got %+v", got)
	}
}

func TestUpdatePaymentClearRestoresDefault(t *testing.T) {
	svc, _ := newTestService(t, PaymentSettings{GatewayAPIKey: "env-key-000000"})
	ctx := context.Background()

	if _, err := svc.UpdatePayment(ctx, uuid.New(), &UpdatePaymentRequest{GatewayAPIKey: str("db-key-111111")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	view, err := svc.UpdatePayment(ctx, uuid.New(), &UpdatePaymentRequest{GatewayAPIKey: str("")})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if view.GatewayAPIKey.Source != "environment" || view.GatewayAPIKey.Value != "****0000" {
		t.Fatalf("expected environment fallback, got %+v", view.GatewayAPIKey)
	}
}

func TestTamperedSecretIsIntegrityError(t *testing.T) {
	svc, repo := newTestService(t, PaymentSettings{GatewayAPIKey: "env-key"})
	ctx := context.Background()
	if _, err := svc.UpdatePayment(ctx, uuid.New(), &UpdatePaymentRequest{GatewayAPIKey: str("sk_live_abcdefgh1234")}); err != nil {
		t.Fatalf("update: %v", err)
	}

	s := repo.rows[KeyGatewayAPIKey]
	parts := strings.Split(s.Value, ":")
	flipped := []byte(parts[2])
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	parts[2] = string(flipped)
	s.Value = strings.Join(parts, ":")
	repo.rows[KeyGatewayAPIKey] = s

	_, err := svc.PaymentSettings(ctx)
	if !apperror.IsKind(err, apperror.KindIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestMask(t *testing.T) {
	if mask("short") != "****" {
		t.Fatalf("short secrets are fully masked")
	}
	if mask("0123456789") != "****6789" {
		t.Fatalf("unexpected mask %s", mask("0123456789"))
	}
}
