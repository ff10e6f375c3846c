package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/domain/purchase"
	"github.com/jcq/jcq-api/internal/domain/purchase/purchasetest"
	"github.com/jcq/jcq-api/internal/domain/settings"
	"github.com/jcq/jcq-api/internal/pkg/paygate"
)

type memoryRepo struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]*Transaction
	ledger       *purchasetest.Repository
	failComplete error
}

func newMemoryRepo(ledger *purchasetest.Repository) *memoryRepo {
	return &memoryRepo{transactions: make(map[uuid.UUID]*Transaction), ledger: ledger}
}

func (m *memoryRepo) Create(_ context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.transactions[t.ID] = &cp
	return nil
}

func (m *memoryRepo) SetCheckoutSession(_ context.Context, id uuid.UUID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return ErrTransactionNotFound
	}
	t.CheckoutSessionID = &sessionID
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memoryRepo) GetBySessionID(_ context.Context, sessionID string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transactions {
		if t.CheckoutSessionID != nil && *t.CheckoutSessionID == sessionID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTransactionNotFound
}

func (m *memoryRepo) Complete(ctx context.Context, id uuid.UUID, s Settlement) (*purchase.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failComplete != nil {
		return nil, m.failComplete
	}
	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	if t.IsCompleted() {
		return nil, nil
	}
	p := t.settlement(s.At)
	if err := m.ledger.GrantExclusive(ctx, p); err != nil {
		return nil, err
	}
	t.Status = StatusCompleted
	if s.PaymentRef != "" {
		ref := s.PaymentRef
		t.GatewayPaymentID = &ref
	}
	t.RawGatewayPayload = append(JSONRawMessage(nil), s.Payload...)
	t.CompletedAt = &s.At
	return p, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []paygate.CheckoutRequest
	apiKeys  []string
	err      error
}

func (g *fakeGateway) CreateCheckout(_ context.Context, apiKey string, req paygate.CheckoutRequest) (*paygate.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	g.apiKeys = append(g.apiKeys, apiKey)
	if g.err != nil {
		return nil, g.err
	}
	id := "cs_" + req.Metadata["transactionId"]
	return &paygate.CheckoutSession{ID: id, URL: "https://pay.example/" + id}, nil
}

type fakeCredentials struct {
	settings settings.PaymentSettings
	err      error
}

func (c *fakeCredentials) PaymentSettings(context.Context) (*settings.PaymentSettings, error) {
	if c.err != nil {
		return nil, c.err
	}
	cp := c.settings
	return &cp, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	granted []*purchase.Purchase
}

func (n *recordingNotifier) EntitlementGranted(_ context.Context, p *purchase.Purchase) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.granted = append(n.granted, p)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.granted)
}
