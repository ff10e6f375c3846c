package redeem

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/domain/purchase"
	"github.com/jcq/jcq-api/internal/domain/purchase/purchasetest"
)

// memoryRepo mirrors the Postgres repository: Consume runs under one lock
// the way the SQL version runs in one transaction.
type memoryRepo struct {
	mu        sync.Mutex
	codes     map[uuid.UUID]*RedeemCode
	uses      []CodeUse
	purchases *purchasetest.Repository

	// rejectBatch makes CreateBatch skip this many codes as if they
	// already existed.
	rejectBatch int
}

func newMemoryRepo(purchases *purchasetest.Repository) *memoryRepo {
	return &memoryRepo{codes: make(map[uuid.UUID]*RedeemCode), purchases: purchases}
}

func (m *memoryRepo) codeTakenLocked(code string) bool {
	for _, c := range m.codes {
		if c.Code == code {
			return true
		}
	}
	return false
}

func (m *memoryRepo) Create(_ context.Context, code *RedeemCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codeTakenLocked(code.Code) {
		return ErrCodeTaken
	}
	cp := *code
	m.codes[code.ID] = &cp
	return nil
}

func (m *memoryRepo) CreateBatch(_ context.Context, codes []*RedeemCode) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := make(map[string]bool)
	for _, c := range codes {
		if m.rejectBatch > 0 {
			m.rejectBatch--
			continue
		}
		if m.codeTakenLocked(c.Code) {
			continue
		}
		cp := *c
		m.codes[c.ID] = &cp
		inserted[c.Code] = true
	}
	return inserted, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*RedeemCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok {
		return nil, ErrCodeNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memoryRepo) GetByCode(_ context.Context, code string) (*RedeemCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrCodeNotFound
}

func (m *memoryRepo) ListByGame(_ context.Context, gameID uuid.UUID, limit, offset int) ([]RedeemCode, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]RedeemCode, 0)
	for _, c := range m.codes {
		if c.GameID == gameID {
			all = append(all, *c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memoryRepo) ListUses(_ context.Context, codeID uuid.UUID) ([]CodeUse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CodeUse, 0)
	for _, u := range m.uses {
		if u.CodeID == codeID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memoryRepo) HasUse(_ context.Context, codeID, actorID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasUseLocked(codeID, actorID), nil
}

func (m *memoryRepo) hasUseLocked(codeID, actorID uuid.UUID) bool {
	for _, u := range m.uses {
		if u.CodeID == codeID && u.ActorID == actorID {
			return true
		}
	}
	return false
}

func (m *memoryRepo) Update(_ context.Context, code *RedeemCode, seenUsedCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code.ID]
	if !ok {
		return ErrCodeNotFound
	}
	if c.UsedCount != seenUsedCount {
		return ErrStaleUpdate
	}
	c.Status = code.Status
	c.Label = code.Label
	c.ExpiresAt = code.ExpiresAt
	c.MaxUses = code.MaxUses
	c.UpdatedAt = code.UpdatedAt
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[id]; !ok {
		return ErrCodeNotFound
	}
	for _, u := range m.uses {
		if u.CodeID == id {
			return ErrCodeInUse
		}
	}
	delete(m.codes, id)
	return nil
}

func (m *memoryRepo) Consume(ctx context.Context, code *RedeemCode, actorID uuid.UUID, p *purchase.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.codes[code.ID]
	if !ok {
		return ErrCodeNotFound
	}
	if m.hasUseLocked(code.ID, actorID) {
		return ErrAlreadyRedeemed
	}
	if c.Status != StatusActive || c.UsedCount >= c.MaxUses || c.Expired(p.CreatedAt) {
		return ErrCodeExhausted
	}
	if err := m.purchases.GrantExclusive(ctx, p); err != nil {
		return err
	}

	c.UsedCount++
	if c.UsedCount >= c.MaxUses {
		c.Status = StatusUsed
	}
	pid := p.ID
	m.uses = append(m.uses, CodeUse{ID: uuid.New(), CodeID: c.ID, ActorID: actorID, PurchaseID: &pid, UsedAt: p.CreatedAt})
	code.UsedCount = c.UsedCount
	code.Status = c.Status
	return nil
}
