// Package purchasetest provides an in-memory purchase ledger for tests of
// packages that grant or read purchases.
package purchasetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/domain/purchase"
)

// Repository implements purchase.Repository over a slice.
type Repository struct {
	mu        sync.Mutex
	purchases []*purchase.Purchase
}

var _ purchase.Repository = (*Repository)(nil)

// NewRepository creates an empty ledger.
func NewRepository() *Repository {
	return &Repository{}
}

func (m *Repository) GrantExclusive(_ context.Context, p *purchase.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.coveredLocked(p.ActorID, p.Scope()) {
		return purchase.ErrAlreadyEntitled
	}
	cp := *p
	m.purchases = append(m.purchases, &cp)
	return nil
}

func (m *Repository) GetByID(_ context.Context, id uuid.UUID) (*purchase.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, purchase.ErrPurchaseNotFound
}

func (m *Repository) HasCompletedCovering(_ context.Context, actorID uuid.UUID, scope purchase.Scope) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coveredLocked(actorID, scope), nil
}

func (m *Repository) coveredLocked(actorID uuid.UUID, scope purchase.Scope) bool {
	for _, p := range m.purchases {
		if p.ActorID == actorID && p.Covers(scope) {
			return true
		}
	}
	return false
}

func (m *Repository) ListCompleted(_ context.Context, actorID, gameID uuid.UUID) ([]purchase.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]purchase.Purchase, 0)
	for _, p := range m.purchases {
		if p.ActorID == actorID && p.GameID == gameID && p.Status == purchase.StatusCompleted {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *Repository) ListByActor(_ context.Context, actorID uuid.UUID, limit, offset int) ([]purchase.Purchase, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]purchase.Purchase, 0)
	for _, p := range m.purchases {
		if p.ActorID == actorID {
			all = append(all, *p)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
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

func (m *Repository) Refund(_ context.Context, id uuid.UUID, now time.Time) (*purchase.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.ID != id {
			continue
		}
		if p.Status != purchase.StatusCompleted {
			return nil, purchase.ErrNotRefundable
		}
		p.Status = purchase.StatusRefunded
		p.RefundedAt = &now
		cp := *p
		return &cp, nil
	}
	return nil, purchase.ErrPurchaseNotFound
}

// All returns a copy of every stored purchase.
func (m *Repository) All() []purchase.Purchase {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]purchase.Purchase, 0, len(m.purchases))
	for _, p := range m.purchases {
		out = append(out, *p)
	}
	return out
}
