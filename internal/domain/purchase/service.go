package purchase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/domain/admin"
	"github.com/jcq/jcq-api/internal/domain/catalog"
	"github.com/jcq/jcq-api/internal/pkg/logger"
)

// Service manages the purchase ledger.
type Service struct {
	repo     Repository
	catalog  catalog.Repository
	notifier Notifier
	auditor  admin.Auditor
	now      func() time.Time
}

// NewService creates purchase service
func NewService(repo Repository, catalogRepo catalog.Repository, notifier Notifier, auditor admin.Auditor) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if auditor == nil {
		auditor = admin.NopAuditor{}
	}
	return &Service{repo: repo, catalog: catalogRepo, notifier: notifier, auditor: auditor, now: time.Now}
}

// HasCompletedCovering reports whether actorID holds a completed purchase
// covering scope.
func (s *Service) HasCompletedCovering(ctx context.Context, actorID uuid.UUID, scope Scope) (bool, error) {
	return s.repo.HasCompletedCovering(ctx, actorID, scope)
}

// ListCompleted returns the completed purchases of actorID for gameID.
func (s *Service) ListCompleted(ctx context.Context, actorID, gameID uuid.UUID) ([]Purchase, error) {
	return s.repo.ListCompleted(ctx, actorID, gameID)
}

// Grant records an offline (cash) payment as a completed purchase.
func (s *Service) Grant(ctx context.Context, adminID uuid.UUID, req *GrantRequest) (*Purchase, error) {
	if req.Amount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	game, err := s.catalog.GetGame(ctx, req.GameID)
	if err != nil {
		return nil, err
	}
	if game.IsFree() {
		return nil, ErrFreeContent
	}

	scope := GameScope(game.ID)
	if req.ChapterID != nil {
		chapter, open, err := catalog.SellableChapter(ctx, s.catalog, game, *req.ChapterID)
		if err != nil {
			return nil, err
		}
		if open {
			return nil, ErrFreeContent
		}
		scope = ChapterScope(game.ID, chapter.ID)
	}

	currency := req.Currency
	if currency == "" {
		currency = game.Currency
	}

	p := NewCompleted(req.ActorID, scope, TypeCashPayment, req.Amount, currency, s.now().UTC())
	p.GrantedBy = &adminID
	p.Note = req.Note

	if err := s.repo.GrantExclusive(ctx, p); err != nil {
		return nil, err
	}

	logger.LogInfo(ctx, "Cash purchase granted",
		"purchase_id", p.ID, "actor_id", p.ActorID, "game_id", p.GameID,
		"chapter_id", p.ChapterID, "admin_id", adminID, "amount", p.Amount.String())
	s.auditor.Record(ctx, adminID, admin.ActionPurchaseGrant, admin.EntityPurchase, p.ID, nil, p)
	s.notifier.EntitlementGranted(ctx, p)
	return p, nil
}

// Refund revokes a completed purchase. Amount and type stay untouched.
func (s *Service) Refund(ctx context.Context, adminID, id uuid.UUID) (*Purchase, error) {
	p, err := s.repo.Refund(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	logger.LogInfo(ctx, "Purchase refunded", "purchase_id", p.ID, "actor_id", p.ActorID, "admin_id", adminID)
	s.auditor.Record(ctx, adminID, admin.ActionPurchaseRefund, admin.EntityPurchase, p.ID,
		map[string]Status{"status": StatusCompleted}, map[string]Status{"status": StatusRefunded})
	return p, nil
}

// History returns a page of actorID's purchases, newest first.
func (s *Service) History(ctx context.Context, actorID uuid.UUID, limit, offset int) (*HistoryResponse, error) {
	items, total, err := s.repo.ListByActor(ctx, actorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &HistoryResponse{Items: items, Total: total}, nil
}
