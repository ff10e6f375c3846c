package entitlement

import (
	"context"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/domain/catalog"
	"github.com/jcq/jcq-api/internal/domain/purchase"
)

// PurchaseLister reads an actor's completed purchases.
type PurchaseLister interface {
	ListCompleted(ctx context.Context, actorID, gameID uuid.UUID) ([]purchase.Purchase, error)
}

// Service resolves entitlements.
type Service struct {
	catalog   catalog.Repository
	purchases PurchaseLister
}

// NewService creates entitlement service
func NewService(catalogRepo catalog.Repository, purchases PurchaseLister) *Service {
	return &Service{catalog: catalogRepo, purchases: purchases}
}

// Get returns actorID's access to gameID. The only domain error is
// catalog.ErrGameNotFound.
func (s *Service) Get(ctx context.Context, actorID, gameID uuid.UUID) (*Entitlement, error) {
	game, err := s.catalog.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.IsFree() {
		return Resolve(game, nil, nil), nil
	}

	purchases, err := s.purchases.ListCompleted(ctx, actorID, gameID)
	if err != nil {
		return nil, err
	}

	var chapters []catalog.Chapter
	if game.PricingType == catalog.PricingPerChapter {
		if chapters, err = s.catalog.ListChapters(ctx, gameID); err != nil {
			return nil, err
		}
	}
	return Resolve(game, chapters, purchases), nil
}
