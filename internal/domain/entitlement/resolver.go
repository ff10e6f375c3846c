// Package entitlement answers which parts of a game an actor may play.
// Results are computed from the purchase ledger on every call and never
// cached.
package entitlement

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcq/jcq-api/internal/domain/catalog"
	"github.com/jcq/jcq-api/internal/domain/purchase"
)

// Entitlement is an actor's access to one game.
type Entitlement struct {
	GameID      uuid.UUID           `json:"game_id"`
	HasAccess   bool                `json:"has_access"`
	PricingType catalog.PricingType `json:"pricing_type"`
	Price       *decimal.Decimal    `json:"price,omitempty"`
	Currency    string              `json:"currency,omitempty"`
	Chapters    []ChapterAccess     `json:"chapters,omitempty"`
}

// ChapterAccess is access to one chapter of a per-chapter game.
type ChapterAccess struct {
	ChapterID uuid.UUID        `json:"chapter_id"`
	Order     int              `json:"order"`
	HasAccess bool             `json:"has_access"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// Resolve computes access from the game, its chapters and the actor's
// completed purchases for that game.
func Resolve(game *catalog.Game, chapters []catalog.Chapter, purchases []purchase.Purchase) *Entitlement {
	ent := &Entitlement{GameID: game.ID, PricingType: game.PricingType}

	if game.IsFree() {
		ent.HasAccess = true
		return ent
	}

	gameScope := purchase.GameScope(game.ID)
	for i := range purchases {
		if purchases[i].ChapterID == nil && purchases[i].Covers(gameScope) {
			ent.HasAccess = true
			return ent
		}
	}

	if game.PricingType == catalog.PricingPerChapter {
		ent.Chapters = resolveChapters(game.ID, chapters, purchases)
		ent.Currency = game.Currency
		return ent
	}

	if game.Price.Valid {
		price := game.Price.Decimal
		ent.Price = &price
	}
	ent.Currency = game.Currency
	return ent
}

func resolveChapters(gameID uuid.UUID, chapters []catalog.Chapter, purchases []purchase.Purchase) []ChapterAccess {
	first := catalog.FirstChapter(chapters)

	out := make([]ChapterAccess, 0, len(chapters))
	for _, c := range chapters {
		access := ChapterAccess{ChapterID: c.ID, Order: c.Order}
		if catalog.AlwaysOpen(&c, first) {
			access.HasAccess = true
		} else {
			scope := purchase.ChapterScope(gameID, c.ID)
			for i := range purchases {
				if purchases[i].Covers(scope) {
					access.HasAccess = true
					break
				}
			}
		}
		if !access.HasAccess && c.Price.Valid {
			price := c.Price.Decimal
			access.Price = &price
		}
		out = append(out, access)
	}
	return out
}
