package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingType describes how a game is sold.
type PricingType string

const (
	PricingFree       PricingType = "free"
	PricingOneTime    PricingType = "one_time"
	PricingPerChapter PricingType = "per_chapter"
)

// UnlockType describes how a single chapter is unlocked.
type UnlockType string

const (
	UnlockFree     UnlockType = "free"
	UnlockPurchase UnlockType = "purchase"
)

// Game is the sellable unit owned by a tenant (creator).
type Game struct {
	ID               uuid.UUID           `db:"id" json:"id"`
	TenantID         uuid.UUID           `db:"tenant_id" json:"tenant_id"`
	Title            string              `db:"title" json:"title"`
	PricingType      PricingType         `db:"pricing_type" json:"pricing_type"`
	Price            decimal.NullDecimal `db:"price" json:"price,omitempty"`
	Currency         string              `db:"currency" json:"currency"`
	GatewayProductID *string             `db:"gateway_product_id" json:"-"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
}

// Chapter is an ordered part of a game.
type Chapter struct {
	ID               uuid.UUID           `db:"id" json:"id"`
	GameID           uuid.UUID           `db:"game_id" json:"game_id"`
	Title            string              `db:"title" json:"title"`
	Order            int                 `db:"sort_order" json:"order"`
	UnlockType       UnlockType          `db:"unlock_type" json:"unlock_type"`
	Price            decimal.NullDecimal `db:"price" json:"price,omitempty"`
	GatewayProductID *string             `db:"gateway_product_id" json:"-"`
}

// IsFree reports whether the game needs no purchase at all.
func (g *Game) IsFree() bool {
	return g.PricingType == PricingFree
}
