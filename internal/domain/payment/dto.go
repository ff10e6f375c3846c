package payment

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutRequest starts an online purchase of a game or one chapter.
type CheckoutRequest struct {
	GameID    uuid.UUID  `json:"game_id" validate:"required"`
	ChapterID *uuid.UUID `json:"chapter_id,omitempty"`
}

// CheckoutResponse points the player at the hosted checkout page.
type CheckoutResponse struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	CheckoutURL   string          `json:"checkout_url"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// StatusResponse is what the checkout return page polls. Status may read
// completed a moment before EntitlementGranted does on a replica.
type StatusResponse struct {
	TransactionID      uuid.UUID       `json:"transaction_id"`
	Status             Status          `json:"status"`
	GameID             uuid.UUID       `json:"game_id"`
	ChapterID          *uuid.UUID      `json:"chapter_id,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	EntitlementGranted bool            `json:"entitlement_granted"`
}
