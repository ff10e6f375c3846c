package purchase

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GrantRequest is the admin cash-grant payload.
type GrantRequest struct {
	ActorID   uuid.UUID       `json:"actor_id" validate:"required"`
	GameID    uuid.UUID       `json:"game_id" validate:"required"`
	ChapterID *uuid.UUID      `json:"chapter_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency" validate:"omitempty,currency"`
	Note      *string         `json:"note,omitempty" validate:"omitempty,max=500"`
}

// HistoryResponse is one page of a player's purchases.
type HistoryResponse struct {
	Items []Purchase `json:"items"`
	Total int        `json:"total"`
}
