package purchase

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type records how a purchase was obtained.
type Type string

const (
	TypeRedeemCode    Type = "redeem_code"
	TypeCashPayment   Type = "cash_payment"
	TypeOnlinePayment Type = "online_payment"
	TypeInGamePoints  Type = "in_game_points"
)

// Status represents purchase status. Only completed purchases grant access;
// refunded and failed are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Scope is the content a purchase or code unlocks: a whole game, or one
// chapter of it when ChapterID is set.
type Scope struct {
	GameID    uuid.UUID  `json:"game_id"`
	ChapterID *uuid.UUID `json:"chapter_id,omitempty"`
}

// GameScope returns the scope of a whole game.
func GameScope(gameID uuid.UUID) Scope {
	return Scope{GameID: gameID}
}

// ChapterScope returns the scope of one chapter.
func ChapterScope(gameID, chapterID uuid.UUID) Scope {
	return Scope{GameID: gameID, ChapterID: &chapterID}
}

// IsChapter reports whether the scope is a single chapter.
func (s Scope) IsChapter() bool {
	return s.ChapterID != nil
}

// Purchase is one ledger entry of granted (or formerly granted) access.
type Purchase struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	ActorID             uuid.UUID       `db:"actor_id" json:"actor_id"`
	GameID              uuid.UUID       `db:"game_id" json:"game_id"`
	ChapterID           *uuid.UUID      `db:"chapter_id" json:"chapter_id,omitempty"`
	Type                Type            `db:"purchase_type" json:"purchase_type"`
	Amount              decimal.Decimal `db:"amount" json:"amount"`
	Currency            string          `db:"currency" json:"currency"`
	Status              Status          `db:"status" json:"status"`
	SourceCodeID        *uuid.UUID      `db:"source_code_id" json:"source_code_id,omitempty"`
	SourceTransactionID *uuid.UUID      `db:"source_transaction_id" json:"source_transaction_id,omitempty"`
	GrantedBy           *uuid.UUID      `db:"granted_by" json:"granted_by,omitempty"`
	Note                *string         `db:"note" json:"note,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	CompletedAt         *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	RefundedAt          *time.Time      `db:"refunded_at" json:"refunded_at,omitempty"`
}

// Scope returns the content this purchase unlocks.
func (p *Purchase) Scope() Scope {
	return Scope{GameID: p.GameID, ChapterID: p.ChapterID}
}

// Covers reports whether p grants access to s. A whole-game purchase covers
// every chapter of the game; a chapter purchase covers only that chapter.
func (p *Purchase) Covers(s Scope) bool {
	if p.Status != StatusCompleted || p.GameID != s.GameID {
		return false
	}
	if p.ChapterID == nil {
		return true
	}
	return s.ChapterID != nil && *p.ChapterID == *s.ChapterID
}

// NewCompleted builds a completed purchase for actorID over scope.
func NewCompleted(actorID uuid.UUID, scope Scope, typ Type, amount decimal.Decimal, currency string, now time.Time) *Purchase {
	return &Purchase{
		ID:          uuid.New(),
		ActorID:     actorID,
		GameID:      scope.GameID,
		ChapterID:   scope.ChapterID,
		Type:        typ,
		Amount:      amount,
		Currency:    currency,
		Status:      StatusCompleted,
		CreatedAt:   now,
		CompletedAt: &now,
	}
}
