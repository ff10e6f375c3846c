package payment

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcq/jcq-api/internal/domain/purchase"
)

// Status represents transaction status. A transaction only moves forward.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// JSONRawMessage handles NULL json fields from DB
type JSONRawMessage []byte

func (j *JSONRawMessage) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("unsupported type: %T", src)
	}
	return nil
}

func (j JSONRawMessage) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j JSONRawMessage) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// Transaction is one online payment attempt for a game or chapter.
type Transaction struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	ActorID           uuid.UUID       `db:"actor_id" json:"actor_id"`
	GameID            uuid.UUID       `db:"game_id" json:"game_id"`
	ChapterID         *uuid.UUID      `db:"chapter_id" json:"chapter_id,omitempty"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Currency          string          `db:"currency" json:"currency"`
	Status            Status          `db:"status" json:"status"`
	CheckoutSessionID *string         `db:"gateway_checkout_session_id" json:"-"`
	GatewayPaymentID  *string         `db:"gateway_payment_id" json:"-"`
	RawGatewayPayload JSONRawMessage  `db:"raw_gateway_payload" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt       *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// Scope returns the content the transaction pays for.
func (t *Transaction) Scope() purchase.Scope {
	return purchase.Scope{GameID: t.GameID, ChapterID: t.ChapterID}
}

// IsCompleted reports whether the transaction has been settled.
func (t *Transaction) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// settlement builds the purchase a completed transaction grants.
func (t *Transaction) settlement(now time.Time) *purchase.Purchase {
	p := purchase.NewCompleted(t.ActorID, t.Scope(), purchase.TypeOnlinePayment, t.Amount, t.Currency, now)
	id := t.ID
	p.SourceTransactionID = &id
	return p
}
