package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jcq/jcq-api/internal/domain/purchase"
	"github.com/jcq/jcq-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const sessionUniqueConstraint = "transactions_gateway_checkout_session_id_key"

const transactionColumns = `id, actor_id, game_id, chapter_id, amount, currency, status,
	gateway_checkout_session_id, gateway_payment_id, raw_gateway_payload, created_at, updated_at, completed_at`

// Settlement is the gateway evidence recorded when a transaction completes.
type Settlement struct {
	PaymentRef string
	Payload    []byte
	At         time.Time
}

// Repository defines transaction data access
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetBySessionID(ctx context.Context, sessionID string) (*Transaction, error)
	// Complete marks a pending transaction completed and writes its
	// purchase as one unit. It returns a nil purchase when the transaction
	// was already completed.
	Complete(ctx context.Context, id uuid.UUID, s Settlement) (*purchase.Purchase, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates payment repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, t *Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (:id, :actor_id, :game_id, :chapter_id, :amount, :currency, :status,
			:gateway_checkout_session_id, :gateway_payment_id, :raw_gateway_payload, :created_at, :updated_at, :completed_at)
	`, t)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *repository) SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET gateway_checkout_session_id = $2, updated_at = NOW()
		WHERE id = $1
	`, id, sessionID)
	if database.IsUniqueViolation(err, sessionUniqueConstraint) {
		return fmt.Errorf("checkout session %s already bound to another transaction", sessionID)
	}
	if err != nil {
		return fmt.Errorf("set checkout session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (r *repository) GetBySessionID(ctx context.Context, sessionID string) (*Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE gateway_checkout_session_id = $1`, sessionID)
}

func (r *repository) getOne(ctx context.Context, query string, arg interface{}) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Transaction
	err := r.db.GetContext(ctx, &t, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

func (r *repository) Complete(ctx context.Context, id uuid.UUID, s Settlement) (*purchase.Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var granted *purchase.Purchase
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var t Transaction
		err := tx.GetContext(ctx, &t, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTransactionNotFound
		}
		if err != nil {
			return fmt.Errorf("get transaction: %w", err)
		}
		if t.IsCompleted() {
			return nil
		}

		// Same lock order as redemption and admin grants.
		if err := purchase.LockActorGameTx(ctx, tx, t.ActorID, t.GameID); err != nil {
			return err
		}

		var paymentRef *string
		if s.PaymentRef != "" {
			paymentRef = &s.PaymentRef
		}
		// The status guard is the durable idempotency check: a concurrent
		// delivery that got here first leaves no pending row to update.
		res, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET status = 'completed', gateway_payment_id = $2, raw_gateway_payload = $3,
				completed_at = $4, updated_at = $4
			WHERE id = $1 AND status = 'pending'
		`, id, paymentRef, JSONRawMessage(s.Payload), s.At)
		if err != nil {
			return fmt.Errorf("complete transaction: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		p := t.settlement(s.At)
		if err := purchase.InsertTx(ctx, tx, p); err != nil {
			return err
		}
		granted = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return granted, nil
}
