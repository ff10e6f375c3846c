package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jcq/jcq-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const purchaseColumns = `id, actor_id, game_id, chapter_id, purchase_type, amount, currency, status,
	source_code_id, source_transaction_id, granted_by, note, created_at, completed_at, refunded_at`

// Repository is the purchase ledger.
type Repository interface {
	// GrantExclusive inserts p unless the actor already holds a completed
	// purchase covering p's scope.
	GrantExclusive(ctx context.Context, p *Purchase) error
	GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error)
	HasCompletedCovering(ctx context.Context, actorID uuid.UUID, scope Scope) (bool, error)
	ListCompleted(ctx context.Context, actorID, gameID uuid.UUID) ([]Purchase, error)
	ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]Purchase, int, error)
	Refund(ctx context.Context, id uuid.UUID, now time.Time) (*Purchase, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates purchase repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// InsertTx writes p inside an existing transaction. The caller commits.
func InsertTx(ctx context.Context, tx *sqlx.Tx, p *Purchase) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO purchases (`+purchaseColumns+`)
		VALUES (:id, :actor_id, :game_id, :chapter_id, :purchase_type, :amount, :currency, :status,
			:source_code_id, :source_transaction_id, :granted_by, :note, :created_at, :completed_at, :refunded_at)
	`, p)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// LockActorGameTx serializes grant transactions of one actor for one game
// until the surrounding transaction ends.
func LockActorGameTx(ctx context.Context, tx *sqlx.Tx, actorID, gameID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, actorID.String()+":"+gameID.String())
	if err != nil {
		return fmt.Errorf("lock actor game: %w", err)
	}
	return nil
}

// CoveredTx is HasCompletedCovering evaluated inside a transaction.
func CoveredTx(ctx context.Context, tx *sqlx.Tx, actorID uuid.UUID, scope Scope) (bool, error) {
	return hasCovering(ctx, tx, actorID, scope)
}

func hasCovering(ctx context.Context, q sqlx.QueryerContext, actorID uuid.UUID, scope Scope) (bool, error) {
	var covered bool
	// chapter_id = NULL never matches, so a game scope is covered only by
	// whole-game purchases.
	err := sqlx.GetContext(ctx, q, &covered, `
		SELECT EXISTS (
			SELECT 1 FROM purchases
			WHERE actor_id = $1 AND game_id = $2 AND status = 'completed'
			  AND (chapter_id IS NULL OR chapter_id = $3)
		)
	`, actorID, scope.GameID, scope.ChapterID)
	if err != nil {
		return false, fmt.Errorf("check covering purchase: %w", err)
	}
	return covered, nil
}

func (r *repository) GrantExclusive(ctx context.Context, p *Purchase) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := LockActorGameTx(ctx, tx, p.ActorID, p.GameID); err != nil {
			return err
		}
		covered, err := CoveredTx(ctx, tx, p.ActorID, p.Scope())
		if err != nil {
			return err
		}
		if covered {
			return ErrAlreadyEntitled
		}
		return InsertTx(ctx, tx, p)
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Purchase
	err := r.db.GetContext(ctx, &p, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return &p, nil
}

func (r *repository) HasCompletedCovering(ctx context.Context, actorID uuid.UUID, scope Scope) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return hasCovering(ctx, r.db, actorID, scope)
}

func (r *repository) ListCompleted(ctx context.Context, actorID, gameID uuid.UUID) ([]Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	purchases := make([]Purchase, 0)
	err := r.db.SelectContext(ctx, &purchases, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE actor_id = $1 AND game_id = $2 AND status = 'completed'
		ORDER BY created_at ASC
	`, actorID, gameID)
	if err != nil {
		return nil, fmt.Errorf("list completed purchases: %w", err)
	}
	return purchases, nil
}

func (r *repository) ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]Purchase, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM purchases WHERE actor_id = $1`, actorID); err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}

	purchases := make([]Purchase, 0)
	err := r.db.SelectContext(ctx, &purchases, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, actorID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list purchases: %w", err)
	}
	return purchases, total, nil
}

func (r *repository) Refund(ctx context.Context, id uuid.UUID, now time.Time) (*Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Purchase
	err := r.db.GetContext(ctx, &p, `
		UPDATE purchases
		SET status = 'refunded', refunded_at = $2
		WHERE id = $1 AND status = 'completed'
		RETURNING `+purchaseColumns, id, now)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("refund purchase: %w", err)
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrNotRefundable
}
