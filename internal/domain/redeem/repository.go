package redeem

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jcq/jcq-api/internal/domain/purchase"
	"github.com/jcq/jcq-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const (
	codeUniqueConstraint = "redeem_codes_code_key"
	useUniqueConstraint  = "code_uses_code_id_actor_id_key"
)

const codeColumns = `id, tenant_id, code, game_id, chapter_id, scope, max_uses, used_count, status,
	expires_at, label, created_by, created_at, updated_at`

// Repository stores redeem codes and their uses.
type Repository interface {
	Create(ctx context.Context, code *RedeemCode) error
	// CreateBatch inserts codes, skipping ones whose code string already
	// exists, and returns the code strings actually inserted.
	CreateBatch(ctx context.Context, codes []*RedeemCode) (map[string]bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*RedeemCode, error)
	GetByCode(ctx context.Context, code string) (*RedeemCode, error)
	ListByGame(ctx context.Context, gameID uuid.UUID, limit, offset int) ([]RedeemCode, int, error)
	ListUses(ctx context.Context, codeID uuid.UUID) ([]CodeUse, error)
	HasUse(ctx context.Context, codeID, actorID uuid.UUID) (bool, error)
	// Update writes an admin patch if used_count is still seenUsedCount.
	Update(ctx context.Context, code *RedeemCode, seenUsedCount int) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Consume records the use, increments used_count and writes the
	// purchase as one unit.
	Consume(ctx context.Context, code *RedeemCode, actorID uuid.UUID, p *purchase.Purchase) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates redeem repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, code *RedeemCode) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO redeem_codes (`+codeColumns+`)
		VALUES (:id, :tenant_id, :code, :game_id, :chapter_id, :scope, :max_uses, :used_count, :status,
			:expires_at, :label, :created_by, :created_at, :updated_at)
	`, code)
	if database.IsUniqueViolation(err, codeUniqueConstraint) {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert redeem code: %w", err)
	}
	return nil
}

func (r *repository) CreateBatch(ctx context.Context, codes []*RedeemCode) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	inserted := make(map[string]bool, len(codes))
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, `
			INSERT INTO redeem_codes (`+codeColumns+`)
			VALUES (:id, :tenant_id, :code, :game_id, :chapter_id, :scope, :max_uses, :used_count, :status,
				:expires_at, :label, :created_by, :created_at, :updated_at)
			ON CONFLICT (code) DO NOTHING
			RETURNING code
		`)
		if err != nil {
			return fmt.Errorf("prepare batch insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range codes {
			var got string
			err := stmt.GetContext(ctx, &got, c)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("insert batch code: %w", err)
			}
			inserted[got] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*RedeemCode, error) {
	return r.get(ctx, `SELECT `+codeColumns+` FROM redeem_codes WHERE id = $1`, id)
}

func (r *repository) GetByCode(ctx context.Context, code string) (*RedeemCode, error) {
	return r.get(ctx, `SELECT `+codeColumns+` FROM redeem_codes WHERE code = $1`, code)
}

func (r *repository) get(ctx context.Context, query string, arg interface{}) (*RedeemCode, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c RedeemCode
	err := r.db.GetContext(ctx, &c, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get redeem code: %w", err)
	}
	return &c, nil
}

func (r *repository) ListByGame(ctx context.Context, gameID uuid.UUID, limit, offset int) ([]RedeemCode, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM redeem_codes WHERE game_id = $1`, gameID); err != nil {
		return nil, 0, fmt.Errorf("count redeem codes: %w", err)
	}

	codes := make([]RedeemCode, 0)
	err := r.db.SelectContext(ctx, &codes, `
		SELECT `+codeColumns+`
		FROM redeem_codes
		WHERE game_id = $1
		ORDER BY created_at DESC, code
		LIMIT $2 OFFSET $3
	`, gameID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list redeem codes: %w", err)
	}
	return codes, total, nil
}

func (r *repository) ListUses(ctx context.Context, codeID uuid.UUID) ([]CodeUse, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	uses := make([]CodeUse, 0)
	err := r.db.SelectContext(ctx, &uses, `
		SELECT id, code_id, actor_id, purchase_id, used_at
		FROM code_uses
		WHERE code_id = $1
		ORDER BY used_at ASC
	`, codeID)
	if err != nil {
		return nil, fmt.Errorf("list code uses: %w", err)
	}
	return uses, nil
}

func (r *repository) HasUse(ctx context.Context, codeID, actorID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM code_uses WHERE code_id = $1 AND actor_id = $2)`, codeID, actorID)
	if err != nil {
		return false, fmt.Errorf("check code use: %w", err)
	}
	return exists, nil
}

func (r *repository) Update(ctx context.Context, code *RedeemCode, seenUsedCount int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE redeem_codes
		SET status = $3, label = $4, expires_at = $5, max_uses = $6, updated_at = $7
		WHERE id = $1 AND used_count = $2
	`, code.ID, seenUsedCount, code.Status, code.Label, code.ExpiresAt, code.MaxUses, code.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update redeem code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update redeem code: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, code.ID); err != nil {
			return err
		}
		return ErrStaleUpdate
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// A code with uses is referenced by code_uses; the NOT EXISTS keeps the
	// check and the delete in one statement.
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM redeem_codes c
		WHERE c.id = $1 AND NOT EXISTS (SELECT 1 FROM code_uses u WHERE u.code_id = c.id)
	`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrCodeInUse
		}
		return fmt.Errorf("delete redeem code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete redeem code: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrCodeInUse
	}
	return nil
}

func (r *repository) Consume(ctx context.Context, code *RedeemCode, actorID uuid.UUID, p *purchase.Purchase) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		// Lock first so every grant path takes locks in the same order.
		if err := purchase.LockActorGameTx(ctx, tx, actorID, code.GameID); err != nil {
			return err
		}
		covered, err := purchase.CoveredTx(ctx, tx, actorID, code.PurchaseScope())
		if err != nil {
			return err
		}
		if covered {
			return purchase.ErrAlreadyEntitled
		}

		if err := purchase.InsertTx(ctx, tx, p); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO code_uses (id, code_id, actor_id, purchase_id, used_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), code.ID, actorID, p.ID, p.CreatedAt)
		if database.IsUniqueViolation(err, useUniqueConstraint) {
			return ErrAlreadyRedeemed
		}
		if err != nil {
			return fmt.Errorf("insert code use: %w", err)
		}

		return tryConsume(ctx, tx, code, p.CreatedAt)
	})
}

// tryConsume is the usedCount < maxUses check and the increment as one
// conditional update.
func tryConsume(ctx context.Context, tx *sqlx.Tx, code *RedeemCode, now time.Time) error {
	var row struct {
		UsedCount int    `db:"used_count"`
		Status    Status `db:"status"`
	}
	err := tx.GetContext(ctx, &row, `
		UPDATE redeem_codes
		SET used_count = used_count + 1,
		    status = CASE WHEN used_count + 1 >= max_uses THEN 'used' ELSE status END,
		    updated_at = $2
		WHERE id = $1
		  AND status = 'active'
		  AND used_count < max_uses
		  AND (expires_at IS NULL OR expires_at > $2)
		RETURNING used_count, status
	`, code.ID, now)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCodeExhausted
	}
	if err != nil {
		return fmt.Errorf("consume redeem code: %w", err)
	}
	code.UsedCount = row.UsedCount
	code.Status = row.Status
	code.UpdatedAt = now
	return nil
}
