package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository reads game and chapter pricing. Catalog content is managed by
// the editor service; this service never writes it.
type Repository interface {
	GetGame(ctx context.Context, id uuid.UUID) (*Game, error)
	ListChapters(ctx context.Context, gameID uuid.UUID) ([]Chapter, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates catalog repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetGame(ctx context.Context, id uuid.UUID) (*Game, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var g Game
	err := r.db.GetContext(ctx, &g, `
		SELECT id, tenant_id, title, pricing_type, price, currency, gateway_product_id, created_at
		FROM games
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	return &g, nil
}

func (r *repository) ListChapters(ctx context.Context, gameID uuid.UUID) ([]Chapter, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	chapters := make([]Chapter, 0)
	err := r.db.SelectContext(ctx, &chapters, `
		SELECT id, game_id, title, sort_order, unlock_type, price, gateway_product_id
		FROM chapters
		WHERE game_id = $1
		ORDER BY sort_order ASC, id ASC
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return chapters, nil
}
