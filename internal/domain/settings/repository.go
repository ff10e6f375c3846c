package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jcq/jcq-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

// Repository stores application settings.
type Repository interface {
	GetMany(ctx context.Context, keys []string) (map[string]Setting, error)
	// Upsert writes all settings in one transaction. Empty values delete.
	Upsert(ctx context.Context, settings []Setting) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates settings repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetMany(ctx context.Context, keys []string) (map[string]Setting, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := sqlx.In(`SELECT key, value, is_secret, updated_by, updated_at FROM app_settings WHERE key IN (?)`, keys)
	if err != nil {
		return nil, fmt.Errorf("build settings query: %w", err)
	}

	var rows []Setting
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	out := make(map[string]Setting, len(rows))
	for _, s := range rows {
		out[s.Key] = s
	}
	return out, nil
}

func (r *repository) Upsert(ctx context.Context, settings []Setting) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, s := range settings {
			if s.Value == "" {
				if _, err := tx.ExecContext(ctx, `DELETE FROM app_settings WHERE key = $1`, s.Key); err != nil {
					return fmt.Errorf("delete setting %s: %w", s.Key, err)
				}
				continue
			}
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO app_settings (key, value, is_secret, updated_by, updated_at)
				VALUES (:key, :value, :is_secret, :updated_by, :updated_at)
				ON CONFLICT (key) DO UPDATE
				SET value = EXCLUDED.value, is_secret = EXCLUDED.is_secret,
				    updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
			`, s)
			if err != nil {
				return fmt.Errorf("upsert setting %s: %w", s.Key, err)
			}
		}
		return nil
	})
}
