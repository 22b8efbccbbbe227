package postgres

import (
	"context"
	"fmt"

	"github.com/omnivault/crosschain-composer/internal/store"
)

type RuntimeConfigRepo struct {
	db *DB
}

func NewRuntimeConfigRepo(db *DB) *RuntimeConfigRepo {
	return &RuntimeConfigRepo{db: db}
}

var _ store.RuntimeConfigRepository = (*RuntimeConfigRepo)(nil)

func (r *RuntimeConfigRepo) GetActive(ctx context.Context, chain string) (map[string]string, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT config_key, config_value
		FROM runtime_configs
		WHERE chain = $1 AND is_active = true
	`, chain)
	if err != nil {
		return nil, fmt.Errorf("get active runtime configs: %w", err)
	}
	defer rows.Close()

	configs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan runtime config: %w", err)
		}
		configs[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read runtime config rows: %w", err)
	}

	return configs, nil
}

// Set upserts one runtime config key for a chain. Used by the admin API.
func (r *RuntimeConfigRepo) Set(ctx context.Context, chain, key, value string) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runtime_configs (chain, config_key, config_value, is_active)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (chain, config_key) DO UPDATE SET
			config_value = EXCLUDED.config_value,
			is_active    = true,
			updated_at   = now()
	`, chain, key, value)
	if err != nil {
		return fmt.Errorf("set runtime config: %w", err)
	}
	return nil
}

// Deactivate flags one key inactive without deleting its history.
func (r *RuntimeConfigRepo) Deactivate(ctx context.Context, chain, key string) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE runtime_configs
		SET is_active = false, updated_at = now()
		WHERE chain = $1 AND config_key = $2
	`, chain, key)
	if err != nil {
		return fmt.Errorf("deactivate runtime config: %w", err)
	}
	return nil
}
