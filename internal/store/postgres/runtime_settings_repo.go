package postgres

import (
	"context"
	"fmt"
)

// RuntimeSettingsRepo reads operator-edited scheduler tunables. Rows are
// key/value pairs keyed by the settings patch field names; the watcher parses
// and clamps them before they reach the controller.
type RuntimeSettingsRepo struct {
	db *DB
}

func NewRuntimeSettingsRepo(db *DB) *RuntimeSettingsRepo {
	return &RuntimeSettingsRepo{db: db}
}

func (r *RuntimeSettingsRepo) GetActive(ctx context.Context) (map[string]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT key, value
		FROM runtime_settings
		WHERE active = true
	`)
	if err != nil {
		return nil, fmt.Errorf("query runtime settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan runtime setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}
