package postgres

import (
	"context"
	"fmt"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

type SignalChangeRepo struct {
	db *DB
}

func NewSignalChangeRepo(db *DB) *SignalChangeRepo {
	return &SignalChangeRepo{db: db}
}

func (r *SignalChangeRepo) Insert(ctx context.Context, ch *model.SignalChange) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signal_changes (ts, direction, state, triggered_by)
		VALUES ($1, $2, $3, $4)
	`, ch.Timestamp, ch.Direction, ch.State, ch.Trigger)
	if err != nil {
		return fmt.Errorf("insert signal change: %w", err)
	}
	return nil
}

func (r *SignalChangeRepo) RecentByDirection(ctx context.Context, dir model.Direction, limit int) ([]model.SignalChange, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ts, direction, state, triggered_by
		FROM signal_changes
		WHERE direction = $1
		ORDER BY ts DESC
		LIMIT $2
	`, dir, limit)
	if err != nil {
		return nil, fmt.Errorf("query signal changes: %w", err)
	}
	defer rows.Close()

	var changes []model.SignalChange
	for rows.Next() {
		var ch model.SignalChange
		if err := rows.Scan(&ch.ID, &ch.Timestamp, &ch.Direction, &ch.State, &ch.Trigger); err != nil {
			return nil, fmt.Errorf("scan signal change: %w", err)
		}
		changes = append(changes, ch)
	}
	return changes, rows.Err()
}
