package postgres

import (
	"context"
	"fmt"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

type EventRepo struct {
	db *DB
}

func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) Insert(ctx context.Context, ev *model.DetectionEvent) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO detection_events (ts, category, direction, message, vehicle_count)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
	`, ev.Timestamp, ev.Category, string(ev.Direction), ev.Message, ev.VehicleCount)
	if err != nil {
		return fmt.Errorf("insert detection event: %w", err)
	}
	return nil
}

func (r *EventRepo) Recent(ctx context.Context, limit int) ([]model.DetectionEvent, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ts, category, COALESCE(direction, ''), message, vehicle_count
		FROM detection_events
		ORDER BY ts DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var events []model.DetectionEvent
	for rows.Next() {
		var ev model.DetectionEvent
		var dir string
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.Category, &dir, &ev.Message, &ev.VehicleCount); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Direction = model.Direction(dir)
		events = append(events, ev)
	}
	return events, rows.Err()
}
