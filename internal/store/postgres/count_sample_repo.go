package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

type CountSampleRepo struct {
	db *DB
}

func NewCountSampleRepo(db *DB) *CountSampleRepo {
	return &CountSampleRepo{db: db}
}

func (r *CountSampleRepo) Insert(ctx context.Context, s *model.VehicleCountSample) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vehicle_count_samples (ts, north, east, south, west, total)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.Timestamp, s.North, s.East, s.South, s.West, s.Total)
	if err != nil {
		return fmt.Errorf("insert count sample: %w", err)
	}
	return nil
}

func (r *CountSampleRepo) Range(ctx context.Context, from, to time.Time, limit int) ([]model.VehicleCountSample, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ts, north, east, south, west, total
		FROM vehicle_count_samples
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query count samples: %w", err)
	}
	defer rows.Close()

	var samples []model.VehicleCountSample
	for rows.Next() {
		var s model.VehicleCountSample
		if err := rows.Scan(&s.ID, &s.Timestamp, &s.North, &s.East, &s.South, &s.West, &s.Total); err != nil {
			return nil, fmt.Errorf("scan count sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
