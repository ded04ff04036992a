package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

type DailyStatsRepo struct {
	db *DB
}

func NewDailyStatsRepo(db *DB) *DailyStatsRepo {
	return &DailyStatsRepo{db: db}
}

// Upsert replaces the rollup for the record's date. The recorder flushes the
// running counters periodically, so the last write for a day wins.
func (r *DailyStatsRepo) Upsert(ctx context.Context, ds *model.DailyStats) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_stats (
			date, total_vehicles, cycle_count, pedestrians_served,
			emergency_count, average_wait_seconds, green_time_efficiency, uptime_seconds
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (date) DO UPDATE SET
			total_vehicles = EXCLUDED.total_vehicles,
			cycle_count = EXCLUDED.cycle_count,
			pedestrians_served = EXCLUDED.pedestrians_served,
			emergency_count = EXCLUDED.emergency_count,
			average_wait_seconds = EXCLUDED.average_wait_seconds,
			green_time_efficiency = EXCLUDED.green_time_efficiency,
			uptime_seconds = EXCLUDED.uptime_seconds,
			updated_at = now()
	`, ds.Date, ds.TotalVehicles, ds.CycleCount, ds.PedestriansServed,
		ds.EmergencyCount, ds.AverageWaitSeconds, ds.GreenTimeEfficiency, ds.UptimeSeconds)
	if err != nil {
		return fmt.Errorf("upsert daily stats: %w", err)
	}
	return nil
}

func (r *DailyStatsRepo) Get(ctx context.Context, date time.Time) (*model.DailyStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var ds model.DailyStats
	err := r.db.QueryRowContext(ctx, `
		SELECT date, total_vehicles, cycle_count, pedestrians_served,
		       emergency_count, average_wait_seconds, green_time_efficiency, uptime_seconds
		FROM daily_stats
		WHERE date = $1
	`, date).Scan(
		&ds.Date, &ds.TotalVehicles, &ds.CycleCount, &ds.PedestriansServed,
		&ds.EmergencyCount, &ds.AverageWaitSeconds, &ds.GreenTimeEfficiency, &ds.UptimeSeconds,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily stats: %w", err)
	}
	return &ds, nil
}
