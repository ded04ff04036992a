// Package store defines the persistence boundary of the controller: the
// repository interfaces implemented by the Postgres backend and the async
// recorder that decouples the scheduling path from durable writes.
package store

import (
	"context"
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

// EventRepository stores durable copies of controller event-log entries.
type EventRepository interface {
	Insert(ctx context.Context, ev *model.DetectionEvent) error
	Recent(ctx context.Context, limit int) ([]model.DetectionEvent, error)
}

// SignalChangeRepository stores every aspect change pushed to the heads.
type SignalChangeRepository interface {
	Insert(ctx context.Context, ch *model.SignalChange) error
	RecentByDirection(ctx context.Context, dir model.Direction, limit int) ([]model.SignalChange, error)
}

// CountSampleRepository stores per-direction vehicle count snapshots.
type CountSampleRepository interface {
	Insert(ctx context.Context, s *model.VehicleCountSample) error
	Range(ctx context.Context, from, to time.Time, limit int) ([]model.VehicleCountSample, error)
}

// DailyStatsRepository upserts the per-day activity rollup.
type DailyStatsRepository interface {
	Upsert(ctx context.Context, ds *model.DailyStats) error
	Get(ctx context.Context, date time.Time) (*model.DailyStats, error)
}

// RuntimeSettingsRepository exposes operator-edited scheduler tunables as
// key/value pairs. The settings watcher polls it and pushes changes into the
// running controller.
type RuntimeSettingsRepository interface {
	GetActive(ctx context.Context) (map[string]string, error)
}
