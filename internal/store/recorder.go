package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/circuitbreaker"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/health"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/metrics"
)

const writeTimeout = 5 * time.Second

// EventPublisher mirrors recorder traffic onto a message stream. Best-effort;
// publish failures are logged and dropped.
type EventPublisher interface {
	Publish(ctx context.Context, kind string, payload any) error
}

// Repos bundles the repositories the recorder writes to. Nil members are
// skipped, so a deployment can persist only what it has tables for.
type Repos struct {
	Events  EventRepository
	Signals SignalChangeRepository
	Counts  CountSampleRepository
	Stats   DailyStatsRepository
}

type record struct {
	kind   string
	event  *model.DetectionEvent
	change *model.SignalChange
	sample *model.VehicleCountSample
	stats  *model.DailyStats
}

// Recorder is the fire-and-forget persistence sink between the controller
// and durable storage. Producers enqueue onto a bounded channel and never
// block: when the queue is full the record is dropped and counted. A single
// worker goroutine drains the queue and writes through a circuit breaker, so
// a dead database degrades to cheap rejections instead of a blocked
// scheduler.
type Recorder struct {
	repos     Repos
	publisher EventPublisher
	breaker   *circuitbreaker.Breaker
	tracker   *health.Tracker
	logger    *slog.Logger
	queue     chan record
}

// NewRecorder builds a recorder with the given queue capacity. publisher and
// tracker may be nil.
func NewRecorder(repos Repos, publisher EventPublisher, tracker *health.Tracker, bufferSize int, logger *slog.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Recorder{
		repos:     repos,
		publisher: publisher,
		breaker:   circuitbreaker.New("recorder", 5, 30*time.Second),
		tracker:   tracker,
		logger:    logger.With("component", "recorder"),
		queue:     make(chan record, bufferSize),
	}
}

// LogEvent enqueues a durable copy of an event-log entry.
func (r *Recorder) LogEvent(ev model.DetectionEvent) {
	r.enqueue(record{kind: "event", event: &ev})
}

// RecordSignalChange enqueues one head aspect change.
func (r *Recorder) RecordSignalChange(ch model.SignalChange) {
	r.enqueue(record{kind: "signal_change", change: &ch})
}

// RecordCounts enqueues a vehicle count snapshot.
func (r *Recorder) RecordCounts(s model.VehicleCountSample) {
	r.enqueue(record{kind: "counts", sample: &s})
}

// FlushDailyStats enqueues the daily rollup upsert.
func (r *Recorder) FlushDailyStats(ds model.DailyStats) {
	r.enqueue(record{kind: "daily_stats", stats: &ds})
}

// enqueue never blocks: a full queue drops the record.
func (r *Recorder) enqueue(rec record) {
	select {
	case r.queue <- rec:
		metrics.RecorderQueueDepth.Set(float64(len(r.queue)))
	default:
		metrics.RecorderDroppedTotal.Inc()
	}
}

// QueueDepth returns the number of records waiting to be written.
func (r *Recorder) QueueDepth() int {
	return len(r.queue)
}

// Run drains the queue until ctx is canceled, then flushes whatever is still
// buffered before returning.
func (r *Recorder) Run(ctx context.Context) error {
	r.logger.Info("recorder started", "queue_capacity", cap(r.queue))
	for {
		select {
		case <-ctx.Done():
			r.drain()
			r.logger.Info("recorder stopped")
			return ctx.Err()
		case rec := <-r.queue:
			metrics.RecorderQueueDepth.Set(float64(len(r.queue)))
			r.write(rec)
		}
	}
}

// drain writes out records still queued at shutdown.
func (r *Recorder) drain() {
	for {
		select {
		case rec := <-r.queue:
			r.write(rec)
		default:
			metrics.RecorderQueueDepth.Set(0)
			return
		}
	}
}

// write persists one record through the breaker. Failures are counted and
// logged, never propagated: persistence must not be able to fail the
// controller.
func (r *Recorder) write(rec record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := r.breaker.Execute(func() error {
		switch rec.kind {
		case "event":
			if r.repos.Events == nil {
				return nil
			}
			return r.repos.Events.Insert(ctx, rec.event)
		case "signal_change":
			if r.repos.Signals == nil {
				return nil
			}
			return r.repos.Signals.Insert(ctx, rec.change)
		case "counts":
			if r.repos.Counts == nil {
				return nil
			}
			return r.repos.Counts.Insert(ctx, rec.sample)
		case "daily_stats":
			if r.repos.Stats == nil {
				return nil
			}
			return r.repos.Stats.Upsert(ctx, rec.stats)
		}
		return nil
	})
	if err != nil {
		metrics.RecorderErrorsTotal.WithLabelValues(rec.kind).Inc()
		if r.tracker != nil {
			if r.tracker.RecordFailure() {
				r.logger.Error("recorder unhealthy, persistence writes failing", "kind", rec.kind, "error", err)
			}
		}
		r.logger.Debug("recorder write failed", "kind", rec.kind, "error", err)
		return
	}

	metrics.RecorderWritesTotal.WithLabelValues(rec.kind).Inc()
	if r.tracker != nil && r.tracker.RecordSuccess() {
		r.logger.Info("recorder recovered, persistence writes succeeding again")
	}

	if r.publisher != nil {
		if perr := r.publisher.Publish(ctx, rec.kind, rec.payload()); perr != nil {
			r.logger.Debug("event stream publish failed", "kind", rec.kind, "error", perr)
		}
	}
}

func (rec record) payload() any {
	switch rec.kind {
	case "event":
		return rec.event
	case "signal_change":
		return rec.change
	case "counts":
		return rec.sample
	case "daily_stats":
		return rec.stats
	}
	return nil
}
