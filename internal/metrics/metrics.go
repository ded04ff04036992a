package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Controller, API and recorder collectors. Per-direction series are
// partitioned by the four approach labels.

var (
	// Scheduler
	SchedulerRoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "scheduler",
		Name:      "rounds_total",
		Help:      "Total scheduling rounds completed",
	})

	SchedulerRoundErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "scheduler",
		Name:      "round_errors_total",
		Help:      "Total scheduling round errors (loop continued after backoff)",
	})

	SchedulerRoundLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "traffic",
		Subsystem: "scheduler",
		Name:      "round_duration_seconds",
		Help:      "Scheduling round duration including the green hold",
		Buckets:   []float64{1, 2.5, 5, 10, 15, 30, 60, 90, 120},
	})

	SchedulerSelectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "scheduler",
		Name:      "selections_total",
		Help:      "Total round winners partitioned by direction and cause",
	}, []string{"direction", "cause"})

	SchedulerGreenSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "traffic",
		Subsystem: "scheduler",
		Name:      "green_time_seconds",
		Help:      "Computed green time granted per selection",
		Buckets:   []float64{5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"direction"})

	ModeActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "traffic",
		Subsystem: "scheduler",
		Name:      "mode_active",
		Help:      "1 for the active controller mode, 0 otherwise",
	}, []string{"mode"})

	// Signal heads
	SignalCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "signal",
		Name:      "commands_total",
		Help:      "Total signal head commands issued to the output driver",
	}, []string{"direction", "state"})

	SignalCommandErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "signal",
		Name:      "command_errors_total",
		Help:      "Total best-effort signal driver failures",
	})

	// Detection feed
	DetectionUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "detection",
		Name:      "updates_total",
		Help:      "Total vehicle count updates pushed by the detection feed",
	})

	VehiclesWaiting = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "traffic",
		Subsystem: "detection",
		Name:      "vehicles_waiting",
		Help:      "Latest per-direction vehicle count",
	}, []string{"direction"})

	// Pedestrians
	PedestrianRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "pedestrian",
		Name:      "requests_total",
		Help:      "Pedestrian crossing requests partitioned by direction and outcome",
	}, []string{"direction", "outcome"})

	PedestrianServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "pedestrian",
		Name:      "served_total",
		Help:      "Pedestrian crossings served",
	}, []string{"direction"})

	// Emergency
	EmergencyActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "emergency",
		Name:      "activations_total",
		Help:      "Emergency preemptions granted",
	}, []string{"direction"})

	EmergencyIgnoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "emergency",
		Name:      "ignored_total",
		Help:      "Emergency signals ignored while a preemption was active or disabled",
	})

	// Deferred events
	DeferredEventsFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "scheduler",
		Name:      "deferred_events_fired_total",
		Help:      "Deferred one-shot events that fired and applied",
	})

	DeferredEventsStale = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "scheduler",
		Name:      "deferred_events_stale_total",
		Help:      "Deferred one-shot events dropped because their expected state moved on",
	})

	// Control API
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Control API requests partitioned by method, path and status",
	}, []string{"method", "path", "status"})

	APIRateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "api",
		Name:      "rate_limited_total",
		Help:      "Control API requests rejected by the rate limiter",
	}, []string{"path"})

	// Recorder (async persistence sink)
	RecorderWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "recorder",
		Name:      "writes_total",
		Help:      "Records written to durable storage, partitioned by kind",
	}, []string{"kind"})

	RecorderErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "recorder",
		Name:      "errors_total",
		Help:      "Persistence write failures (suppressed, never reach the scheduler)",
	}, []string{"kind"})

	RecorderDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "recorder",
		Name:      "dropped_total",
		Help:      "Records dropped because the recorder queue was full",
	})

	RecorderQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "traffic",
		Subsystem: "recorder",
		Name:      "queue_depth",
		Help:      "Current recorder queue depth",
	})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "traffic",
		Subsystem: "recorder",
		Name:      "breaker_state",
		Help:      "Persistence circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	// Alerting
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "alerts",
		Name:      "sent_total",
		Help:      "Alerts delivered per channel and type",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traffic",
		Subsystem: "alerts",
		Name:      "cooldown_skipped_total",
		Help:      "Alerts suppressed by the cooldown window",
	}, []string{"channel", "type"})
)
