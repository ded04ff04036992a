package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/alert"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/api"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/config"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/controller"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/detection"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/health"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/settingswatch"
	signaldrv "github.com/Masterionik/rpi5-smart-traffic-light-system/internal/signal"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/store"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/store/postgres"
	redispkg "github.com/Masterionik/rpi5-smart-traffic-light-system/internal/store/redis"
)

const (
	migrationsDir        = "migrations"
	controllerStopWait   = 5 * time.Second
	statsFlushMinMinutes = 1
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// buildAlerter wires the configured alert channels behind one cooldown gate.
// With no channels configured, alerts are a no-op.
func buildAlerter(cfg config.AlertConfig, logger *slog.Logger) alert.Alerter {
	var channels []alert.Alerter
	if cfg.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	if len(channels) == 0 {
		return &alert.NoopAlerter{}
	}
	cooldown := time.Duration(cfg.CooldownSec) * time.Second
	return alert.NewMultiAlerter(cooldown, logger, channels...)
}

func loadSettings(path string, logger *slog.Logger) controller.Settings {
	if path == "" {
		return controller.DefaultSettings()
	}
	s, err := controller.LoadSettingsFile(path)
	if err != nil {
		logger.Warn("settings file unusable, falling back to defaults", "path", path, "error", err)
		return controller.DefaultSettings()
	}
	logger.Info("settings loaded from file", "path", path)
	return s
}

func resolveStatsFlushInterval(minutes int) time.Duration {
	if minutes < statsFlushMinMinutes {
		minutes = statsFlushMinMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// buildDriver selects the signal-head backend: an MQTT broker when one is
// configured, otherwise the in-memory driver used for development.
func buildDriver(cfg config.MQTTConfig, logger *slog.Logger) (signaldrv.Driver, error) {
	if cfg.BrokerURL == "" {
		logger.Info("no mqtt broker configured, using in-memory signal driver")
		return signaldrv.NewMemory(), nil
	}
	return signaldrv.NewMQTT(signaldrv.MQTTConfig{
		BrokerURL:   cfg.BrokerURL,
		ClientID:    cfg.ClientID,
		TopicPrefix: cfg.TopicPrefix,
	}, logger)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("starting trafficd",
		"http_addr", cfg.HTTP.Addr,
		"mqtt_broker", cfg.MQTT.BrokerURL,
		"db_configured", cfg.DB.URL != "",
		"redis_configured", cfg.Redis.URL != "",
		"sim_enabled", cfg.Sim.Enabled,
	)

	registry := health.NewRegistry()

	driver, err := buildDriver(cfg.MQTT, logger)
	if err != nil {
		logger.Error("failed to initialize signal driver", "error", err, "broker", cfg.MQTT.BrokerURL)
		os.Exit(1)
	}
	defer driver.Close()

	var repos store.Repos
	var settingsRepo store.RuntimeSettingsRepository
	if cfg.DB.URL != "" {
		db, err := postgres.New(postgres.Config{
			URL:             cfg.DB.URL,
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.RunMigrations(migrationsDir); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database, migrations applied")

		repos = store.Repos{
			Events:  postgres.NewEventRepo(db),
			Signals: postgres.NewSignalChangeRepo(db),
			Counts:  postgres.NewCountSampleRepo(db),
			Stats:   postgres.NewDailyStatsRepo(db),
		}
		settingsRepo = postgres.NewRuntimeSettingsRepo(db)
	} else {
		logger.Info("no database configured, running without persistence")
	}

	var publisher store.EventPublisher
	if cfg.Redis.URL != "" {
		stream, err := redispkg.NewStream(cfg.Redis.URL, cfg.Redis.StreamKey)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err, "redis_url", cfg.Redis.URL)
			os.Exit(1)
		}
		defer stream.Close()
		publisher = stream
		logger.Info("event stream mirror enabled", "stream_key", cfg.Redis.StreamKey)
	}

	recorder := store.NewRecorder(
		repos,
		publisher,
		registry.Register("recorder"),
		cfg.Controller.RecorderBufferSize,
		logger,
	)

	ctrl := controller.New(
		loadSettings(cfg.Controller.SettingsFile, logger),
		controller.Deps{
			Driver:   driver,
			Recorder: recorder,
			Alerter:  buildAlerter(cfg.Alert, logger),
		},
		logger,
	)

	apiServer := api.NewServer(ctrl, registry, logger)
	defer apiServer.Close()

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ctrl.Run(gCtx)
	})

	g.Go(func() error {
		return recorder.Run(gCtx)
	})

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if settingsRepo != nil {
		watcher := settingswatch.New(
			settingsRepo,
			ctrl,
			registry.Register("settings_watcher"),
			time.Duration(cfg.Controller.SettingsPollSec)*time.Second,
			logger,
		)
		g.Go(func() error {
			return watcher.Run(gCtx)
		})
	}

	if cfg.Sim.Enabled {
		sim := detection.NewSimulator(
			ctrl,
			driver.States,
			time.Duration(cfg.Sim.IntervalMS)*time.Millisecond,
			cfg.Sim.Seed,
			logger,
		)
		g.Go(func() error {
			return sim.Run(gCtx)
		})
	}

	// Periodic daily-stats rollup; also flushed once on shutdown so the day
	// in progress is not lost.
	g.Go(func() error {
		interval := resolveStatsFlushInterval(cfg.Controller.StatsFlushMin)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				recorder.FlushDailyStats(ctrl.DailyStats())
				return gCtx.Err()
			case <-ticker.C:
				recorder.FlushDailyStats(ctrl.DailyStats())
			}
		}
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	err = g.Wait()
	if cerr := ctrl.Close(controllerStopWait); cerr != nil {
		logger.Warn("controller shutdown incomplete", "error", cerr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("trafficd exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("trafficd shut down gracefully")
}
