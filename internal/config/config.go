package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTP       HTTPConfig
	DB         DBConfig
	Redis      RedisConfig
	MQTT       MQTTConfig
	Controller ControllerConfig
	Sim        SimConfig
	Alert      AlertConfig
	Log        LogConfig
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DBConfig configures the optional Postgres recorder backend. An empty URL
// disables persistence; the controller runs unchanged without it.
type DBConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the optional event-stream mirror.
type RedisConfig struct {
	URL       string
	StreamKey string
}

// MQTTConfig configures the signal-head driver. An empty broker URL selects
// the in-memory driver instead.
type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
}

type ControllerConfig struct {
	SettingsFile       string
	SettingsPollSec    int
	RecorderBufferSize int
	StatsFlushMin      int
}

type SimConfig struct {
	Enabled    bool
	IntervalMS int
	Seed       int64
}

type AlertConfig struct {
	SlackWebhookURL string
	WebhookURL      string
	CooldownSec     int
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 5)) * time.Second,
		},
		DB: DBConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			StreamKey: getEnv("REDIS_STREAM_KEY", "traffic:events"),
		},
		MQTT: MQTTConfig{
			BrokerURL:   getEnv("MQTT_BROKER_URL", ""),
			ClientID:    getEnv("MQTT_CLIENT_ID", "trafficd"),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "traffic/intersection"),
		},
		Controller: ControllerConfig{
			SettingsFile:       getEnv("SETTINGS_FILE", ""),
			SettingsPollSec:    getEnvInt("SETTINGS_POLL_SEC", 30),
			RecorderBufferSize: getEnvInt("RECORDER_BUFFER_SIZE", 256),
			StatsFlushMin:      getEnvInt("STATS_FLUSH_MIN", 10),
		},
		Sim: SimConfig{
			Enabled:    getEnvBool("SIM_ENABLED", false),
			IntervalMS: getEnvInt("SIM_INTERVAL_MS", 1000),
			Seed:       int64(getEnvInt("SIM_SEED", 0)),
		},
		Alert: AlertConfig{
			SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
			WebhookURL:      getEnv("ALERT_WEBHOOK_URL", ""),
			CooldownSec:     getEnvInt("ALERT_COOLDOWN_SEC", 300),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.Controller.RecorderBufferSize <= 0 {
		return fmt.Errorf("RECORDER_BUFFER_SIZE must be positive")
	}
	if c.Controller.SettingsPollSec <= 0 {
		return fmt.Errorf("SETTINGS_POLL_SEC must be positive")
	}
	if c.Sim.Enabled && c.Sim.IntervalMS <= 0 {
		return fmt.Errorf("SIM_INTERVAL_MS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}
