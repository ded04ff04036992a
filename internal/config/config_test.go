package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear env vars that might interfere
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("MQTT_BROKER_URL", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Empty(t, cfg.DB.URL)
	assert.Equal(t, 10, cfg.DB.MaxOpenConns)
	assert.Equal(t, 5, cfg.DB.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.DB.ConnMaxLifetime)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, "traffic:events", cfg.Redis.StreamKey)
	assert.Empty(t, cfg.MQTT.BrokerURL)
	assert.Equal(t, "trafficd", cfg.MQTT.ClientID)
	assert.Equal(t, "traffic/intersection", cfg.MQTT.TopicPrefix)
	assert.Empty(t, cfg.Controller.SettingsFile)
	assert.Equal(t, 30, cfg.Controller.SettingsPollSec)
	assert.Equal(t, 256, cfg.Controller.RecorderBufferSize)
	assert.Equal(t, 10, cfg.Controller.StatsFlushMin)
	assert.False(t, cfg.Sim.Enabled)
	assert.Equal(t, 1000, cfg.Sim.IntervalMS)
	assert.Equal(t, 300, cfg.Alert.CooldownSec)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DATABASE_URL", "postgres://traffic:traffic@db:5432/traffic")
	t.Setenv("REDIS_URL", "redis://redis:6379")
	t.Setenv("REDIS_STREAM_KEY", "intersection:42:events")
	t.Setenv("MQTT_BROKER_URL", "tcp://broker:1883")
	t.Setenv("MQTT_CLIENT_ID", "trafficd-42")
	t.Setenv("SETTINGS_FILE", "/etc/trafficd/settings.yaml")
	t.Setenv("SETTINGS_POLL_SEC", "10")
	t.Setenv("RECORDER_BUFFER_SIZE", "512")
	t.Setenv("SIM_ENABLED", "true")
	t.Setenv("SIM_INTERVAL_MS", "250")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "postgres://traffic:traffic@db:5432/traffic", cfg.DB.URL)
	assert.Equal(t, "redis://redis:6379", cfg.Redis.URL)
	assert.Equal(t, "intersection:42:events", cfg.Redis.StreamKey)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.BrokerURL)
	assert.Equal(t, "trafficd-42", cfg.MQTT.ClientID)
	assert.Equal(t, "/etc/trafficd/settings.yaml", cfg.Controller.SettingsFile)
	assert.Equal(t, 10, cfg.Controller.SettingsPollSec)
	assert.Equal(t, 512, cfg.Controller.RecorderBufferSize)
	assert.True(t, cfg.Sim.Enabled)
	assert.Equal(t, 250, cfg.Sim.IntervalMS)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_RejectsNonPositiveRecorderBuffer(t *testing.T) {
	t.Setenv("RECORDER_BUFFER_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECORDER_BUFFER_SIZE")
}

func TestLoad_RejectsNonPositiveSimInterval(t *testing.T) {
	t.Setenv("SIM_ENABLED", "true")
	t.Setenv("SIM_INTERVAL_MS", "-5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIM_INTERVAL_MS")
}

func TestValidate_MissingHTTPAddr(t *testing.T) {
	cfg := &Config{
		Controller: ControllerConfig{RecorderBufferSize: 1, SettingsPollSec: 1},
	}
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_ADDR")
}

func TestGetEnvInt_InvalidValue(t *testing.T) {
	t.Setenv("TEST_INT", "not_a_number")
	assert.Equal(t, 42, getEnvInt("TEST_INT", 42))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "yes")
	assert.True(t, getEnvBool("TEST_BOOL", false))

	t.Setenv("TEST_BOOL", "OFF")
	assert.False(t, getEnvBool("TEST_BOOL", true))

	t.Setenv("TEST_BOOL", "maybe")
	assert.True(t, getEnvBool("TEST_BOOL", true))
}
