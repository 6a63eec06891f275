package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerodesk/aerodesk/internal/errors"
)

func loadFile(t *testing.T, contents string) (*Settings, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	v, err := New()
	require.NoError(t, err)
	return Load(v, path)
}

func TestDefaults(t *testing.T) {
	settings := Defaults()

	assert.False(t, settings.Debug)
	assert.Equal(t, "info", settings.Logging.Level)
	assert.True(t, settings.Logging.Console.Enabled)
	assert.Equal(t, ":8080", settings.WebServer.Listen)
	assert.Equal(t, 30*time.Second, settings.WebServer.Stream.Heartbeat)
	assert.Equal(t, "vi", settings.Notifications.Language)
	assert.Equal(t, StoreFile, settings.Notifications.Store.Type)
	assert.Equal(t, "aero_notifications", settings.Notifications.Store.Key)
	assert.Equal(t, "3306", settings.Notifications.Store.MySQL.Port)
	assert.Equal(t, 0, settings.Notifications.RateLimit.PerMinute, "captain throttling is opt-in")
	assert.Equal(t, byte(1), settings.MQTT.QoS)
	assert.Equal(t, "HIGH", settings.Push.MinPriority)
	assert.Equal(t, 10*time.Second, settings.Push.Timeout)
	assert.True(t, settings.Telemetry.Enabled)

	assert.True(t, Validate(settings).Valid)
}

func TestLoadOverridesDefaults(t *testing.T) {
	settings, err := loadFile(t, `
debug: true
logging:
  level: debug
  modules:
    api: trace
webserver:
  listen: 127.0.0.1:9090
  stream:
    heartbeat: 5s
notifications:
  language: en
  store:
    type: sqlite
    key: tower_a
    sqlite:
      path: /var/lib/aerodesk/bus.db
mqtt:
  enabled: true
  broker: tcp://broker:1883
  qos: 2
push:
  enabled: true
  urls:
    - "logger://"
  min_priority: critical
`)
	require.NoError(t, err)

	assert.True(t, settings.Debug)
	assert.Equal(t, "debug", settings.Logging.Level)
	assert.Equal(t, "trace", settings.Logging.Modules["api"])
	assert.Equal(t, "127.0.0.1:9090", settings.WebServer.Listen)
	assert.Equal(t, 5*time.Second, settings.WebServer.Stream.Heartbeat)
	assert.Equal(t, 30*time.Minute, settings.WebServer.Stream.MaxDuration, "unset keys keep defaults")
	assert.Equal(t, "en", settings.Notifications.Language)
	assert.Equal(t, StoreSQLite, settings.Notifications.Store.Type)
	assert.Equal(t, "tower_a", settings.Notifications.Store.Key)
	assert.Equal(t, "/var/lib/aerodesk/bus.db", settings.Notifications.Store.SQLite.Path)
	assert.True(t, settings.MQTT.Enabled)
	assert.Equal(t, byte(2), settings.MQTT.QoS)
	assert.Equal(t, []string{"logger://"}, settings.Push.URLs)
	assert.Equal(t, "critical", settings.Push.MinPriority)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	_, err := loadFile(t, `
notifications:
  store:
    type: redis
`)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Contains(t, err.Error(), "redis")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	_, err = Load(v, filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := loadFile(t, "webserver: [unclosed")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestSaveYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	original := Defaults()
	original.Notifications.Store.Type = StoreMemory
	original.Notifications.Language = "en"
	original.Push.URLs = []string{"logger://"}

	require.NoError(t, SaveYAML(path, original))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	v, err := New()
	require.NoError(t, err)
	loaded, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, loaded.Notifications.Store.Type)
	assert.Equal(t, "en", loaded.Notifications.Language)
	assert.Equal(t, original.WebServer.Stream.Heartbeat, loaded.WebServer.Stream.Heartbeat)
	assert.Equal(t, []string{"logger://"}, loaded.Push.URLs)
}

func TestConfigPaths(t *testing.T) {
	paths := ConfigPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, ".", paths[0])
	assert.Equal(t, "/etc/aerodesk", paths[len(paths)-1])
}
