// Package conf loads aerodesk settings from YAML files, environment
// variables and command line flags.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/aerodesk/aerodesk/internal/errors"
	"github.com/aerodesk/aerodesk/internal/logger"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMySQL  = "mysql"
)

// Settings is the root of the configuration tree.
type Settings struct {
	Debug         bool                 `mapstructure:"debug" yaml:"debug"`
	Logging       logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	WebServer     WebServerSettings    `mapstructure:"webserver" yaml:"webserver"`
	Notifications NotificationSettings `mapstructure:"notifications" yaml:"notifications"`
	MQTT          MQTTSettings         `mapstructure:"mqtt" yaml:"mqtt"`
	Push          PushSettings         `mapstructure:"push" yaml:"push"`
	Telemetry     TelemetrySettings    `mapstructure:"telemetry" yaml:"telemetry"`
	Sentry        SentrySettings       `mapstructure:"sentry" yaml:"sentry"`
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled bool           `mapstructure:"enabled" yaml:"enabled"`
	Listen  string         `mapstructure:"listen" yaml:"listen"` // host:port
	Stream  StreamSettings `mapstructure:"stream" yaml:"stream"`
}

// StreamSettings configures the SSE and WebSocket change streams.
type StreamSettings struct {
	Heartbeat   time.Duration `mapstructure:"heartbeat" yaml:"heartbeat"`
	MaxDuration time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
	RateLimit   int           `mapstructure:"rate_limit" yaml:"rate_limit"` // new streams per minute per client IP
}

// NotificationSettings configures the notification bus.
type NotificationSettings struct {
	Language  string            `mapstructure:"language" yaml:"language"`
	Store     StoreSettings     `mapstructure:"store" yaml:"store"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// StoreSettings selects where the notification collection lives.
type StoreSettings struct {
	Type   string         `mapstructure:"type" yaml:"type"` // memory, file, sqlite, mysql
	Key    string         `mapstructure:"key" yaml:"key"`
	Dir    string         `mapstructure:"dir" yaml:"dir"` // file store directory
	SQLite SQLiteSettings `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL  MySQLSettings  `mapstructure:"mysql" yaml:"mysql"`
}

// SQLiteSettings configures the SQLite document store.
type SQLiteSettings struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MySQLSettings configures the MySQL document store.
type MySQLSettings struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

// RateLimitSettings caps ground service requests per captain. Emergencies
// are never throttled.
type RateLimitSettings struct {
	PerMinute int `mapstructure:"per_minute" yaml:"per_minute"` // 0 disables
	Burst     int `mapstructure:"burst" yaml:"burst"`
}

// MQTTSettings configures the cross-process change channel.
type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker   string `mapstructure:"broker" yaml:"broker"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Topic    string `mapstructure:"topic" yaml:"topic"`
	QoS      byte   `mapstructure:"qos" yaml:"qos"`
}

// PushSettings configures external alerts for urgent notifications.
type PushSettings struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	URLs        []string      `mapstructure:"urls" yaml:"urls"`         // shoutrrr service URLs
	Webhooks    []string      `mapstructure:"webhooks" yaml:"webhooks"` // plain JSON webhooks
	MinPriority string        `mapstructure:"min_priority" yaml:"min_priority"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Queue       int           `mapstructure:"queue" yaml:"queue"`
}

// TelemetrySettings toggles the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// SentrySettings configures error reporting.
type SentrySettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// New returns a viper instance with defaults and environment bindings.
func New() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Load reads configFile, or the first config.yaml on the search path when
// configFile is empty, applies environment overrides and validates the result.
// A missing config file is not an error; the defaults apply.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		for _, path := range ConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("config_file", configFile).
				Build()
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	result := Validate(settings)
	if !result.Valid {
		return nil, errors.Newf("invalid configuration: %v", result.Errors).
			Component("conf").
			Category(errors.CategoryValidation).
			Context("errors", result.Errors).
			Build()
	}
	return settings, nil
}

// Defaults returns the settings produced by the defaults alone.
func Defaults() *Settings {
	v := viper.New()
	setDefaults(v)
	settings := &Settings{}
	// Defaults always decode.
	_ = v.Unmarshal(settings)
	return settings
}

// ConfigPaths lists the directories searched for config.yaml, in order.
func ConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "aerodesk"))
	}
	return append(paths, "/etc/aerodesk")
}

// SaveYAML writes settings to configPath through a temp file and a rename,
// so readers never see a half-written config.
func SaveYAML(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Chmod(0o600); err != nil {
		tempFile.Close()
		return fmt.Errorf("error setting config file mode: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
