package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding maps an environment variable onto a config key.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "AERODESK_DEBUG", validateEnvBool},
		{"logging.level", "AERODESK_LOG_LEVEL", validateEnvLogLevel},

		{"webserver.listen", "AERODESK_LISTEN", nil},

		{"notifications.language", "AERODESK_LANGUAGE", nil},
		{"notifications.store.type", "AERODESK_STORE_TYPE", validateEnvStoreType},
		{"notifications.store.key", "AERODESK_STORE_KEY", nil},
		{"notifications.store.dir", "AERODESK_STORE_DIR", nil},
		{"notifications.store.sqlite.path", "AERODESK_SQLITE_PATH", nil},
		{"notifications.store.mysql.host", "AERODESK_MYSQL_HOST", nil},
		{"notifications.store.mysql.port", "AERODESK_MYSQL_PORT", validateEnvPort},
		{"notifications.store.mysql.username", "AERODESK_MYSQL_USERNAME", nil},
		{"notifications.store.mysql.password", "AERODESK_MYSQL_PASSWORD", nil},
		{"notifications.store.mysql.database", "AERODESK_MYSQL_DATABASE", nil},

		{"mqtt.enabled", "AERODESK_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "AERODESK_MQTT_BROKER", validateEnvURL},
		{"mqtt.username", "AERODESK_MQTT_USERNAME", nil},
		{"mqtt.password", "AERODESK_MQTT_PASSWORD", nil},

		{"push.enabled", "AERODESK_PUSH_ENABLED", validateEnvBool},
		{"push.urls", "AERODESK_PUSH_URLS", nil},

		{"sentry.enabled", "AERODESK_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "AERODESK_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every known variable and validates the ones that are set.
func bindEnvVars(v *viper.Viper) error {
	var problems []string
	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("must be one of trace, debug, info, warn, error")
	}
}

func validateEnvStoreType(value string) error {
	switch value {
	case StoreMemory, StoreFile, StoreSQLite, StoreMySQL:
		return nil
	default:
		return fmt.Errorf("must be one of memory, file, sqlite, mysql")
	}
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must include a scheme and host, e.g. tcp://broker:1883")
	}
	return nil
}
