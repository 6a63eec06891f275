package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers the default value of every setting.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file.enabled", false)
	v.SetDefault("logging.file.path", "logs/aerodesk.log")
	v.SetDefault("logging.file.level", "info")
	v.SetDefault("logging.modules", map[string]string{})

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", ":8080")
	v.SetDefault("webserver.stream.heartbeat", 30*time.Second)
	v.SetDefault("webserver.stream.max_duration", 30*time.Minute)
	v.SetDefault("webserver.stream.rate_limit", 30)

	v.SetDefault("notifications.language", "vi")
	v.SetDefault("notifications.store.type", StoreFile)
	v.SetDefault("notifications.store.key", "aero_notifications")
	v.SetDefault("notifications.store.dir", "data")
	v.SetDefault("notifications.store.sqlite.path", "data/aerodesk.db")
	v.SetDefault("notifications.store.mysql.host", "localhost")
	v.SetDefault("notifications.store.mysql.port", "3306")
	v.SetDefault("notifications.store.mysql.username", "aerodesk")
	v.SetDefault("notifications.store.mysql.password", "")
	v.SetDefault("notifications.store.mysql.database", "aerodesk")
	v.SetDefault("notifications.rate_limit.per_minute", 0)
	v.SetDefault("notifications.rate_limit.burst", 5)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "aerodesk")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "aerodesk/notifications/changed")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("push.enabled", false)
	v.SetDefault("push.urls", []string{})
	v.SetDefault("push.webhooks", []string{})
	v.SetDefault("push.min_priority", "HIGH")
	v.SetDefault("push.timeout", 10*time.Second)
	v.SetDefault("push.queue", 64)

	v.SetDefault("telemetry.enabled", true)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}
