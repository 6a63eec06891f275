package conf

import (
	"net"
	"strings"

	"github.com/aerodesk/aerodesk/internal/buildinfo"
)

var validPriorities = []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}

// Validate checks settings for errors that must stop startup and warnings
// worth logging.
func Validate(settings *Settings) *buildinfo.ValidationResult {
	result := buildinfo.NewValidationResult()
	validateWebServer(&settings.WebServer, result)
	validateNotifications(&settings.Notifications, result)
	validateMQTT(&settings.MQTT, result)
	validatePush(&settings.Push, result)
	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		result.AddError("sentry.dsn is required when sentry is enabled")
	}
	return result
}

func validateWebServer(ws *WebServerSettings, result *buildinfo.ValidationResult) {
	if !ws.Enabled {
		return
	}
	if _, _, err := net.SplitHostPort(ws.Listen); err != nil {
		result.AddError("webserver.listen %q is not host:port: %v", ws.Listen, err)
	}
	if ws.Stream.Heartbeat <= 0 {
		result.AddError("webserver.stream.heartbeat must be positive")
	}
	if ws.Stream.MaxDuration > 0 && ws.Stream.MaxDuration < ws.Stream.Heartbeat {
		result.AddWarning("webserver.stream.max_duration is shorter than the heartbeat")
	}
}

func validateNotifications(ns *NotificationSettings, result *buildinfo.ValidationResult) {
	if strings.TrimSpace(ns.Store.Key) == "" {
		result.AddError("notifications.store.key must not be empty")
	}
	switch ns.Store.Type {
	case StoreMemory:
		result.AddWarning("notifications.store.type is memory; notifications are lost on restart and not shared between processes")
	case StoreFile:
		if ns.Store.Dir == "" {
			result.AddError("notifications.store.dir is required for the file store")
		}
	case StoreSQLite:
		if ns.Store.SQLite.Path == "" {
			result.AddError("notifications.store.sqlite.path is required for the sqlite store")
		}
	case StoreMySQL:
		m := ns.Store.MySQL
		if m.Host == "" || m.Database == "" || m.Username == "" {
			result.AddError("notifications.store.mysql needs host, username and database")
		}
	default:
		result.AddError("unknown notifications.store.type %q", ns.Store.Type)
	}
	if ns.RateLimit.PerMinute < 0 || ns.RateLimit.Burst < 0 {
		result.AddError("notifications.rate_limit values must not be negative")
	}
}

func validateMQTT(m *MQTTSettings, result *buildinfo.ValidationResult) {
	if !m.Enabled {
		return
	}
	if err := validateEnvURL(m.Broker); err != nil {
		result.AddError("mqtt.broker %q: %v", m.Broker, err)
	}
	if m.Topic == "" {
		result.AddError("mqtt.topic is required when mqtt is enabled")
	} else if strings.ContainsAny(m.Topic, "+#") {
		result.AddError("mqtt.topic %q must not contain wildcards", m.Topic)
	}
	if m.QoS > 2 {
		result.AddError("mqtt.qos must be 0, 1 or 2")
	}
	if m.ClientID == "" {
		result.AddWarning("mqtt.client_id is empty; a random id will be used")
	}
}

func validatePush(p *PushSettings, result *buildinfo.ValidationResult) {
	if !p.Enabled {
		return
	}
	if len(p.URLs) == 0 && len(p.Webhooks) == 0 {
		result.AddWarning("push is enabled but no urls or webhooks are configured")
	}
	valid := false
	for _, priority := range validPriorities {
		if strings.EqualFold(p.MinPriority, priority) {
			valid = true
		}
	}
	if !valid {
		result.AddError("push.min_priority %q must be one of %s", p.MinPriority, strings.Join(validPriorities, ", "))
	}
	if p.Queue <= 0 {
		result.AddError("push.queue must be positive")
	}
}
