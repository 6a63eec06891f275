// Package app assembles the notification bus from settings: store, change
// channel, push dispatcher, metrics and the HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/aerodesk/aerodesk/internal/api"
	"github.com/aerodesk/aerodesk/internal/buildinfo"
	"github.com/aerodesk/aerodesk/internal/conf"
	"github.com/aerodesk/aerodesk/internal/datastore"
	"github.com/aerodesk/aerodesk/internal/errors"
	"github.com/aerodesk/aerodesk/internal/logger"
	"github.com/aerodesk/aerodesk/internal/mqtt"
	"github.com/aerodesk/aerodesk/internal/notification"
	"github.com/aerodesk/aerodesk/internal/observability"
	"github.com/aerodesk/aerodesk/internal/observability/metrics"
)

const telemetryFlushTimeout = 2 * time.Second

// App owns every long-lived component of a running bus.
type App struct {
	settings *conf.Settings
	build    *buildinfo.Context
	logger   logger.Logger

	metrics    *observability.Metrics
	service    *notification.Service
	closeStore func() error

	mqttClient  mqtt.Client
	mqttChannel *mqtt.Channel
	push        *notification.PushDispatcher
	fileWatcher *notification.FileWatcher
}

// Option customizes New.
type Option func(*options)

type options struct {
	mqttClient mqtt.Client
	providers  []notification.PushProvider
}

// WithMQTTClient replaces the paho client, e.g. with a fake in tests.
func WithMQTTClient(c mqtt.Client) Option {
	return func(o *options) { o.mqttClient = c }
}

// WithPushProviders adds providers on top of the configured ones.
func WithPushProviders(providers ...notification.PushProvider) Option {
	return func(o *options) { o.providers = append(o.providers, providers...) }
}

// New builds the components but starts nothing.
func New(settings *conf.Settings, build *buildinfo.Context, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		settings:   settings,
		build:      build,
		logger:     logger.Global().Module("app"),
		closeStore: func() error { return nil },
	}

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, settings.Sentry.Environment, build.Version()); err != nil {
			a.logger.Warn("telemetry disabled", logger.Error(err))
		}
	}

	if settings.Telemetry.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, err
		}
		a.metrics = m
	}

	store, closeStore, err := datastore.NewStore(settings.Notifications.Store, logger.Global().Module("datastore"))
	if err != nil {
		return nil, err
	}
	a.closeStore = closeStore

	var channel notification.Channel = notification.NewLocalChannel()
	if settings.MQTT.Enabled {
		a.mqttClient = o.mqttClient
		if a.mqttClient == nil {
			a.mqttClient = mqtt.NewClient(
				mqtt.ConfigFromSettings(settings.MQTT, build.SystemID()),
				a.mqttMetrics(),
				logger.Global().Module("mqtt"))
		}
		a.mqttChannel = mqtt.NewChannel(mqtt.ChannelConfig{
			Topic:    settings.MQTT.Topic,
			StoreKey: settings.Notifications.Store.Key,
			Client:   a.mqttClient,
			Metrics:  a.mqttMetrics(),
			Logger:   logger.Global().Module("mqtt"),
		})
		channel = a.mqttChannel
	}

	if fs, ok := store.(*notification.FileStore); ok {
		a.fileWatcher = notification.NewFileWatcher(fs, channel, logger.Global().Module("notification.watch"))
	}

	var dispatcher notification.Dispatcher
	if providers := a.pushProviders(o.providers); len(providers) > 0 {
		a.push = notification.NewPushDispatcher(notification.PushConfig{
			MinPriority: notification.Priority(settings.Push.MinPriority),
			Timeout:     settings.Push.Timeout,
			QueueSize:   settings.Push.Queue,
		}, providers, a.notificationMetrics(), logger.Global().Module("notification.push"))
		dispatcher = a.push
	}

	a.service = notification.NewService(&notification.ServiceConfig{
		Store:              store,
		Channel:            channel,
		Language:           settings.Notifications.Language,
		RateLimitPerMinute: settings.Notifications.RateLimit.PerMinute,
		RateLimitBurst:     settings.Notifications.RateLimit.Burst,
		Dispatcher:         dispatcher,
		Metrics:            a.notificationMetrics(),
		Logger:             logger.Global().Module("notification"),
	})
	return a, nil
}

func (a *App) pushProviders(extra []notification.PushProvider) []notification.PushProvider {
	push := a.settings.Push
	if !push.Enabled {
		return extra
	}
	providers := append([]notification.PushProvider(nil), extra...)
	if len(push.URLs) > 0 {
		p, err := notification.NewShoutrrrProvider("", push.URLs, push.Timeout)
		if err != nil {
			a.logger.Warn("shoutrrr push disabled", logger.Error(err))
		} else {
			providers = append(providers, p)
		}
	}
	client := &http.Client{Timeout: push.Timeout}
	for _, url := range push.Webhooks {
		providers = append(providers, notification.NewWebhookProvider("", url, client))
	}
	return providers
}

func (a *App) notificationMetrics() *metrics.NotificationMetrics {
	if a.metrics == nil {
		return nil
	}
	return a.metrics.Notification
}

func (a *App) mqttMetrics() *metrics.MQTTMetrics {
	if a.metrics == nil {
		return nil
	}
	return a.metrics.MQTT
}

// Service returns the lifecycle manager.
func (a *App) Service() *notification.Service {
	return a.service
}

// Metrics returns the metric sets, or nil when telemetry is disabled.
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}

// Start connects to the broker and starts background workers. A broker
// that cannot be reached is logged; the bus keeps working within the process.
func (a *App) Start(ctx context.Context) error {
	if a.mqttChannel != nil {
		if err := a.mqttClient.Connect(ctx); err != nil {
			a.logger.Warn("MQTT broker unreachable, change signals stay local",
				logger.String("broker", a.settings.MQTT.Broker),
				logger.Error(err))
		}
		if err := a.mqttChannel.Start(ctx); err != nil {
			return err
		}
	}
	if a.fileWatcher != nil {
		if err := a.fileWatcher.Start(ctx); err != nil {
			a.logger.Warn("store file watch disabled, changes by other processes are not signalled",
				logger.Error(err))
		}
	}
	if a.push != nil {
		a.push.Start(ctx)
	}
	return nil
}

// Serve runs the HTTP server until ctx is done. Start must have been called.
func (a *App) Serve(ctx context.Context) error {
	if !a.settings.WebServer.Enabled {
		a.logger.Info("web server disabled, waiting for shutdown")
		<-ctx.Done()
		return nil
	}

	opts := []api.ServerOption{
		api.WithLogger(logger.Global().Module("api")),
		api.WithBuildInfo(a.build),
	}
	if a.metrics != nil {
		opts = append(opts, api.WithMetrics(a.metrics))
	}
	return api.New(a.service, a.settings.WebServer, opts...).Start(ctx)
}

// Close stops workers and releases the store. It is safe to call after a
// failed Start.
func (a *App) Close() error {
	if a.fileWatcher != nil {
		a.fileWatcher.Stop()
	}
	if a.push != nil {
		a.push.Stop()
	}
	if a.mqttChannel != nil {
		a.mqttChannel.Stop()
		a.mqttClient.Disconnect()
	}
	errors.FlushTelemetry(telemetryFlushTimeout)
	return a.closeStore()
}
