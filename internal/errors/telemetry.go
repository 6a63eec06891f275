// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// InitSentry initializes the Sentry SDK and installs a reporter for it.
func InitSentry(dsn, environment, release string) error {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	}); err != nil {
		return New(err).
			Component("telemetry").
			Category(CategoryConfiguration).
			Build()
	}
	SetTelemetryReporter(NewSentryReporter(true))
	return nil
}

// FlushTelemetry waits for buffered Sentry events to be sent.
func FlushTelemetry(timeout time.Duration) {
	if hasActiveReporting.Load() {
		sentry.Flush(timeout)
	}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() || !isReportable(ee.Category) {
		return
	}

	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	title := fmt.Sprintf("%s %s", ee.Component, ee.Category)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetFingerprint([]string{title})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = levelFor(ee.Category)
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// isReportable filters out categories that describe caller mistakes or races
// between panels rather than faults.
func isReportable(category ErrorCategory) bool {
	switch category {
	case CategoryValidation, CategoryNotFound, CategoryState, CategoryRateLimit:
		return false
	default:
		return true
	}
}

func levelFor(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryMQTTConnection, CategoryMQTTPublish, CategoryBroadcast:
		return sentry.LevelWarning
	case CategoryFileParsing:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var (
	reporterMu     sync.RWMutex
	globalReporter TelemetryReporter
)

// SetTelemetryReporter sets the global telemetry reporter. Passing nil disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	globalReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	reporterMu.RLock()
	defer reporterMu.RUnlock()
	return globalReporter
}

func reportToTelemetry(ee *EnhancedError) {
	if reporter := GetTelemetryReporter(); reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

var (
	urlQueryRegex = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	secretRegex   = regexp.MustCompile(`(?i)(password|token|api[_-]?key)[=:]\S+`)
	credsURLRegex = regexp.MustCompile(`(\w+://)[^:@/\s]+:[^@/\s]+@`)
)

// scrubMessage removes query strings, inline secrets and URL credentials.
func scrubMessage(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = credsURLRegex.ReplaceAllString(scrubbed, "$1[REDACTED]@")
	return secretRegex.ReplaceAllString(scrubbed, "$1=[REDACTED]")
}
