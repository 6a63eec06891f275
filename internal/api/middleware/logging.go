// Package middleware provides HTTP middleware for the aerodesk API server.
package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/aerodesk/aerodesk/internal/logger"
)

// NewRequestID tags every request with an X-Request-ID, generating a UUID
// when the client did not send one.
func NewRequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// NewRequestLogger creates a request logging middleware.
func NewRequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return NewRequestLoggerWithSkipper(log, nil)
}

// NewRequestLoggerWithSkipper creates a request logging middleware with a custom skipper.
func NewRequestLoggerWithSkipper(log logger.Logger, skipper middleware.Skipper) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:      skipper,
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if log == nil {
				return nil
			}

			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
				logger.String("request_id", v.RequestID),
			}

			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
				log.WithContext(c.Request().Context()).Warn("request", fields...)
				return nil
			}
			log.WithContext(c.Request().Context()).Debug("request", fields...)
			return nil
		},
	})
}

// NewStreamRateLimiter limits how often one client IP may open long-lived
// streams. perMinute <= 0 disables the limit.
func NewStreamRateLimiter(perMinute int) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(echo.Context) bool { return perMinute <= 0 },
		Store:   newStreamRateStore(perMinute),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(echo.Context, error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(echo.Context, string, error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many stream connection attempts, please wait before trying again")
		},
	})
}
