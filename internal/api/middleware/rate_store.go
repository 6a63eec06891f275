package middleware

import (
	"time"

	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func newStreamRateStore(perMinute int) middleware.RateLimiterStore {
	if perMinute <= 0 {
		perMinute = 1
	}
	return middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Every(time.Minute / time.Duration(perMinute)),
		Burst:     perMinute,
		ExpiresIn: 3 * time.Minute,
	})
}
