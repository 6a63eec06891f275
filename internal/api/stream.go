package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/aerodesk/aerodesk/internal/logger"
	"github.com/aerodesk/aerodesk/internal/notification"
)

const (
	defaultHeartbeat   = 30 * time.Second
	defaultMaxDuration = 30 * time.Minute
	sseWriteTimeout    = 10 * time.Second
)

// ChangeEvent is the payload of an SSE "changed" event.
type ChangeEvent struct {
	Counts notification.Counts `json:"counts"`
	At     time.Time           `json:"at"`
}

// streamChanges holds an SSE connection open and emits "changed" whenever
// the store changes. Bursts of changes coalesce into one event.
func (s *Server) streamChanges(c echo.Context) error {
	heartbeat := s.settings.Stream.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	maxDuration := s.settings.Stream.MaxDuration
	if maxDuration <= 0 {
		maxDuration = defaultMaxDuration
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), maxDuration)
	defer cancel()
	signals := notification.Signals(ctx, s.service.Channel())

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	clientID := uuid.NewString()
	log := s.logger.With(logger.String("client_id", clientID))
	if err := s.sendSSE(c, "connected", map[string]string{"clientId": clientID}); err != nil {
		return nil
	}
	log.Debug("SSE client connected", logger.String("ip", c.RealIP()))
	defer log.Debug("SSE client disconnected")

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.closing:
			return nil
		case _, ok := <-signals:
			if !ok {
				return nil
			}
			event := ChangeEvent{Counts: s.service.Counts(ctx), At: time.Now().UTC()}
			if err := s.sendSSE(c, "changed", event); err != nil {
				log.Debug("SSE write failed", logger.Error(err))
				return nil
			}
		case <-ticker.C:
			if err := s.writeSSE(c, ": heartbeat\n\n"); err != nil {
				log.Debug("SSE heartbeat failed", logger.Error(err))
				return nil
			}
		}
	}
}

func (s *Server) sendSSE(c echo.Context, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}
	return s.writeSSE(c, fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload))
}

func (s *Server) writeSSE(c echo.Context, message string) error {
	rc := http.NewResponseController(c.Response().Writer)
	// Not every writer supports deadlines; httptest recorders do not.
	_ = rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))

	if _, err := c.Response().Write([]byte(message)); err != nil {
		return fmt.Errorf("failed to write SSE message: %w", err)
	}
	c.Response().Flush()
	return nil
}
