package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aerodesk/aerodesk/internal/buildinfo"
	"github.com/aerodesk/aerodesk/internal/conf"
	"github.com/aerodesk/aerodesk/internal/logger"
	"github.com/aerodesk/aerodesk/internal/notification"
	"github.com/aerodesk/aerodesk/internal/observability"
)

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

type testEnv struct {
	server  *Server
	service *notification.Service
	metrics *observability.Metrics
}

type envOption func(*notification.ServiceConfig, *conf.WebServerSettings)

func withCaptainLimit(perMinute, burst int) envOption {
	return func(cfg *notification.ServiceConfig, _ *conf.WebServerSettings) {
		cfg.RateLimitPerMinute = perMinute
		cfg.RateLimitBurst = burst
	}
}

func withStreamLimit(perMinute int) envOption {
	return func(_ *notification.ServiceConfig, ws *conf.WebServerSettings) {
		ws.Stream.RateLimit = perMinute
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	cfg := &notification.ServiceConfig{
		Store:    notification.NewInMemoryStore(),
		Channel:  notification.NewLocalChannel(),
		Language: "en",
		Metrics:  m.Notification,
		Logger:   quietLogger(),
	}
	settings := conf.WebServerSettings{
		Listen: "127.0.0.1:0",
		Stream: conf.StreamSettings{Heartbeat: time.Hour, MaxDuration: time.Minute},
	}
	for _, opt := range opts {
		opt(cfg, &settings)
	}

	svc := notification.NewService(cfg)
	srv := New(svc, settings,
		WithLogger(quietLogger()),
		WithMetrics(m),
		WithBuildInfo(buildinfo.NewContext("v1.2.3", "2025-03-14", "test-system")),
	)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, service: svc, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func emergencyBody(flight string, st notification.SubType) map[string]string {
	return map[string]string{
		"flightId":     flight,
		"flightNumber": "AF" + flight,
		"airline":      "Air France",
		"captain":      "Jeanne",
		"captainId":    "captain-" + flight,
		"route":        "CDG → SGN",
		"type":         string(notification.TypeEmergency),
		"subType":      string(st),
	}
}

func groundBody(flight string, st notification.SubType) map[string]string {
	body := emergencyBody(flight, st)
	body["type"] = string(notification.TypeGroundCrewRequest)
	return body
}

func (e *testEnv) create(t *testing.T, body map[string]string) *notification.Notification {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/notifications", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[*notification.Notification](t, rec)
}
