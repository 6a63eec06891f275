package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerodesk/aerodesk/internal/conf"
	"github.com/aerodesk/aerodesk/internal/errors"
	"github.com/aerodesk/aerodesk/internal/notification"
)

func TestCreateNotification(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	n := env.create(t, emergencyBody("1", notification.SubTypeLandingGear))
	assert.Equal(t, notification.PriorityCritical, n.Priority)
	assert.Equal(t, notification.StatusPending, n.Status)
	assert.Equal(t, []notification.Panel{notification.PanelATC, notification.PanelGroundCrew}, n.TargetPanels)
	assert.NotEmpty(t, n.Message)
	assert.True(t, strings.HasPrefix(n.ID, "notif_"))

	rec := env.do(t, http.MethodGet, "/api/v1/notifications/"+n.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, n.ID, decode[*notification.Notification](t, rec).ID)
}

func TestCreateNotificationRejectsBadInput(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
	}{
		{"mismatched pairing", emergencyBody("1", notification.SubTypePushback)},
		{"unknown type", map[string]string{"flightId": "1", "type": "PARTY", "subType": "PUSHBACK"}},
		{"not json", "just a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/notifications", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
	assert.Empty(t, env.service.ListAll(context.Background()))
}

func TestCreateNotificationRateLimited(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, withCaptainLimit(1, 1))

	env.create(t, groundBody("1", notification.SubTypePushback))
	rec := env.do(t, http.MethodPost, "/api/v1/notifications", groundBody("1", notification.SubTypeFollowMe))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Other captains are unaffected, and emergencies always go through.
	env.create(t, groundBody("2", notification.SubTypeFollowMe))
	env.create(t, emergencyBody("1", notification.SubTypeWingControl))
}

func TestGetMissingNotification(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/notifications/notif_0_missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "notif_0_missing")
}

func TestAcknowledgeFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	n := env.create(t, emergencyBody("1", notification.SubTypeEngineExplosion))

	rec := env.do(t, http.MethodPost, "/api/v1/notifications/"+n.ID+"/acknowledge", nil, HeaderOperator, "Tower Alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	acked := decode[*notification.Notification](t, rec)
	assert.Equal(t, notification.StatusAcknowledged, acked.Status)
	assert.Equal(t, "Tower Alice", acked.AcknowledgedBy)
	assert.NotNil(t, acked.AcknowledgedAt)

	rec = env.do(t, http.MethodPost, "/api/v1/notifications/"+n.ID+"/acknowledge", map[string]string{"acknowledgedBy": "Bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAcknowledgeDefaultsOperator(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	n := env.create(t, emergencyBody("1", notification.SubTypeLandingGear))

	rec := env.do(t, http.MethodPost, "/api/v1/notifications/"+n.ID+"/acknowledge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, notification.DefaultATCOperator, decode[*notification.Notification](t, rec).AcknowledgedBy)
}

func TestAcceptFromPending(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	n := env.create(t, groundBody("1", notification.SubTypePushback))

	rec := env.do(t, http.MethodPost, "/api/v1/notifications/"+n.ID+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accepted := decode[*notification.Notification](t, rec)
	assert.Equal(t, notification.StatusInProgress, accepted.Status)
	assert.Equal(t, notification.DefaultGroundCrewOperator, accepted.AcknowledgedBy)
}

func TestSetStatus(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	n := env.create(t, groundBody("1", notification.SubTypeFollowMe))
	path := "/api/v1/notifications/" + n.ID + "/status"

	rec := env.do(t, http.MethodPut, path, map[string]string{"status": "DONE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, path, map[string]string{"status": "IN_PROGRESS"})
	assert.Equal(t, http.StatusConflict, rec.Code, "work cannot start before acknowledgement")

	rec = env.do(t, http.MethodPost, "/api/v1/notifications/"+n.ID+"/acknowledge", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, path, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[*notification.Notification](t, rec)
	assert.Equal(t, notification.StatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	rec = env.do(t, http.MethodPut, path, map[string]string{"status": "CANCELLED"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListNotificationsFilters(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	first := env.create(t, emergencyBody("1", notification.SubTypeLandingGear))
	env.create(t, groundBody("2", notification.SubTypePushback))
	third := env.create(t, groundBody("3", notification.SubTypeFireTruck))
	_, err := env.service.Acknowledge(context.Background(), first.ID, "Alice")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]*notification.Notification](t, rec)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID, "newest first")

	rec = env.do(t, http.MethodGet, "/api/v1/notifications?status=pending&priority=HIGH,MEDIUM", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]*notification.Notification](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/api/v1/notifications?type=emergency", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]*notification.Notification](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/v1/notifications?limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[[]*notification.Notification](t, rec)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)

	for _, query := range []string{"limit=-1", "offset=x", "status=LOST", "priority=URGENT", "type=PARTY"} {
		rec = env.do(t, http.MethodGet, "/api/v1/notifications?"+query, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestPanelProjection(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	emergency := env.create(t, emergencyBody("1", notification.SubTypeWingControl))
	env.create(t, groundBody("2", notification.SubTypePushback))

	rec := env.do(t, http.MethodGet, "/api/v1/panels/atc/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	atc := decode[[]*notification.Notification](t, rec)
	require.Len(t, atc, 1)
	assert.Equal(t, emergency.ID, atc[0].ID)

	for _, panel := range []string{"ground-crew", "ground_crew", "GROUND_CREW"} {
		rec = env.do(t, http.MethodGet, "/api/v1/panels/"+panel+"/notifications", nil)
		require.Equal(t, http.StatusOK, rec.Code, panel)
		assert.Len(t, decode[[]*notification.Notification](t, rec), 2, panel)
	}

	_, err := env.service.Acknowledge(context.Background(), emergency.ID, "")
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/api/v1/panels/ground-crew/notifications?view=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]*notification.Notification](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/v1/panels/ground-crew/notifications?view=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/panels/cabin/notifications", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveFromPanel(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	n := env.create(t, emergencyBody("1", notification.SubTypeLandingGear))

	rec := env.do(t, http.MethodDelete, "/api/v1/panels/atc/notifications/"+n.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/panels/atc/notifications/"+n.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/notifications/"+n.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []notification.Panel{notification.PanelGroundCrew}, decode[*notification.Notification](t, rec).TargetPanels)

	rec = env.do(t, http.MethodDelete, "/api/v1/panels/ground-crew/notifications/"+n.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/notifications/"+n.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearPanelAndClearAll(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.create(t, emergencyBody("1", notification.SubTypeLandingGear))
	env.create(t, groundBody("2", notification.SubTypePushback))
	env.create(t, groundBody("3", notification.SubTypeFollowMe))

	rec := env.do(t, http.MethodDelete, "/api/v1/panels/ground-crew/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[removedResponse](t, rec).Removed)

	// The emergency is still on the ATC panel.
	remaining := env.service.ListAll(context.Background())
	require.Len(t, remaining, 1)
	assert.Equal(t, []notification.Panel{notification.PanelATC}, remaining[0].TargetPanels)

	rec = env.do(t, http.MethodDelete, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[removedResponse](t, rec).Removed)
	assert.Empty(t, env.service.ListAll(context.Background()))
}

func TestDeleteNotification(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	n := env.create(t, emergencyBody("1", notification.SubTypeLandingGear))

	rec := env.do(t, http.MethodDelete, "/api/v1/notifications/"+n.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/notifications/"+n.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCountsCacheInvalidatedOnChange(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/notifications/counts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, notification.Counts{}, decode[notification.Counts](t, rec))

	env.create(t, emergencyBody("1", notification.SubTypeLandingGear))
	env.create(t, groundBody("2", notification.SubTypePushback))

	rec = env.do(t, http.MethodGet, "/api/v1/notifications/counts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	counts := decode[notification.Counts](t, rec)
	assert.Equal(t, notification.PanelCount{Pending: 1, Total: 1}, counts.ATC)
	assert.Equal(t, notification.PanelCount{Pending: 2, Total: 2}, counts.GroundCrew)
	assert.Equal(t, 1, counts.Critical)

	rec = env.do(t, http.MethodGet, "/api/v1/panels/ground-crew/counts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, notification.PanelCount{Pending: 2, Total: 2}, decode[notification.PanelCount](t, rec))
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.create(t, emergencyBody("1", notification.SubTypeLandingGear))

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "v1.2.3", health["version"])

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aerodesk_notifications_created_total")
}

// unreachableStore answers reads but fails its health check.
type unreachableStore struct {
	*notification.InMemoryStore
}

func (unreachableStore) Ping(context.Context) error {
	return errors.NewStd("connection refused")
}

func TestHealthReportsUnreachableStore(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(cfg *notification.ServiceConfig, _ *conf.WebServerSettings) {
		cfg.Store = unreachableStore{notification.NewInMemoryStore()}
	})

	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := env.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		health := decode[map[string]any](t, rec)
		assert.Equal(t, "unhealthy", health["status"])
		assert.Contains(t, health["error"], "connection refused")
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{notification.ErrInvalidPairing, http.StatusBadRequest},
		{notification.ErrNotificationNotFound, http.StatusNotFound},
		{notification.ErrInvalidTransition, http.StatusConflict},
		{notification.ErrRateLimited, http.StatusTooManyRequests},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
